package config

import (
	"fmt"

	"github.com/gpuwatch/gpuwatch/internal/errors"
	"github.com/gpuwatch/gpuwatch/internal/logger"
)

// Validate checks a single host entry for the fields polling requires.
func (h Host) Validate() error {
	if h.Host == "" {
		return errors.New(errors.ErrConfig,
			"Host entry is missing the 'host' field",
			"Every host needs at least a hostname or address")
	}
	if h.Port < 0 || h.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Host '%s' has invalid port %d", h.Host, h.Port),
			"Use a port between 1 and 65535, or omit it for 22")
	}
	switch h.Mode() {
	case TypeDirect, TypeSlurm:
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Host '%s' has unknown type '%s'", h.Host, h.Type),
			"Use 'direct' or 'slurm'")
	}
	// Loopback hosts run locally and need no credentials.
	if h.IsLocal() {
		return nil
	}
	if h.User == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Host '%s' is missing the 'user' field", h.Host),
			"Remote hosts need an SSH login name")
	}
	if h.Proxy != nil {
		if h.Proxy.Host == "" || h.Proxy.User == "" {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host '%s' has a proxy without host or user", h.Host),
				"Proxy entries need both 'host' and 'user'")
		}
	}
	return nil
}

// Validate checks the whole config. Host entries are not validated here;
// invalid hosts are excluded per-host by ValidHosts so one bad entry does
// not block the rest of the fleet.
func (c *Config) Validate() error {
	if c.PollInterval < 0 {
		return errors.New(errors.ErrConfig,
			"poll_interval cannot be negative",
			"Use a duration like '1s' or '30s', or omit it")
	}
	if c.IdleThreshold < 0 {
		return errors.New(errors.ErrConfig,
			"idle_threshold cannot be negative",
			"Use a duration like '5m', or omit it")
	}
	ids := make(map[string]bool, len(c.Hosts))
	for _, h := range c.Hosts {
		if h.Host == "" {
			continue // reported by ValidHosts
		}
		if ids[h.ID()] {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Duplicate host entry '%s'", h.ID()),
				"Each host:port may appear only once")
		}
		ids[h.ID()] = true
	}
	return nil
}

// ValidHosts returns the hosts that pass validation, in config order.
// Invalid entries are logged and never polled.
func (c *Config) ValidHosts(log logger.Logger) []Host {
	if log == nil {
		log = logger.Noop()
	}
	valid := make([]Host, 0, len(c.Hosts))
	for _, h := range c.Hosts {
		if err := h.Validate(); err != nil {
			log.Warn("excluding host %q from polling: %v", h.Host, err)
			continue
		}
		valid = append(valid, h)
	}
	return valid
}
