package config

import (
	"net"
	"strconv"
	"time"
)

// Host query modes.
const (
	// TypeDirect queries nvidia-smi on the host itself.
	TypeDirect = "direct"
	// TypeSlurm introspects a Slurm cluster through its login node.
	TypeSlurm = "slurm"
)

// DefaultPort is the SSH port used when a host entry omits one.
const DefaultPort = 22

// Config represents the complete gpuwatch.yaml configuration file.
type Config struct {
	// Hosts to poll, in order. Order is preserved: hosts are polled and
	// displayed in the order they appear here.
	Hosts []Host `yaml:"hosts" mapstructure:"hosts"`

	// PollInterval is the sleep between polling rounds.
	// Zero means the default: 1s when all hosts are direct, 30s when any
	// host is a scheduler.
	PollInterval time.Duration `yaml:"poll_interval" mapstructure:"poll_interval"`

	// CommandTimeout bounds a single remote query.
	CommandTimeout time.Duration `yaml:"command_timeout" mapstructure:"command_timeout"`

	// IdleThreshold is how long a host may sit at zero utilization before
	// it is flagged in idle alerts.
	IdleThreshold time.Duration `yaml:"idle_threshold" mapstructure:"idle_threshold"`

	// IdleCheckInterval is the cadence of the idle check, independent of
	// the polling interval.
	IdleCheckInterval time.Duration `yaml:"idle_check_interval" mapstructure:"idle_check_interval"`
}

// Host defines a monitored machine and its connection settings.
type Host struct {
	// Host is the hostname or address to connect to.
	Host string `yaml:"host" mapstructure:"host"`

	// Port is the SSH port (default 22).
	Port int `yaml:"port" mapstructure:"port"`

	// User is the SSH login name.
	User string `yaml:"user" mapstructure:"user"`

	// Password is tried only when no usable key is found.
	Password string `yaml:"password" mapstructure:"password"`

	// KeyFile is an explicit private key path, tried before default keys.
	KeyFile string `yaml:"key_file" mapstructure:"key_file"`

	// Proxy routes the connection through a jump host. Proxied hosts run
	// through the system ssh binary instead of the persistent session path.
	Proxy *Proxy `yaml:"proxy" mapstructure:"proxy"`

	// Type selects the query mode: "direct" (default) or "slurm".
	Type string `yaml:"type" mapstructure:"type"`
}

// Proxy is a jump host specification.
type Proxy struct {
	Host    string `yaml:"host" mapstructure:"host"`
	Port    int    `yaml:"port" mapstructure:"port"`
	User    string `yaml:"user" mapstructure:"user"`
	KeyFile string `yaml:"key_file" mapstructure:"key_file"`
}

// ID returns the host's identifier in host:port form.
func (h Host) ID() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.portOrDefault()))
}

// Mode returns the query mode, defaulting empty to direct.
func (h Host) Mode() string {
	if h.Type == "" {
		return TypeDirect
	}
	return h.Type
}

// IsLocal reports whether the host is a loopback address. Loopback hosts
// bypass SSH entirely and run the query on the local machine.
func (h Host) IsLocal() bool {
	switch h.Host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	ip := net.ParseIP(h.Host)
	return ip != nil && ip.IsLoopback()
}

func (h Host) portOrDefault() int {
	if h.Port == 0 {
		return DefaultPort
	}
	return h.Port
}

// Addr returns the dialable host:port address.
func (h Host) Addr() string {
	return net.JoinHostPort(h.Host, strconv.Itoa(h.portOrDefault()))
}

// DefaultConfig returns a Config with sensible defaults and no hosts.
func DefaultConfig() *Config {
	return &Config{
		CommandTimeout:    10 * time.Second,
		IdleThreshold:     5 * time.Minute,
		IdleCheckInterval: 10 * time.Second,
	}
}

// EffectivePollInterval resolves the polling interval, applying the
// mode-dependent default when the config leaves it unset.
func (c *Config) EffectivePollInterval() time.Duration {
	if c.PollInterval > 0 {
		return c.PollInterval
	}
	for _, h := range c.Hosts {
		if h.Mode() == TypeSlurm {
			return 30 * time.Second
		}
	}
	return time.Second
}

// ApplyDefaults fills zero-valued durations from DefaultConfig.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.CommandTimeout == 0 {
		c.CommandTimeout = def.CommandTimeout
	}
	if c.IdleThreshold == 0 {
		c.IdleThreshold = def.IdleThreshold
	}
	if c.IdleCheckInterval == 0 {
		c.IdleCheckInterval = def.IdleCheckInterval
	}
}
