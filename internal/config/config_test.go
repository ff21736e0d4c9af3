package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpuwatch/gpuwatch/internal/errors"
	"github.com/gpuwatch/gpuwatch/internal/logger"
)

func TestHostID(t *testing.T) {
	tests := []struct {
		name string
		host Host
		want string
	}{
		{"default port", Host{Host: "gpu01.lab"}, "gpu01.lab:22"},
		{"explicit port", Host{Host: "gpu01.lab", Port: 2222}, "gpu01.lab:2222"},
		{"ipv6 bracketed", Host{Host: "::1"}, "[::1]:22"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.host.ID())
		})
	}
}

func TestHostIsLocal(t *testing.T) {
	assert.True(t, Host{Host: "localhost"}.IsLocal())
	assert.True(t, Host{Host: "127.0.0.1"}.IsLocal())
	assert.True(t, Host{Host: "::1"}.IsLocal())
	assert.False(t, Host{Host: "gpu01.lab"}.IsLocal())
	assert.False(t, Host{Host: "10.0.0.5"}.IsLocal())
}

func TestHostMode(t *testing.T) {
	assert.Equal(t, TypeDirect, Host{Host: "a"}.Mode())
	assert.Equal(t, TypeSlurm, Host{Host: "a", Type: "slurm"}.Mode())
}

func TestEffectivePollInterval(t *testing.T) {
	direct := &Config{Hosts: []Host{{Host: "a", User: "u"}}}
	assert.Equal(t, time.Second, direct.EffectivePollInterval())

	mixed := &Config{Hosts: []Host{
		{Host: "a", User: "u"},
		{Host: "login", User: "u", Type: TypeSlurm},
	}}
	assert.Equal(t, 30*time.Second, mixed.EffectivePollInterval())

	explicit := &Config{PollInterval: 5 * time.Second, Hosts: mixed.Hosts}
	assert.Equal(t, 5*time.Second, explicit.EffectivePollInterval())
}

func TestHostValidate(t *testing.T) {
	tests := []struct {
		name    string
		host    Host
		wantErr bool
	}{
		{"valid remote", Host{Host: "gpu01", User: "alice"}, false},
		{"missing host", Host{User: "alice"}, true},
		{"missing user", Host{Host: "gpu01"}, true},
		{"loopback needs no user", Host{Host: "localhost"}, false},
		{"bad type", Host{Host: "gpu01", User: "alice", Type: "pbs"}, true},
		{"slurm type", Host{Host: "login", User: "alice", Type: "slurm"}, false},
		{"bad port", Host{Host: "gpu01", User: "alice", Port: 70000}, true},
		{"proxy missing user", Host{Host: "gpu01", User: "alice", Proxy: &Proxy{Host: "bastion"}}, true},
		{"proxy complete", Host{Host: "gpu01", User: "alice", Proxy: &Proxy{Host: "bastion", User: "alice"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.host.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidHostsExcludesAndLogs(t *testing.T) {
	cfg := &Config{Hosts: []Host{
		{Host: "gpu01", User: "alice"},
		{Host: "broken"}, // no user
		{Host: "gpu02", User: "alice"},
	}}

	buf := logger.NewBufferLogger()
	valid := cfg.ValidHosts(buf)

	require.Len(t, valid, 2)
	assert.Equal(t, "gpu01", valid[0].Host)
	assert.Equal(t, "gpu02", valid[1].Host)
	assert.True(t, buf.HasLevel("warn"))
}

func TestConfigValidateDuplicate(t *testing.T) {
	cfg := &Config{Hosts: []Host{
		{Host: "gpu01", User: "a"},
		{Host: "gpu01", User: "b"},
	}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gpuwatch.yaml")
	yaml := `
hosts:
  - host: gpu01.lab
    user: alice
    key_file: ~/.ssh/id_ed25519
  - host: slurm-login
    user: alice
    type: slurm
    proxy:
      host: bastion
      user: alice
poll_interval: 2s
idle_threshold: 10m
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Hosts, 2)
	assert.Equal(t, "gpu01.lab:22", cfg.Hosts[0].ID())
	assert.Equal(t, TypeSlurm, cfg.Hosts[1].Mode())
	require.NotNil(t, cfg.Hosts[1].Proxy)
	assert.Equal(t, "bastion", cfg.Hosts[1].Proxy.Host)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.IdleThreshold)
	// Unset fields pick up defaults.
	assert.Equal(t, 10*time.Second, cfg.CommandTimeout)
	assert.Equal(t, 10*time.Second, cfg.IdleCheckInterval)
}

func TestLoadRejectsDuplicateHosts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gpuwatch.yaml")
	yaml := `
hosts:
  - host: gpu01.lab
    user: alice
  - host: gpu01.lab
    user: bob
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.Contains(t, err.Error(), "gpu01.lab:22")
}

func TestLoadRejectsNegativeInterval(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gpuwatch.yaml")
	yaml := `
hosts:
  - host: gpu01.lab
    user: alice
poll_interval: -5s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestFindExplicitMissing(t *testing.T) {
	_, err := Find(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
