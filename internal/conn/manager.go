// Package conn manages command transports for monitored hosts: a cache of
// persistent SSH connections with liveness probing and reconnect, plus the
// local and proxy execution paths that bypass it.
package conn

import (
	"sync"
	"time"

	"github.com/gpuwatch/gpuwatch/internal/config"
	"github.com/gpuwatch/gpuwatch/internal/logger"
	"github.com/gpuwatch/gpuwatch/pkg/sshutil"
)

// Dialer opens an SSH connection. Swappable for tests.
type Dialer func(opts sshutil.Options) (sshutil.SSHClient, error)

// defaultDialer adapts sshutil.Dial to the Dialer signature.
func defaultDialer(opts sshutil.Options) (sshutil.SSHClient, error) {
	client, err := sshutil.Dial(opts)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Manager hands out a Runner per host. SSH-backed runners reuse cached
// connections between polling rounds; a connection that fails its liveness
// probe is discarded and re-dialed. Callers always get either a usable
// Runner or an error value, never a panic.
type Manager struct {
	mu          sync.Mutex
	connections map[string]*poolEntry
	dial        Dialer
	timeout     time.Duration
	log         logger.Logger
}

// poolEntry holds a cached connection and its metadata.
type poolEntry struct {
	client   sshutil.SSHClient
	lastUsed time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithDialer replaces the SSH dialer (used by tests).
func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dial = d }
}

// WithLogger sets the manager's logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a connection manager with the given dial timeout.
func NewManager(timeout time.Duration, opts ...Option) *Manager {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	m := &Manager{
		connections: make(map[string]*poolEntry),
		dial:        defaultDialer,
		timeout:     timeout,
		log:         logger.Noop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a Runner for the host. Loopback hosts run locally, proxied
// hosts go through a one-shot ssh subprocess, everything else gets a
// cached SSH connection that is probed before reuse.
func (m *Manager) Get(host config.Host) (Runner, error) {
	if host.IsLocal() {
		return localRunner{}, nil
	}
	if host.Proxy != nil {
		return &proxyRunner{host: host}, nil
	}

	client, err := m.session(host)
	if err != nil {
		return nil, err
	}
	return &sshRunner{client: client}, nil
}

// session returns a live cached connection for the host, dialing a fresh
// one when the cache is empty or the probe fails.
func (m *Manager) session(host config.Host) (sshutil.SSHClient, error) {
	id := host.ID()

	m.mu.Lock()
	entry, exists := m.connections[id]
	m.mu.Unlock()

	if exists && entry.client != nil {
		if entry.client.Probe() {
			m.mu.Lock()
			entry.lastUsed = time.Now()
			m.mu.Unlock()
			return entry.client, nil
		}
		m.log.Debug("connection to %s failed probe, reconnecting", id)
		m.remove(id)
	}

	client, err := m.dial(sshutil.Options{
		Host:     host.Host,
		Port:     host.Port,
		User:     host.User,
		KeyFile:  host.KeyFile,
		Password: host.Password,
		Timeout:  m.timeout,
	})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.connections[id] = &poolEntry{
		client:   client,
		lastUsed: time.Now(),
	}
	m.mu.Unlock()

	return client, nil
}

// CloseOne closes and removes a specific connection from the cache.
// The next Get for that host dials fresh.
func (m *Manager) CloseOne(id string) {
	m.remove(id)
}

// Close closes all cached connections and clears the cache.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, entry := range m.connections {
		if entry.client != nil {
			_ = entry.client.Close()
		}
		delete(m.connections, id)
	}
}

// Size returns the number of cached connections.
func (m *Manager) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connections)
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.connections[id]; ok {
		if entry.client != nil {
			_ = entry.client.Close()
		}
		delete(m.connections, id)
	}
}
