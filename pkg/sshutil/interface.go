package sshutil

import (
	"context"
	"io"
)

// SSHClient defines the interface for SSH command execution.
// Both the real Client and test fakes satisfy this interface, so code that
// polls over SSH can be tested without real connections.
type SSHClient interface {
	// OutputContext runs a command and returns its combined output,
	// honoring context cancellation.
	OutputContext(ctx context.Context, cmd string) (string, error)

	// Probe reports whether the connection is still usable.
	Probe() bool

	// Close closes the SSH connection.
	Close() error

	// GetHost returns the configured hostname.
	GetHost() string

	// GetAddress returns the resolved host:port address.
	GetAddress() string

	// NewSession creates a new SSH session for command execution or
	// liveness checks. The returned session should be closed after use.
	NewSession() (Session, error)
}

// Session represents an SSH session that can be closed.
// This is a minimal interface for the ssh.Session type.
type Session interface {
	io.Closer
}
