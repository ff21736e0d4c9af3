package sshutil

import (
	"context"
	"fmt"

	"golang.org/x/crypto/ssh"

	"github.com/gpuwatch/gpuwatch/internal/errors"
)

// OutputContext runs a command and returns its combined output, honoring
// context cancellation. The SSH protocol has no way to interrupt a running
// command mid-flight, so on cancellation the session is closed and the
// remote command is left to its own fate.
func (c *Client) OutputContext(ctx context.Context, cmd string) (string, error) {
	session, err := c.Client.NewSession()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrSSH,
			"Failed to create SSH session",
			"Connection may have been closed. Try reconnecting.")
	}
	defer session.Close()

	type result struct {
		output []byte
		err    error
	}
	resultCh := make(chan result, 1)

	go func() {
		out, err := session.CombinedOutput(cmd)
		resultCh <- result{out, err}
	}()

	select {
	case <-ctx.Done():
		_ = session.Close()
		return "", ctx.Err()
	case r := <-resultCh:
		if r.err != nil {
			if _, ok := r.err.(*ssh.ExitError); ok {
				// Non-zero exit still produced output worth returning.
				return string(r.output), errors.WrapWithCode(r.err, errors.ErrExec,
					fmt.Sprintf("Remote command exited non-zero: %s", cmd),
					"Check if the command exists on the remote host.")
			}
			return "", errors.WrapWithCode(r.err, errors.ErrExec,
				fmt.Sprintf("Failed to execute command: %s", cmd),
				"Check if the command exists on the remote host.")
		}
		return string(r.output), nil
	}
}

// Probe checks connection liveness by opening and closing a session.
// Cheaper than running a remote command, and it catches dead TCP
// connections that the client object can't see on its own.
func (c *Client) Probe() bool {
	if c == nil || c.Client == nil {
		return false
	}
	session, err := c.Client.NewSession()
	if err != nil {
		return false
	}
	_ = session.Close()
	return true
}
