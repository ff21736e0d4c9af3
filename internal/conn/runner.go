package conn

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/gpuwatch/gpuwatch/internal/config"
	"github.com/gpuwatch/gpuwatch/internal/errors"
	"github.com/gpuwatch/gpuwatch/pkg/sshutil"
)

// Runner executes one query command against a host. The three
// implementations cover the three transport paths: a cached SSH session,
// local execution for loopback hosts, and a one-shot ssh subprocess for
// proxied hosts.
type Runner interface {
	Run(ctx context.Context, cmd string) (string, error)
}

// sshRunner executes over a cached persistent SSH connection.
type sshRunner struct {
	client sshutil.SSHClient
}

func (r *sshRunner) Run(ctx context.Context, cmd string) (string, error) {
	return r.client.OutputContext(ctx, cmd)
}

// localRunner executes the query on the local machine through the shell.
type localRunner struct{}

func (localRunner) Run(ctx context.Context, cmd string) (string, error) {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}

	// Only stdout feeds the parsers; stderr travels with the error.
	out, err := exec.CommandContext(ctx, shell, "-c", cmd).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return string(out), errors.WrapWithCode(err, errors.ErrExec,
				withStderr("Local command exited non-zero", ee),
				"Make sure nvidia-smi is installed and on PATH.")
		}
		return "", errors.WrapWithCode(err, errors.ErrExec,
			"Couldn't run the command locally",
			"Make sure the command exists and is executable.")
	}
	return string(out), nil
}

// proxyRunner shells out to the system ssh binary with a ProxyCommand.
// Proxied hosts never enter the session cache; each query is a fresh
// subprocess with its own failure domain.
type proxyRunner struct {
	host config.Host
}

func (r *proxyRunner) Run(ctx context.Context, cmd string) (string, error) {
	// ssh mixes its own banners and warnings into stderr; keeping them out
	// of stdout keeps them out of the parsers.
	out, err := exec.CommandContext(ctx, "ssh", r.args(cmd)...).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			return string(out), errors.WrapWithCode(err, errors.ErrExec,
				withStderr(fmt.Sprintf("Proxied command on '%s' exited non-zero", r.host.Host), ee),
				"Try the same ssh invocation by hand to see what the jump host says.")
		}
		return "", errors.WrapWithCode(err, errors.ErrSSH,
			fmt.Sprintf("Couldn't reach '%s' through proxy '%s'", r.host.Host, r.host.Proxy.Host),
			"Check the proxy host is reachable: ssh <proxy>")
	}
	return string(out), nil
}

// withStderr appends the subprocess's captured stderr to an error message.
func withStderr(msg string, ee *exec.ExitError) string {
	if detail := strings.TrimSpace(string(ee.Stderr)); detail != "" {
		return msg + ": " + detail
	}
	return msg
}

// args builds the ssh argument list for a proxied query.
func (r *proxyRunner) args(cmd string) []string {
	p := r.host.Proxy
	proxyPort := p.Port
	if proxyPort == 0 {
		proxyPort = config.DefaultPort
	}

	proxyCommand := fmt.Sprintf("ssh -W %%h:%%p %s@%s -p %d", p.User, p.Host, proxyPort)
	if p.KeyFile != "" {
		proxyCommand += " -i " + p.KeyFile
	}

	args := []string{
		"-o", "ProxyCommand=" + proxyCommand,
		"-o", "BatchMode=yes",
	}
	if r.host.KeyFile != "" {
		args = append(args, "-i", r.host.KeyFile)
	}
	args = append(args,
		fmt.Sprintf("%s@%s", r.host.User, r.host.Host),
		"-p", strconv.Itoa(hostPort(r.host)),
		cmd,
	)
	return args
}

func hostPort(h config.Host) int {
	if h.Port == 0 {
		return config.DefaultPort
	}
	return h.Port
}
