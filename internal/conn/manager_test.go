package conn

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpuwatch/gpuwatch/internal/config"
	"github.com/gpuwatch/gpuwatch/pkg/sshutil"
)

// fakeClient satisfies sshutil.SSHClient for manager tests.
type fakeClient struct {
	host    string
	alive   bool
	closed  bool
	output  string
	execErr error
}

func (f *fakeClient) OutputContext(ctx context.Context, cmd string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.output, f.execErr
}

func (f *fakeClient) Probe() bool           { return f.alive && !f.closed }
func (f *fakeClient) Close() error          { f.closed = true; return nil }
func (f *fakeClient) GetHost() string       { return f.host }
func (f *fakeClient) GetAddress() string    { return f.host + ":22" }
func (f *fakeClient) NewSession() (sshutil.Session, error) {
	if !f.alive {
		return nil, fmt.Errorf("connection closed")
	}
	return nopSession{}, nil
}

type nopSession struct{}

func (nopSession) Close() error { return nil }

func TestGetReusesLiveConnection(t *testing.T) {
	dials := 0
	client := &fakeClient{host: "gpu01", alive: true, output: "ok"}
	mgr := NewManager(time.Second, WithDialer(func(opts sshutil.Options) (sshutil.SSHClient, error) {
		dials++
		return client, nil
	}))

	host := config.Host{Host: "gpu01", User: "alice"}

	r1, err := mgr.Get(host)
	require.NoError(t, err)
	r2, err := mgr.Get(host)
	require.NoError(t, err)

	assert.Equal(t, 1, dials)
	assert.Equal(t, 1, mgr.Size())

	out, err := r1.Run(context.Background(), "true")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	_ = r2
}

func TestGetRedialsAfterProbeFailure(t *testing.T) {
	dials := 0
	clients := []*fakeClient{
		{host: "gpu01", alive: true},
		{host: "gpu01", alive: true},
	}
	mgr := NewManager(time.Second, WithDialer(func(opts sshutil.Options) (sshutil.SSHClient, error) {
		c := clients[dials]
		dials++
		return c, nil
	}))

	host := config.Host{Host: "gpu01", User: "alice"}

	_, err := mgr.Get(host)
	require.NoError(t, err)

	// Simulate the connection dying between rounds.
	clients[0].alive = false

	_, err = mgr.Get(host)
	require.NoError(t, err)

	assert.Equal(t, 2, dials)
	assert.True(t, clients[0].closed, "dead connection should be closed on eviction")
}

func TestGetReturnsDialError(t *testing.T) {
	attempts := 0
	mgr := NewManager(time.Second, WithDialer(func(opts sshutil.Options) (sshutil.SSHClient, error) {
		attempts++
		if attempts == 1 {
			return nil, fmt.Errorf("unreachable")
		}
		return &fakeClient{host: "gpu01", alive: true}, nil
	}))

	host := config.Host{Host: "gpu01", User: "alice"}

	_, err := mgr.Get(host)
	require.Error(t, err)
	assert.Equal(t, 0, mgr.Size())

	// Recovery without restarting the manager: next Get dials again and succeeds.
	_, err = mgr.Get(host)
	require.NoError(t, err)
	assert.Equal(t, 1, mgr.Size())
}

func TestCloseOneForcesFreshDial(t *testing.T) {
	dials := 0
	mgr := NewManager(time.Second, WithDialer(func(opts sshutil.Options) (sshutil.SSHClient, error) {
		dials++
		return &fakeClient{host: "gpu01", alive: true}, nil
	}))

	host := config.Host{Host: "gpu01", User: "alice"}

	_, err := mgr.Get(host)
	require.NoError(t, err)

	mgr.CloseOne(host.ID())
	assert.Equal(t, 0, mgr.Size())

	_, err = mgr.Get(host)
	require.NoError(t, err)
	assert.Equal(t, 2, dials)
}

func TestLocalHostBypassesSSH(t *testing.T) {
	mgr := NewManager(time.Second, WithDialer(func(opts sshutil.Options) (sshutil.SSHClient, error) {
		t.Fatal("loopback host must not dial SSH")
		return nil, nil
	}))

	r, err := mgr.Get(config.Host{Host: "localhost"})
	require.NoError(t, err)
	assert.Equal(t, 0, mgr.Size())

	out, err := r.Run(context.Background(), "echo local")
	require.NoError(t, err)
	assert.Contains(t, out, "local")
}

func TestProxyHostSkipsSessionCache(t *testing.T) {
	mgr := NewManager(time.Second, WithDialer(func(opts sshutil.Options) (sshutil.SSHClient, error) {
		t.Fatal("proxied host must not use the persistent session path")
		return nil, nil
	}))

	host := config.Host{
		Host:  "gpu01",
		User:  "alice",
		Proxy: &config.Proxy{Host: "bastion", User: "alice", KeyFile: "/keys/jump"},
	}

	r, err := mgr.Get(host)
	require.NoError(t, err)
	assert.Equal(t, 0, mgr.Size())

	pr, ok := r.(*proxyRunner)
	require.True(t, ok)
	args := pr.args("nvidia-smi")
	assert.Contains(t, args[1], "ProxyCommand=ssh -W %h:%p alice@bastion -p 22 -i /keys/jump")
	assert.Contains(t, args, "alice@gpu01")
}

func TestCloseClearsEverything(t *testing.T) {
	client := &fakeClient{host: "gpu01", alive: true}
	mgr := NewManager(time.Second, WithDialer(func(opts sshutil.Options) (sshutil.SSHClient, error) {
		return client, nil
	}))

	_, err := mgr.Get(config.Host{Host: "gpu01", User: "alice"})
	require.NoError(t, err)

	mgr.Close()
	assert.Equal(t, 0, mgr.Size())
	assert.True(t, client.closed)
}
