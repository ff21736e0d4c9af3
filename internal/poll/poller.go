// Package poll implements the telemetry engine: an interval-driven loop
// that queries every configured host, parses the device or scheduler
// output, and publishes immutable snapshots with per-host failure
// isolation.
package poll

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gpuwatch/gpuwatch/internal/config"
	"github.com/gpuwatch/gpuwatch/internal/conn"
	"github.com/gpuwatch/gpuwatch/internal/logger"
)

// SessionSource hands out runners per host. *conn.Manager is the real
// implementation; tests inject fakes.
type SessionSource interface {
	Get(host config.Host) (conn.Runner, error)
	CloseOne(id string)
	Close()
}

// Poller drives the polling loop for one fleet. All blocking remote calls
// happen on the poller's own goroutines; consumers only ever see
// published snapshots and alert events.
type Poller struct {
	hosts    []config.Host
	sessions SessionSource
	pub      *Publisher
	idle     *IdleTracker
	log      logger.Logger

	timeout      time.Duration
	idleInterval time.Duration
	alerts       chan IdleAlert

	mu       sync.Mutex
	interval time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithSessionSource replaces the connection manager (used by tests).
func WithSessionSource(s SessionSource) PollerOption {
	return func(p *Poller) { p.sessions = s }
}

// WithPollerLogger sets the poller's logger.
func WithPollerLogger(l logger.Logger) PollerOption {
	return func(p *Poller) { p.log = l }
}

// NewPoller builds a poller from the config. Hosts failing validation are
// logged and excluded up front; they are never attempted.
func NewPoller(cfg *config.Config, opts ...PollerOption) *Poller {
	p := &Poller{
		pub:          NewPublisher(),
		log:          logger.Noop(),
		timeout:      cfg.CommandTimeout,
		idleInterval: cfg.IdleCheckInterval,
		interval:     cfg.EffectivePollInterval(),
		alerts:       make(chan IdleAlert, 4),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.hosts = cfg.ValidHosts(p.log)
	if p.timeout == 0 {
		p.timeout = DefaultCommandTimeout
	}
	if p.idleInterval == 0 {
		p.idleInterval = DefaultIdleCheckInterval
	}
	if p.sessions == nil {
		p.sessions = conn.NewManager(p.timeout, conn.WithLogger(p.log))
	}

	ids := make([]string, 0, len(p.hosts))
	for _, h := range p.hosts {
		ids = append(ids, h.ID())
	}
	p.idle = NewIdleTracker(ids, cfg.IdleThreshold)

	return p
}

// Subscribe registers a snapshot consumer.
func (p *Poller) Subscribe() <-chan Snapshot {
	return p.pub.Subscribe()
}

// Unsubscribe removes a snapshot consumer.
func (p *Poller) Unsubscribe(ch <-chan Snapshot) {
	p.pub.Unsubscribe(ch)
}

// Alerts returns the idle alert stream. Alerts are dropped, not queued,
// when nothing is draining the channel.
func (p *Poller) Alerts() <-chan IdleAlert {
	return p.alerts
}

// Hosts returns the validated host set, in configuration order.
func (p *Poller) Hosts() []config.Host {
	return p.hosts
}

// SetInterval changes the sleep between rounds. Takes effect at the next
// round boundary, never mid-flight.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mu.Lock()
	p.interval = d
	p.mu.Unlock()
}

// Interval returns the current between-rounds sleep.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.interval
}

// Start launches the polling and idle-check loops.
func (p *Poller) Start() {
	if p.started {
		return
	}
	p.started = true
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.wg.Add(2)
	go p.run()
	go p.idleLoop()
}

// Stop requests a cooperative shutdown and waits for the loops to exit.
// A remote command already in flight runs to its own timeout. All cached
// connections are closed on the way out.
func (p *Poller) Stop() {
	if !p.started {
		return
	}
	p.started = false
	p.cancel()
	p.wg.Wait()
	p.sessions.Close()
	p.pub.Close()
}

// PollOnce runs a single round synchronously and returns the snapshot
// without publishing it. Used by the one-shot CLI path and tests.
func (p *Poller) PollOnce(ctx context.Context) Snapshot {
	return p.round(ctx)
}

// run is the main loop: one round, then sleep for the current interval.
// The stop signal is checked at each round boundary.
func (p *Poller) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		snapshot := p.round(p.ctx)

		select {
		case <-p.ctx.Done():
			return
		default:
		}

		p.pub.Publish(snapshot)
		p.idle.Update(snapshot)

		timer := time.NewTimer(p.Interval())
		select {
		case <-p.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// round polls every host once. Hosts are fetched concurrently so one
// stalled host costs at most its own command timeout, never the round.
// Results land in configuration order.
func (p *Poller) round(ctx context.Context) Snapshot {
	snapshot := Snapshot{
		Hosts: make(map[string]HostSnapshot, len(p.hosts)),
		Order: make([]string, 0, len(p.hosts)),
	}

	results := make([]HostSnapshot, len(p.hosts))
	var wg sync.WaitGroup

	for i, host := range p.hosts {
		snapshot.Order = append(snapshot.Order, host.ID())

		wg.Add(1)
		go func(i int, host config.Host) {
			defer wg.Done()
			results[i] = p.fetchHost(ctx, host)
		}(i, host)
	}
	wg.Wait()

	for _, hs := range results {
		snapshot.Hosts[hs.HostID] = hs
	}
	snapshot.Taken = time.Now()
	return snapshot
}

// fetchHost polls a single host, degrading every failure to an
// error-bearing HostSnapshot. Nothing here can abort the round.
func (p *Poller) fetchHost(ctx context.Context, host config.Host) HostSnapshot {
	hs := HostSnapshot{HostID: host.ID(), Taken: time.Now()}

	// Cooperative cancellation: don't issue the command if a stop came in.
	select {
	case <-ctx.Done():
		hs.Err = "polling stopped"
		return hs
	default:
	}

	runner, err := p.sessions.Get(host)
	if err != nil {
		p.log.Debug("connect %s: %v", hs.HostID, err)
		hs.Err = fmt.Sprintf("Error: %v", err)
		return hs
	}

	query := queryFor(host)

	cmdCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	output, err := runner.Run(cmdCtx, query.command)
	if err != nil {
		// Drop the cached connection so the next round dials fresh.
		p.sessions.CloseOne(hs.HostID)
		p.log.Debug("query %s: %v", hs.HostID, err)
		hs.Err = fmt.Sprintf("Error: %v", err)
		return hs
	}

	devices, stats, diags := query.parse(output)
	hs.Devices = devices
	hs.PartitionStats = stats
	hs.Info = buildInfo(devices, diags)
	hs.Taken = time.Now()
	return hs
}

// buildInfo assembles the human-readable host info string: one block per
// device plus any parse diagnostics inline.
func buildInfo(devices []GPUDevice, diags []string) string {
	var b strings.Builder
	for _, d := range devices {
		if d.Node != "" {
			fmt.Fprintf(&b, "GPU: %s (%s)\nUtilization: %.0f%%\n", d.ShortName, d.Node, d.Util)
			continue
		}
		fmt.Fprintf(&b, "GPU: %s\nMemory: %.0f/%.0f MB\nUtilization: %.0f%%\n",
			d.Name, d.MemUsedMB, d.MemTotalMB, d.Util)
	}
	for _, diag := range diags {
		b.WriteString(diag)
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "No GPU data"
	}
	return strings.TrimRight(b.String(), "\n")
}

// idleLoop runs the idle check on its own cadence, independent of the
// polling interval.
func (p *Poller) idleLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.idleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if alert := p.idle.Check(); alert != nil {
				select {
				case p.alerts <- *alert:
				default:
					// Nobody draining; drop rather than block the loop.
				}
			}
		}
	}
}

// IdleState exposes the tracker for consumers that want to run their own
// check cadence (the TUI status line does).
func (p *Poller) IdleState() *IdleTracker {
	return p.idle
}
