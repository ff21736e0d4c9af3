package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpuwatch/gpuwatch/internal/config"
	"github.com/gpuwatch/gpuwatch/internal/poll"
)

// fakeSource stands in for the polling engine.
type fakeSource struct {
	snaps        chan poll.Snapshot
	alerts       chan poll.IdleAlert
	hosts        []config.Host
	unsubscribed bool
}

func newFakeSource(hosts ...config.Host) *fakeSource {
	return &fakeSource{
		snaps:  make(chan poll.Snapshot, 1),
		alerts: make(chan poll.IdleAlert, 1),
		hosts:  hosts,
	}
}

func (f *fakeSource) Subscribe() <-chan poll.Snapshot     { return f.snaps }
func (f *fakeSource) Unsubscribe(ch <-chan poll.Snapshot) { f.unsubscribed = true }
func (f *fakeSource) Alerts() <-chan poll.IdleAlert       { return f.alerts }
func (f *fakeSource) Hosts() []config.Host                { return f.hosts }

func testSnapshot() poll.Snapshot {
	return poll.Snapshot{
		Hosts: map[string]poll.HostSnapshot{
			"gpu01:22": {
				HostID: "gpu01:22",
				Devices: []poll.GPUDevice{
					{Name: "NVIDIA A100", ShortName: "A100", MemUsedMB: 1024, MemTotalMB: 40960, Util: 55},
				},
			},
			"login01:22": {
				HostID: "login01:22",
				Devices: []poll.GPUDevice{
					{ShortName: "A100", Node: "node01", Util: 100},
				},
				PartitionStats: []poll.PartitionStat{{Name: "batch", Free: 3, Total: 8}},
			},
			"dead:22": {HostID: "dead:22", Err: "Error: connection refused"},
		},
		Order: []string{"gpu01:22", "login01:22", "dead:22"},
		Taken: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestViewShowsSpinnerBeforeFirstSnapshot(t *testing.T) {
	m := NewModel(newFakeSource(config.Host{Host: "gpu01", User: "ops"}))

	view := m.View()
	assert.Contains(t, view, "Polling 1 host...")
}

func TestSnapshotMessageRendersCards(t *testing.T) {
	m := NewModel(newFakeSource())

	updated, cmd := m.Update(snapshotMsg(testSnapshot()))
	m = updated.(Model)
	require.NotNil(t, cmd, "must keep listening for snapshots")

	view := m.View()
	assert.Contains(t, view, "gpu01:22")
	assert.Contains(t, view, "A100")
	assert.Contains(t, view, "55%")
	assert.Contains(t, view, "1024/40960M")
	assert.Contains(t, view, "node01/A100")
	assert.Contains(t, view, "batch: 3/8 free")
	assert.Contains(t, view, "connection refused")
	assert.Contains(t, view, "3 hosts")
	assert.Contains(t, view, "2 reachable")
}

func TestAlertShowsOnStatusLine(t *testing.T) {
	m := NewModel(newFakeSource())
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	updated, _ := m.Update(snapshotMsg(testSnapshot()))
	m = updated.(Model)

	alert := poll.IdleAlert{HostIDs: []string{"gpu01:22"}, Threshold: 5 * time.Minute}
	updated, cmd := m.Update(alertMsg(alert))
	m = updated.(Model)
	require.NotNil(t, cmd, "must keep listening for alerts")

	view := m.View()
	assert.Contains(t, view, "idle > 5m0s")
	assert.Contains(t, view, "gpu01:22")

	// The alert ages out if the engine stops re-raising it.
	now = now.Add(time.Minute)
	assert.NotContains(t, m.View(), "idle > 5m0s")
}

func TestQuitUnsubscribes(t *testing.T) {
	src := newFakeSource()
	m := NewModel(src)

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	m = updated.(Model)

	require.NotNil(t, cmd)
	assert.True(t, src.unsubscribed)
	assert.Empty(t, m.View())
}

func TestStreamClosedQuits(t *testing.T) {
	m := NewModel(newFakeSource())

	_, cmd := m.Update(streamClosedMsg{})
	require.NotNil(t, cmd, "closed stream must quit the program")
}

func TestUtilColorThresholds(t *testing.T) {
	assert.Equal(t, ColorHealthy, UtilColor(0))
	assert.Equal(t, ColorHealthy, UtilColor(9.9))
	assert.Equal(t, ColorWarning, UtilColor(10))
	assert.Equal(t, ColorWarning, UtilColor(49.9))
	assert.Equal(t, ColorCritical, UtilColor(50))
	assert.Equal(t, ColorCritical, UtilColor(100))
}
