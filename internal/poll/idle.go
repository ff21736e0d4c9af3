package poll

import (
	"sync"
	"time"
)

// IdleTracker keeps per-host last-active timestamps and flags hosts that
// have sat at zero utilization past a threshold. Updates come from the
// polling loop; the check runs on its own cadence and raises one
// aggregated alert naming every host over threshold. The alert repeats on
// every check while the condition holds.
type IdleTracker struct {
	mu         sync.Mutex
	lastActive map[string]time.Time
	threshold  time.Duration
	now        func() time.Time
}

// NewIdleTracker creates a tracker for the given host identifiers.
// Hosts start counted as active from now, matching first-seen behavior.
func NewIdleTracker(hostIDs []string, threshold time.Duration) *IdleTracker {
	t := &IdleTracker{
		lastActive: make(map[string]time.Time, len(hostIDs)),
		threshold:  threshold,
		now:        time.Now,
	}
	start := t.now()
	for _, id := range hostIDs {
		t.lastActive[id] = start
	}
	return t
}

// Update resets the last-active timestamp for every host whose latest
// observation shows at least one device with nonzero utilization. Hosts
// in error state keep their previous timestamp.
func (t *IdleTracker) Update(s Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, hs := range s.Hosts {
		if _, known := t.lastActive[id]; !known {
			t.lastActive[id] = s.Taken
			continue
		}
		if hs.OK() && hs.Active() {
			t.lastActive[id] = s.Taken
		}
	}
}

// Check returns an alert naming all hosts past the threshold, in no
// particular order, or nil when none are. No deduplication happens here:
// calling Check repeatedly while hosts stay idle yields an alert each time.
func (t *IdleTracker) Check() *IdleAlert {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.threshold <= 0 {
		return nil
	}

	now := t.now()
	var over []string
	for id, last := range t.lastActive {
		if now.Sub(last) > t.threshold {
			over = append(over, id)
		}
	}
	if len(over) == 0 {
		return nil
	}

	return &IdleAlert{
		HostIDs:   over,
		Threshold: t.threshold,
	}
}

// Threshold returns the configured idle threshold.
func (t *IdleTracker) Threshold() time.Duration {
	return t.threshold
}
