package poll

import "time"

// GPUDevice is one observed GPU.
type GPUDevice struct {
	// Name is the raw device name as reported by the source.
	Name string
	// ShortName is the simplified display name (see SimplifyGPUName).
	ShortName string
	// MemUsedMB and MemTotalMB are in MiB. Both are 0 in scheduler mode,
	// which exposes no memory figures.
	MemUsedMB  float64
	MemTotalMB float64
	// Util is the utilization percentage. In scheduler mode it is a binary
	// marker: 0 for a free unit, 100 for an allocated one.
	Util float64
	// Node is the owning node name for scheduler-synthesized devices.
	Node string
	// Index is the device's ordinal on its node.
	Index int
	// Partitions lists the valid partitions the owning node belongs to.
	Partitions []string
}

// PartitionStat is the free/total GPU count for one scheduler partition.
// Derived from synthesized devices, never stored independently.
type PartitionStat struct {
	Name  string
	Free  int
	Total int
}

// HostSnapshot is the result of polling one host in one round.
// Exactly one of Err or the data fields is populated.
type HostSnapshot struct {
	// HostID is the host:port identifier.
	HostID string
	// Devices observed this round. Nil when Err is set.
	Devices []GPUDevice
	// PartitionStats is populated for scheduler hosts only.
	PartitionStats []PartitionStat
	// Info carries human-readable details, including diagnostics for lines
	// that failed to parse. Partial parse failures land here, not in Err.
	Info string
	// Err is the failure description when the host could not be polled.
	Err string
	// Taken is when the observation was captured.
	Taken time.Time
}

// OK reports whether the host was polled successfully this round.
func (h HostSnapshot) OK() bool {
	return h.Err == ""
}

// Active reports whether at least one device shows nonzero utilization.
func (h HostSnapshot) Active() bool {
	for _, d := range h.Devices {
		if d.Util > 0 {
			return true
		}
	}
	return false
}

// Snapshot is the aggregated result of one polling round across all hosts.
// Instances are value objects: built fresh each round and never mutated
// after publish.
type Snapshot struct {
	// Hosts maps host identifier to that host's observation.
	Hosts map[string]HostSnapshot
	// Order lists host identifiers in configuration order.
	Order []string
	// Taken is when the round completed.
	Taken time.Time
}

// Clone returns a deep copy. Publishing hands each subscriber an
// independent copy so no mutable state is shared across goroutines.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Hosts: make(map[string]HostSnapshot, len(s.Hosts)),
		Order: append([]string(nil), s.Order...),
		Taken: s.Taken,
	}
	for id, hs := range s.Hosts {
		cp := hs
		cp.Devices = cloneDevices(hs.Devices)
		cp.PartitionStats = append([]PartitionStat(nil), hs.PartitionStats...)
		out.Hosts[id] = cp
	}
	return out
}

func cloneDevices(devices []GPUDevice) []GPUDevice {
	if devices == nil {
		return nil
	}
	out := make([]GPUDevice, len(devices))
	for i, d := range devices {
		d.Partitions = append([]string(nil), d.Partitions...)
		out[i] = d
	}
	return out
}

// IdleAlert names every host currently past the idle threshold.
// Raised once per idle check while the condition persists.
type IdleAlert struct {
	HostIDs   []string
	Threshold time.Duration
}
