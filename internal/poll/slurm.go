package poll

import (
	"fmt"
	"strconv"
	"strings"
)

// Slurm introspection is a two-phase parse over two text blocks: the
// partition listing decides which partitions count, then the node listing
// is filtered against that set and turned into synthetic devices. Each
// phase reports structured diagnostics instead of guessing silently.

// slurmNode is one record from the node phase.
type slurmNode struct {
	Name       string
	Partitions []string
	Model      string
	Total      int
	Alloc      int
}

// ParseSlurm parses the batched scheduler query output: a partition block
// and a node block separated by QuerySeparator. The scheduler exposes no
// continuous utilization metric, so each GPU unit becomes a device with a
// binary marker: util 0 for free, 100 for allocated.
func ParseSlurm(output string) (devices []GPUDevice, stats []PartitionStat, diags []string) {
	partText, nodeText, ok := strings.Cut(output, QuerySeparator)
	if !ok {
		return nil, nil, []string{"scheduler output missing partition/node separator"}
	}

	valid, order, partDiags := parsePartitions(partText)
	diags = append(diags, partDiags...)

	nodes, nodeDiags := parseNodes(nodeText, valid)
	diags = append(diags, nodeDiags...)

	for _, node := range nodes {
		name := node.Model
		if name == "" {
			name = "GPU"
		}
		for i := 0; i < node.Total; i++ {
			util := 0.0
			if i < node.Alloc {
				util = 100.0
			}
			devices = append(devices, GPUDevice{
				Name:       name,
				ShortName:  SimplifyGPUName(name),
				Util:       util,
				Node:       node.Name,
				Index:      i,
				Partitions: append([]string(nil), node.Partitions...),
			})
		}
	}

	stats = partitionStats(order, devices)
	return devices, stats, diags
}

// parsePartitions extracts the set of partitions worth reporting.
// Partitions whose state indicates drained, inactive, or down are dropped.
// Returns the valid set plus the partitions in listing order.
func parsePartitions(text string) (valid map[string]bool, order []string, diags []string) {
	valid = make(map[string]bool)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := scanKeyValues(line)
		name := fields["PartitionName"]
		if name == "" {
			diags = append(diags, fmt.Sprintf("partition record without PartitionName: %.60s", line))
			continue
		}

		if excludedPartitionState(fields["State"]) {
			continue
		}
		if !valid[name] {
			valid[name] = true
			order = append(order, name)
		}
	}

	return valid, order, diags
}

// excludedPartitionState reports whether a partition state removes it from
// the valid set. Matching is by substring so DRAINED, DRAINING, and the
// DOWN* variants are all caught.
func excludedPartitionState(state string) bool {
	s := strings.ToUpper(state)
	return strings.Contains(s, "DRAIN") ||
		strings.Contains(s, "INACTIVE") ||
		strings.Contains(s, "DOWN")
}

// parseNodes extracts GPU-bearing nodes, filtered to valid partitions.
// A node left with no valid partition is dropped entirely.
func parseNodes(text string, valid map[string]bool) (nodes []slurmNode, diags []string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		fields := scanKeyValues(line)
		name := fields["NodeName"]
		if name == "" {
			diags = append(diags, fmt.Sprintf("node record without NodeName: %.60s", line))
			continue
		}

		var parts []string
		for _, p := range strings.Split(fields["Partitions"], ",") {
			p = strings.TrimSpace(p)
			if p != "" && valid[p] {
				parts = append(parts, p)
			}
		}
		if len(parts) == 0 {
			continue
		}

		node := slurmNode{Name: name, Partitions: parts}

		// Total GPU count: the Gres descriptor is authoritative; fall back
		// to the CfgTRES aggregate when Gres is absent or reports zero.
		node.Model, node.Total = parseGres(fields["Gres"])
		if node.Total == 0 {
			node.Total = parseTRESGPU(fields["CfgTRES"])
		}
		if node.Total == 0 {
			continue
		}

		node.Alloc = parseTRESGPU(fields["AllocTRES"])
		if node.Alloc > node.Total {
			diags = append(diags, fmt.Sprintf("node %s reports %d allocated of %d GPUs", name, node.Alloc, node.Total))
			node.Alloc = node.Total
		}

		nodes = append(nodes, node)
	}

	return nodes, diags
}

// partitionStats counts free and total units per partition after device
// synthesis. A device on a node shared between partitions counts against
// every one of them, so shared nodes double-count across partitions.
func partitionStats(order []string, devices []GPUDevice) []PartitionStat {
	if len(order) == 0 {
		return nil
	}

	byName := make(map[string]*PartitionStat, len(order))
	stats := make([]PartitionStat, len(order))
	for i, name := range order {
		stats[i] = PartitionStat{Name: name}
		byName[name] = &stats[i]
	}

	for _, d := range devices {
		for _, p := range d.Partitions {
			st, ok := byName[p]
			if !ok {
				continue
			}
			st.Total++
			if d.Util == 0 {
				st.Free++
			}
		}
	}

	return stats
}

// scanKeyValues splits a one-line scontrol record into key=value pairs.
// Values with embedded spaces (Reason=... and friends) lose their tail;
// none of the fields this parser reads carry spaces.
func scanKeyValues(line string) map[string]string {
	fields := make(map[string]string)
	for _, tok := range strings.Fields(line) {
		key, value, ok := strings.Cut(tok, "=")
		if !ok || key == "" {
			continue
		}
		if _, seen := fields[key]; !seen {
			fields[key] = value
		}
	}
	return fields
}

// parseGres extracts the GPU model and count from a Gres descriptor like
// "gpu:8", "gpu:a100:8", or "gpu:a100:4(S:0-1),gpu:v100:4". Non-gpu
// entries and "(null)" yield zero.
func parseGres(gres string) (model string, total int) {
	if gres == "" || gres == "(null)" {
		return "", 0
	}

	for _, entry := range strings.Split(gres, ",") {
		entry = strings.TrimSpace(entry)
		// Strip the socket affinity suffix: gpu:a100:4(S:0-1)
		if idx := strings.IndexByte(entry, '('); idx >= 0 {
			entry = entry[:idx]
		}

		parts := strings.Split(entry, ":")
		if len(parts) < 2 || parts[0] != "gpu" {
			continue
		}

		count, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			continue
		}
		total += count

		if model == "" && len(parts) >= 3 {
			model = parts[1]
		}
	}

	return model, total
}

// parseTRESGPU extracts the gres/gpu count from a TRES aggregate like
// "cpu=64,mem=512000M,billing=64,gres/gpu=8". A TRES string can carry both
// the untyped total and per-model entries ("gres/gpu:a100=8") for the same
// devices, so the untyped entry wins when present.
func parseTRESGPU(tres string) int {
	if tres == "" {
		return 0
	}

	typed := 0
	for _, entry := range strings.Split(tres, ",") {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		switch {
		case key == "gres/gpu":
			if n, err := strconv.Atoi(value); err == nil {
				return n
			}
		case strings.HasPrefix(key, "gres/gpu:"):
			if n, err := strconv.Atoi(value); err == nil {
				typed += n
			}
		}
	}
	return typed
}
