package poll

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDirect parses nvidia-smi CSV output, one device per line:
//
//	name, memory.used, memory.total, utilization.gpu
//
// Lines parse independently: a malformed line contributes a diagnostic and
// is skipped, the rest of the lines survive. Only the caller decides when
// the whole host is in an error state.
func ParseDirect(output string) (devices []GPUDevice, diags []string) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, nil
	}

	// nvidia-smi prints prose, not CSV, when it can't see a device.
	lower := strings.ToLower(output)
	if strings.Contains(lower, "no devices") ||
		strings.Contains(lower, "not found") ||
		strings.Contains(lower, "failed") ||
		strings.Contains(lower, "command not found") {
		return nil, []string{strings.SplitN(output, "\n", 2)[0]}
	}

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		dev, err := parseDirectLine(line)
		if err != nil {
			diags = append(diags, fmt.Sprintf("Invalid GPU data: %s", line))
			continue
		}
		dev.Index = len(devices)
		devices = append(devices, dev)
	}

	return devices, diags
}

func parseDirectLine(line string) (GPUDevice, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 4 {
		return GPUDevice{}, fmt.Errorf("expected 4 fields, got %d", len(parts))
	}

	name := strings.TrimSpace(parts[0])

	memUsed, err := parseMetric(parts[1])
	if err != nil {
		return GPUDevice{}, fmt.Errorf("memory.used: %w", err)
	}
	memTotal, err := parseMetric(parts[2])
	if err != nil {
		return GPUDevice{}, fmt.Errorf("memory.total: %w", err)
	}
	util, err := parseMetric(parts[3])
	if err != nil {
		return GPUDevice{}, fmt.Errorf("utilization: %w", err)
	}

	return GPUDevice{
		Name:       name,
		ShortName:  SimplifyGPUName(name),
		MemUsedMB:  memUsed,
		MemTotalMB: memTotal,
		Util:       util,
	}, nil
}

// parseMetric parses one numeric CSV field, tolerating the [N/A] marker
// nvidia-smi emits for unsupported queries.
func parseMetric(field string) (float64, error) {
	field = strings.TrimSpace(field)
	if field == "" || field == "[N/A]" {
		return 0, nil
	}
	return strconv.ParseFloat(field, 64)
}
