package poll

import (
	"sort"
	"strings"
	"sync"
)

// gpuShortNames maps known model substrings to compact display labels.
// Checked most-specific (longest) first, so "RTX 3080 Ti" wins over
// "RTX 3080" and "L40S" over "L4".
var gpuShortNames = map[string]string{
	// NVIDIA data center
	"A100":  "A100",
	"A800":  "A800",
	"A6000": "A6000",
	"A40":   "A40",
	"H100":  "H100",
	"H200":  "H200",
	"L40":   "L40",
	"L40S":  "L40S",
	"L4":    "L4",
	"T4":    "T4",
	"V100":  "V100",
	"P100":  "P100",
	"P40":   "P40",

	// NVIDIA RTX
	"RTX 6000":         "RTX 6000",
	"RTX 5880":         "RTX 5880",
	"RTX 5000":         "RTX 5000",
	"RTX 4880":         "RTX 4880",
	"RTX 4000":         "RTX 4000",
	"RTX 5070 Ti":      "RTX 5070Ti",
	"RTX 5070":         "RTX 5070",
	"RTX 5000 Ada":     "RTX 5000A",
	"RTX 4000 SFF Ada": "RTX 4000A",
	"RTX 4500":         "RTX 4500",
	"RTX 4500 Ada":     "RTX 4500A",
	"RTX 4090":         "RTX 4090",
	"RTX 4080":         "RTX 4080",
	"RTX 4070 Ti":      "RTX 4070Ti",
	"RTX 4070":         "RTX 4070",
	"RTX 4060 Ti":      "RTX 4060Ti",
	"RTX 4060":         "RTX 4060",
	"RTX 3090 Ti":      "RTX 3090Ti",
	"RTX 3090":         "RTX 3090",
	"RTX 3080 Ti":      "RTX 3080Ti",
	"RTX 3080":         "RTX 3080",
	"RTX 3070 Ti":      "RTX 3070Ti",
	"RTX 3070":         "RTX 3070",
	"RTX 3060 Ti":      "RTX 3060Ti",
	"RTX 3060":         "RTX 3060",
	"RTX 2080 Ti":      "RTX 2080Ti",
	"RTX 2080":         "RTX 2080",
	"RTX 2070":         "RTX 2070",

	// AMD
	"MI300X":      "MI300X",
	"MI300":       "MI300",
	"MI250X":      "MI250X",
	"MI250":       "MI250",
	"MI210":       "MI210",
	"MI100":       "MI100",
	"MI50":        "MI50",
	"MI25":        "MI25",
	"RX 7900 XTX": "RX 7900XTX",
	"RX 7900 XT":  "RX 7900XT",
	"RX 7900":     "RX 7900",
	"RX 6900 XT":  "RX 6900XT",
	"RX 6800 XT":  "RX 6800XT",
	"RX 6700 XT":  "RX 6700XT",

	// Intel
	"Arc A770":                 "Arc A770",
	"Arc A750":                 "Arc A750",
	"Arc A380":                 "Arc A380",
	"Data Center GPU Flex 170": "GPU Flex170",
	"Data Center GPU Flex 140": "GPU Flex140",

	// Older Tesla boards
	"Tesla M40": "M40",
	"Tesla M10": "M10",
	"Tesla K40": "K40",
	"Tesla K20": "K20",
}

var (
	shortNameKeys     []string
	shortNameKeysOnce sync.Once
)

// orderedShortNameKeys returns map keys sorted longest first so the most
// specific substring wins.
func orderedShortNameKeys() []string {
	shortNameKeysOnce.Do(func() {
		shortNameKeys = make([]string, 0, len(gpuShortNames))
		for k := range gpuShortNames {
			shortNameKeys = append(shortNameKeys, k)
		}
		sort.Slice(shortNameKeys, func(i, j int) bool {
			if len(shortNameKeys[i]) != len(shortNameKeys[j]) {
				return len(shortNameKeys[i]) > len(shortNameKeys[j])
			}
			return shortNameKeys[i] < shortNameKeys[j]
		})
	})
	return shortNameKeys
}

// SimplifyGPUName shortens a raw device name to a compact label.
// Known models come from the mapping table; anything else is stripped of
// vendor and marketing prefixes and cut to its first two tokens.
// Matching is case-insensitive: scheduler Gres descriptors report models
// in lowercase while nvidia-smi reports them in vendor casing.
func SimplifyGPUName(name string) string {
	name = strings.TrimSpace(name)

	upper := strings.ToUpper(name)
	for _, key := range orderedShortNameKeys() {
		if strings.Contains(upper, strings.ToUpper(key)) {
			return gpuShortNames[key]
		}
	}

	for _, prefix := range []string{"NVIDIA ", "Tesla ", "AMD ", "Intel "} {
		if strings.HasPrefix(name, prefix) {
			name = strings.TrimSpace(name[len(prefix):])
			break
		}
	}

	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "Unknown"
	}

	// Skip the marketing family token so "GeForce RTX 9999" keeps the model.
	switch strings.ToLower(parts[0]) {
	case "geforce", "radeon":
		if len(parts) > 1 {
			parts = parts[1:]
		}
	}

	if len(parts) > 1 {
		return parts[0] + " " + parts[1]
	}
	return parts[0]
}
