package poll

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimplifyGPUName(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"geforce consumer card", "NVIDIA GeForce RTX 3080", "RTX 3080"},
		{"ti variant beats base model", "NVIDIA GeForce RTX 3080 Ti", "RTX 3080Ti"},
		{"data center card", "NVIDIA A100-SXM4-40GB", "A100"},
		{"hopper", "NVIDIA H100 80GB HBM3", "H100"},
		{"l40s beats l4", "NVIDIA L40S", "L40S"},
		{"old tesla", "Tesla M40 24GB", "M40"},
		{"amd instinct", "AMD Instinct MI250X", "MI250X"},
		{"lowercase scheduler model", "a100", "A100"},
		{"lowercase typed model", "h100_nvl", "H100"},
		{"intel flex", "Intel Data Center GPU Flex 170", "GPU Flex170"},
		{"unknown vendor falls back to two tokens", "Weird Vendor Card X1", "Weird Vendor"},
		{"unknown nvidia model strips prefix", "NVIDIA GeForce GTX 1080", "GTX 1080"},
		{"single token", "Voodoo2", "Voodoo2"},
		{"empty", "", "Unknown"},
		{"whitespace only", "   ", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SimplifyGPUName(tt.raw))
		})
	}
}

func TestSimplifyGPUNameMostSpecificWins(t *testing.T) {
	// "RTX 4070 Ti" contains "RTX 4070" too; the longer key must win.
	assert.Equal(t, "RTX 4070Ti", SimplifyGPUName("NVIDIA GeForce RTX 4070 Ti"))
	assert.Equal(t, "RX 7900XTX", SimplifyGPUName("AMD Radeon RX 7900 XTX"))
}
