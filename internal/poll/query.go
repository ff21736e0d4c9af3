package poll

import (
	"time"

	"github.com/gpuwatch/gpuwatch/internal/config"
)

// QuerySeparator splits the batched scheduler command output into its
// partition and node blocks.
const QuerySeparator = "---"

// directQuery is the per-device CSV query, one line per GPU.
const directQuery = `nvidia-smi --query-gpu=name,memory.used,memory.total,utilization.gpu --format=csv,noheader,nounits`

// slurmQuery batches the partition and node listings into a single remote
// invocation, separated for the two-phase parse.
const slurmQuery = `scontrol show partition -o; echo "` + QuerySeparator + `"; scontrol show node -o`

// hostQuery binds a query mode to its command and parser. The two
// instances below are the only modes; dispatch is by the host's
// configured type, never by dynamic lookup.
type hostQuery struct {
	command string
	parse   func(output string) ([]GPUDevice, []PartitionStat, []string)
}

var queries = map[string]hostQuery{
	config.TypeDirect: {
		command: directQuery,
		parse: func(output string) ([]GPUDevice, []PartitionStat, []string) {
			devices, diags := ParseDirect(output)
			return devices, nil, diags
		},
	},
	config.TypeSlurm: {
		command: slurmQuery,
		parse:   ParseSlurm,
	},
}

// queryFor returns the query for a host's mode. Unknown modes fall back to
// direct; config validation rejects them before polling starts.
func queryFor(host config.Host) hostQuery {
	if q, ok := queries[host.Mode()]; ok {
		return q
	}
	return queries[config.TypeDirect]
}

// Default timing constants for the polling loop.
const (
	// DefaultCommandTimeout bounds a single remote query.
	DefaultCommandTimeout = 10 * time.Second
	// DefaultIdleCheckInterval is the cadence of the idle check.
	DefaultIdleCheckInterval = 10 * time.Second
)
