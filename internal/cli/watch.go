package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/gpuwatch/gpuwatch/internal/errors"
	"github.com/gpuwatch/gpuwatch/internal/poll"
	"github.com/gpuwatch/gpuwatch/internal/tui"
)

var watchIntervalFlag string

// watchCmd starts the interactive dashboard.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live fleet dashboard",
	Long: `Start an interactive dashboard showing every configured host.

Direct hosts show per-GPU utilization and memory; slurm hosts show
allocation per node plus free/total counts per partition. Hosts whose
GPUs sit idle past the configured threshold are flagged on the status
line.

Keyboard shortcuts:
  q / Esc / Ctrl+C  Quit

Examples:
  gpuwatch watch
  gpuwatch watch --interval 5s`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if watchIntervalFlag != "" {
			interval, err := time.ParseDuration(watchIntervalFlag)
			if err != nil {
				return errors.WrapWithCode(err, errors.ErrConfig,
					"Invalid interval: "+watchIntervalFlag,
					"Use a valid duration like 1s, 5s, or 1m")
			}
			cfg.PollInterval = interval
		}

		poller := poll.NewPoller(cfg, poll.WithPollerLogger(cliLogger()))
		if len(poller.Hosts()) == 0 {
			return errors.New(errors.ErrConfig,
				"No valid hosts to poll",
				"Check the host entries in your config file")
		}

		poller.Start()
		defer poller.Stop()

		return tui.Run(poller)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchIntervalFlag, "interval", "", "poll interval override (e.g., 1s, 30s)")
	rootCmd.AddCommand(watchCmd)
}
