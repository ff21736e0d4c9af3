package cli

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gpuwatch/gpuwatch/internal/config"
	"github.com/gpuwatch/gpuwatch/internal/errors"
	"github.com/gpuwatch/gpuwatch/internal/logger"
	"github.com/gpuwatch/gpuwatch/pkg/sshutil"
)

// Global flags available to all subcommands.
var (
	configFlag   string
	insecureFlag bool
	askPassFlag  bool
)

var rootCmd = &cobra.Command{
	Use:   "gpuwatch",
	Short: "GPU fleet telemetry over SSH",
	Long: `gpuwatch polls a fleet of GPU hosts over SSH and reports per-device
utilization and memory, or scheduler-level allocation for Slurm clusters.

Hosts are configured in gpuwatch.yaml. Direct hosts are queried with
nvidia-smi; slurm hosts are queried through scontrol on a login node.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if insecureFlag {
			sshutil.StrictHostKeyChecking = false
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "config file (default gpuwatch.yaml, then ~/.config/gpuwatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&insecureFlag, "insecure", false, "skip host key verification")
	rootCmd.PersistentFlags().BoolVar(&askPassFlag, "ask-pass", false, "prompt for an SSH password to use for hosts without a key")
}

// errExitFailure signals a nonzero exit after the command has already
// printed its output. Returning it instead of calling os.Exit inside RunE
// lets deferred cleanup run before the process exits.
var errExitFailure = stderrors.New("exit failure")

// Execute runs the root command. Errors are printed once, here; commands
// set SilenceErrors so Cobra doesn't duplicate them.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !stderrors.Is(err, errExitFailure) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

// loadConfig resolves and loads the config file, applying the --ask-pass
// password to hosts that have no credentials of their own.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadResolved(configFlag)
	if err != nil {
		return nil, err
	}
	if len(cfg.Hosts) == 0 {
		return nil, errors.New(errors.ErrConfig,
			"No hosts configured",
			"Run 'gpuwatch init' to create a config file")
	}

	if askPassFlag {
		password, err := promptPassword()
		if err != nil {
			return nil, err
		}
		for i := range cfg.Hosts {
			h := &cfg.Hosts[i]
			if !h.IsLocal() && h.KeyFile == "" && h.Password == "" {
				h.Password = password
			}
		}
	}

	return cfg, nil
}

// cliLogger returns the logger commands should pass into the engine.
func cliLogger() logger.Logger {
	return logger.Default()
}
