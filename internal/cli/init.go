package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gpuwatch/gpuwatch/internal/config"
	"github.com/gpuwatch/gpuwatch/internal/errors"
	"github.com/gpuwatch/gpuwatch/pkg/sshutil"
)

var initForce bool

// initCmd creates a new gpuwatch.yaml configuration.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create gpuwatch.yaml configuration",
	Long: `Initialize a new gpuwatch configuration file.

Creates gpuwatch.yaml in the current directory, guiding you through the
first host entry with interactive prompts.

Examples:
  gpuwatch init
  gpuwatch init --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(initForce)
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing config")
	rootCmd.AddCommand(initCmd)
}

// fileConfig mirrors config.Config with string durations so the written
// YAML stays human-editable ("30s", not nanosecond integers).
type fileConfig struct {
	Hosts         []fileHost `yaml:"hosts"`
	PollInterval  string     `yaml:"poll_interval,omitempty"`
	IdleThreshold string     `yaml:"idle_threshold,omitempty"`
}

type fileHost struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port,omitempty"`
	User    string `yaml:"user,omitempty"`
	KeyFile string `yaml:"key_file,omitempty"`
	Type    string `yaml:"type,omitempty"`
}

const configHeader = `# gpuwatch configuration
# Run 'gpuwatch watch' for the live dashboard, 'gpuwatch poll --once' for
# a one-shot snapshot. Add more entries under hosts: to grow the fleet.

`

func initConfig(force bool) error {
	const configPath = "gpuwatch.yaml"

	if _, err := os.Stat(configPath); err == nil && !force {
		var overwrite bool
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Config file '%s' already exists. Overwrite?", configPath)).
				Value(&overwrite),
		))
		if err := form.Run(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to get user input",
				"Use --force to overwrite without prompting")
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	var (
		hostName string
		user     string
		keyFile  string
		mode     = config.TypeDirect
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Host").
				Description("Hostname or address of the GPU machine, or a Slurm login node").
				Placeholder("gpu01.example.com").
				Value(&hostName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("host is required")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("SSH user").
				Description("Login name on the host (leave empty for localhost)").
				Placeholder("ops").
				Value(&user),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Query mode").
				Description("direct runs nvidia-smi on the host; slurm asks the scheduler").
				Options(
					huh.NewOption("direct (nvidia-smi)", config.TypeDirect),
					huh.NewOption("slurm (scontrol)", config.TypeSlurm),
				).
				Value(&mode),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("SSH key file (optional)").
				Description("Explicit private key; leave empty to use the agent and default keys").
				Placeholder("~/.ssh/id_ed25519").
				Value(&keyFile),
		),
	)
	if err := form.Run(); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to get user input",
			"Check terminal compatibility, or write gpuwatch.yaml by hand")
	}

	host := config.Host{
		Host:    strings.TrimSpace(hostName),
		User:    strings.TrimSpace(user),
		KeyFile: strings.TrimSpace(keyFile),
		Type:    mode,
	}
	if err := host.Validate(); err != nil {
		return err
	}

	if !host.IsLocal() {
		if err := testConnection(host); err != nil {
			var saveAnyway bool
			form := huh.NewForm(huh.NewGroup(
				huh.NewConfirm().
					Title("Save config anyway? (You can fix the connection later)").
					Value(&saveAnyway),
			))
			if formErr := form.Run(); formErr != nil || !saveAnyway {
				return err
			}
		}
	}

	out := fileConfig{
		Hosts: []fileHost{{
			Host:    host.Host,
			User:    host.User,
			KeyFile: host.KeyFile,
			Type:    host.Type,
		}},
	}
	if mode == config.TypeSlurm {
		out.PollInterval = "30s"
	}

	data, err := yaml.Marshal(out)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to generate config",
			"This shouldn't happen - please report this bug")
	}

	if err := os.WriteFile(configPath, []byte(configHeader+string(data)), 0644); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Failed to write config file: "+configPath,
			"Check directory permissions")
	}

	fmt.Printf("✓ Created %s\n\n", configPath)
	fmt.Println("Next steps:")
	fmt.Println("  gpuwatch poll --once   - Verify the host answers")
	fmt.Println("  gpuwatch watch         - Start the dashboard")
	return nil
}

// testConnection dials the host once and closes the session immediately.
func testConnection(host config.Host) error {
	fmt.Printf("Testing connection to %s...\n", host.Host)

	client, err := sshutil.Dial(sshutil.Options{
		Host:     host.Host,
		Port:     host.Port,
		User:     host.User,
		KeyFile:  host.KeyFile,
		Password: host.Password,
		Timeout:  10 * time.Second,
	})
	if err != nil {
		fmt.Printf("✗ Connection to '%s' failed: %v\n\n", host.Host, err)
		return err
	}
	defer client.Close()

	if !client.Probe() {
		fmt.Printf("✗ Session to '%s' failed\n\n", host.Host)
		return errors.New(errors.ErrSSH,
			"Could not open a session on "+host.Host,
			"Check that the account allows command execution: ssh "+host.Host)
	}

	fmt.Println("✓ Connected")
	return nil
}
