package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/gpuwatch/gpuwatch/internal/poll"
)

var (
	pollOnceFlag bool
	pollJSONFlag bool
)

// pollCmd prints snapshots as text or JSON, for scripts and quick checks.
var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Print fleet snapshots to stdout",
	Long: `Poll the configured hosts and print the results.

By default snapshots stream continuously at the poll interval until
interrupted. With --once a single round runs and the command exits;
the exit code is nonzero if any host failed.

Examples:
  gpuwatch poll --once
  gpuwatch poll --once --json | jq .
  gpuwatch poll`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		poller := poll.NewPoller(cfg, poll.WithPollerLogger(cliLogger()))

		if pollOnceFlag {
			s := poller.PollOnce(cmd.Context())
			writeSnapshot(os.Stdout, s, pollJSONFlag)
			return onceExitError(s)
		}

		return streamSnapshots(poller)
	},
}

func init() {
	pollCmd.Flags().BoolVar(&pollOnceFlag, "once", false, "poll one round and exit")
	pollCmd.Flags().BoolVar(&pollJSONFlag, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(pollCmd)
}

// onceExitError maps a one-shot round to the command's exit status:
// errExitFailure when any host failed, nil when the whole fleet answered.
func onceExitError(s poll.Snapshot) error {
	for _, hs := range s.Hosts {
		if !hs.OK() {
			return errExitFailure
		}
	}
	return nil
}

// streamSnapshots prints rounds until SIGINT or SIGTERM.
func streamSnapshots(poller *poll.Poller) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller.Start()
	defer poller.Stop()

	snaps := poller.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case alert := <-poller.Alerts():
			fmt.Fprintf(os.Stdout, "⚠ idle > %s: %s\n",
				alert.Threshold, strings.Join(alert.HostIDs, ", "))
		case s, ok := <-snaps:
			if !ok {
				return nil
			}
			writeSnapshot(os.Stdout, s, pollJSONFlag)
		}
	}
}

// snapshotJSON is the machine-readable shape of one round.
type snapshotJSON struct {
	Taken string     `json:"taken"`
	Hosts []hostJSON `json:"hosts"`
}

type hostJSON struct {
	ID         string          `json:"id"`
	Error      string          `json:"error,omitempty"`
	Devices    []deviceJSON    `json:"devices,omitempty"`
	Partitions []partitionJSON `json:"partitions,omitempty"`
}

type deviceJSON struct {
	Name       string   `json:"name"`
	ShortName  string   `json:"short_name"`
	MemUsedMB  float64  `json:"mem_used_mb"`
	MemTotalMB float64  `json:"mem_total_mb"`
	Util       float64  `json:"utilization"`
	Node       string   `json:"node,omitempty"`
	Index      int      `json:"index"`
	Partitions []string `json:"partitions,omitempty"`
}

type partitionJSON struct {
	Name  string `json:"name"`
	Free  int    `json:"free"`
	Total int    `json:"total"`
}

// writeSnapshot renders one round as colored text or a JSON document.
func writeSnapshot(w io.Writer, s poll.Snapshot, asJSON bool) {
	if asJSON {
		writeSnapshotJSON(w, s)
		return
	}
	writeSnapshotText(w, s)
}

func writeSnapshotJSON(w io.Writer, s poll.Snapshot) {
	out := snapshotJSON{Taken: s.Taken.Format("2006-01-02T15:04:05Z07:00")}
	for _, id := range s.Order {
		hs := s.Hosts[id]
		hj := hostJSON{ID: id, Error: hs.Err}
		for _, d := range hs.Devices {
			hj.Devices = append(hj.Devices, deviceJSON{
				Name:       d.Name,
				ShortName:  d.ShortName,
				MemUsedMB:  d.MemUsedMB,
				MemTotalMB: d.MemTotalMB,
				Util:       d.Util,
				Node:       d.Node,
				Index:      d.Index,
				Partitions: d.Partitions,
			})
		}
		for _, st := range hs.PartitionStats {
			hj.Partitions = append(hj.Partitions, partitionJSON(st))
		}
		out.Hosts = append(out.Hosts, hj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(out) //nolint:errcheck
}

func writeSnapshotText(w io.Writer, s poll.Snapshot) {
	profile := termenv.ColorProfile()

	fmt.Fprintf(w, "%s\n", s.Taken.Format("15:04:05"))
	for _, id := range s.Order {
		hs := s.Hosts[id]
		if !hs.OK() {
			msg := termenv.String(hs.Err).Foreground(profile.Color("1"))
			fmt.Fprintf(w, "  %s  %s\n", id, msg)
			continue
		}
		if len(hs.Devices) == 0 {
			fmt.Fprintf(w, "  %s  no GPUs\n", id)
			continue
		}

		fmt.Fprintf(w, "  %s\n", id)
		for _, d := range hs.Devices {
			name := d.ShortName
			if d.Node != "" {
				name = d.Node + "/" + name
			}
			util := termenv.String(fmt.Sprintf("%3.0f%%", d.Util)).
				Foreground(profile.Color(utilANSIColor(d.Util)))
			if d.MemTotalMB > 0 {
				fmt.Fprintf(w, "    %s %-16s %.0f/%.0f MB\n", util, name, d.MemUsedMB, d.MemTotalMB)
			} else {
				fmt.Fprintf(w, "    %s %s\n", util, name)
			}
		}
		for _, st := range hs.PartitionStats {
			fmt.Fprintf(w, "    %s: %d/%d free\n", st.Name, st.Free, st.Total)
		}
	}
}

// utilANSIColor maps utilization to a basic ANSI color: green under 10%,
// yellow under 50%, red above.
func utilANSIColor(percent float64) string {
	switch {
	case percent >= 50:
		return "1"
	case percent >= 10:
		return "3"
	default:
		return "2"
	}
}
