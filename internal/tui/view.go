package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gpuwatch/gpuwatch/internal/poll"
)

const defaultCardWidth = 36

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.snapshot == nil {
		return m.renderWaiting()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	b.WriteString(m.renderCards())
	b.WriteString("\n")
	b.WriteString(m.renderStatusLine())
	return b.String()
}

// renderWaiting shows the spinner until the first snapshot lands.
func (m Model) renderWaiting() string {
	n := len(m.source.Hosts())
	noun := "hosts"
	if n == 1 {
		noun = "host"
	}
	return fmt.Sprintf("\n  %s Polling %d %s...\n",
		m.spin.View(), n, noun)
}

func (m Model) renderHeader() string {
	s := m.snapshot
	ok := 0
	for _, hs := range s.Hosts {
		if hs.OK() {
			ok++
		}
	}

	title := lipgloss.NewStyle().Foreground(ColorAccent).Bold(true).Render("gpuwatch")
	stats := LabelStyle.Render(fmt.Sprintf(" | %d hosts | %d reachable | %s",
		len(s.Order), ok, s.Taken.Format("15:04:05")))
	return HeaderStyle.Render(title + stats)
}

// renderCards lays the host cards out in rows, in configuration order.
func (m Model) renderCards() string {
	s := m.snapshot
	if len(s.Order) == 0 {
		return LabelStyle.Render("No hosts configured")
	}

	cardWidth := defaultCardWidth
	perRow := 1
	if m.width > 0 {
		perRow = m.width / (cardWidth + 3)
		if perRow < 1 {
			perRow = 1
			cardWidth = m.width - 4
		}
	}

	var cards []string
	for _, id := range s.Order {
		cards = append(cards, m.renderCard(s.Hosts[id], cardWidth))
	}

	var rows []string
	for i := 0; i < len(cards); i += perRow {
		end := i + perRow
		if end > len(cards) {
			end = len(cards)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, cards[i:end]...))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderCard renders one host: name, per-device utilization lines, and
// partition stats for scheduler hosts. Errored hosts show the error
// instead of device data.
func (m Model) renderCard(hs poll.HostSnapshot, width int) string {
	var lines []string
	lines = append(lines, HostNameStyle.Render(hs.HostID))

	switch {
	case !hs.OK():
		lines = append(lines, ErrorStyle.Render(truncate(hs.Err, width-2)))

	case len(hs.Devices) == 0:
		lines = append(lines, MutedStyle.Render("no GPUs"))

	default:
		for _, d := range hs.Devices {
			lines = append(lines, renderDevice(d, width-2))
		}
		for _, line := range partitionLines(hs.PartitionStats) {
			lines = append(lines, MutedStyle.Render(line))
		}
	}

	return CardStyle.Width(width).Render(strings.Join(lines, "\n"))
}

// renderDevice formats one GPU line, colored by utilization.
func renderDevice(d poll.GPUDevice, width int) string {
	name := d.ShortName
	if name == "" {
		name = d.Name
	}
	if d.Node != "" {
		name = fmt.Sprintf("%s/%s", d.Node, name)
	}

	util := UtilStyle(d.Util).Render(fmt.Sprintf("%3.0f%%", d.Util))

	if d.MemTotalMB > 0 {
		mem := fmt.Sprintf("%.0f/%.0fM", d.MemUsedMB, d.MemTotalMB)
		return fmt.Sprintf("%s %s  %s", util, truncate(name, width-14), MutedStyle.Render(mem))
	}
	return fmt.Sprintf("%s %s", util, truncate(name, width-6))
}

// partitionLines formats scheduler partition stats, one per line.
func partitionLines(stats []poll.PartitionStat) []string {
	lines := make([]string, 0, len(stats))
	for _, st := range stats {
		lines = append(lines, fmt.Sprintf("%s: %d/%d free", st.Name, st.Free, st.Total))
	}
	return lines
}

// renderStatusLine shows the idle alert when one is live, otherwise the
// key hints.
func (m Model) renderStatusLine() string {
	if alert := m.activeAlert(); alert != nil {
		hosts := strings.Join(alert.HostIDs, ", ")
		return AlertStyle.Render(fmt.Sprintf("⚠ idle > %s: %s", alert.Threshold, hosts))
	}
	return FooterStyle.Render("q quit")
}

func truncate(s string, max int) string {
	if max <= 3 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
