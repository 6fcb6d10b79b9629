package tui

import "github.com/charmbracelet/lipgloss"

// Segment states shown in the STATUS column.
const (
	StatusPending  = "pending"
	StatusBuilding = "building"
	StatusBuilt    = "built"
	StatusFailed   = "failed"
)

var (
	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)

	titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	phaseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))

	statusStyles = map[string]lipgloss.Style{
		StatusBuilt:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		StatusBuilding: lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		StatusFailed:   lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		StatusPending:  lipgloss.NewStyle().Faint(true),
	}
)

// StatusStyle returns the lipgloss style for the given status string.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
