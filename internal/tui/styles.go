package tui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles of the toggle screen.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	On      lipgloss.Style
	Off     lipgloss.Style
	Subtle  lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Box     lipgloss.Style
}

// DefaultStyles returns the dark palette styles.
func DefaultStyles() Styles {
	accent := lipgloss.Color("#FF4E45")
	muted := lipgloss.Color("#7A7A85")

	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(accent),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("#E6E6EB")),
		On:      lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#0B0B0F")).Background(lipgloss.Color("#3DDC84")),
		Off:     lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(lipgloss.Color("#E6E6EB")).Background(lipgloss.Color("#3A3A44")),
		Subtle:  lipgloss.NewStyle().Foreground(muted),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB454")),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(1, 2),
	}
}
