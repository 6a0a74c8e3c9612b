package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.Color("#7D56F4")
	colorMuted  = lipgloss.Color("#6C6C6C")
	colorError  = lipgloss.Color("#FF5F56")
	colorLive   = lipgloss.Color("#27C93F")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	tabStyle   = lipgloss.NewStyle().Foreground(colorMuted).Padding(0, 1)
	activeTab  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1).Underline(true)

	metaStyle    = lipgloss.NewStyle().Foreground(colorMuted)
	ownMeta      = metaStyle.Align(lipgloss.Right)
	bodyStyle    = lipgloss.NewStyle().PaddingLeft(2)
	ownBodyStyle = lipgloss.NewStyle().Foreground(colorAccent).Align(lipgloss.Right)

	errorStyle = lipgloss.NewStyle().Foreground(colorError)
	liveStyle  = lipgloss.NewStyle().Foreground(colorLive)
	hintStyle  = lipgloss.NewStyle().Foreground(colorMuted).Italic(true)
	inputStyle = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderTop(true).BorderForeground(colorMuted)
)
