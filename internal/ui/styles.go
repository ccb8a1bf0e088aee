package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/gubarz/acecode/internal/config"
)

// StyleManager encapsulates all TUI styles and provides methods for style operations
type StyleManager struct {
	// List view styles
	Header   lipgloss.Style
	Path     lipgloss.Style
	Language lipgloss.Style
	Selected lipgloss.Style
	Cursor   lipgloss.Style
	Dim      lipgloss.Style

	// Preview styles
	Tab       lipgloss.Style
	ActiveTab lipgloss.Style
	Success   lipgloss.Style
	Failure   lipgloss.Style

	// Chrome styles
	Border  lipgloss.Style
	Divider lipgloss.Style

	// Colors for direct access
	SelectedBg lipgloss.Color
}

// DefaultStyles returns a StyleManager with default styles
func DefaultStyles() *StyleManager {
	return &StyleManager{
		Header:     lipgloss.NewStyle().Bold(true),
		Path:       lipgloss.NewStyle(),
		Language:   lipgloss.NewStyle().Italic(true),
		Selected:   lipgloss.NewStyle().Background(lipgloss.Color("236")),
		Cursor:     lipgloss.NewStyle().Foreground(lipgloss.Color("212")),
		Dim:        lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Tab:        lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("241")),
		ActiveTab:  lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true),
		Success:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		Failure:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		Border:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")),
		Divider:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		SelectedBg: lipgloss.Color("236"),
	}
}

// LoadFromConfig updates styles based on configuration
func (s *StyleManager) LoadFromConfig() {
	headerColor := parseANSIColor(config.GetColorHeader())
	pathColor := parseANSIColor(config.GetColorPath())
	borderColor := lipgloss.Color(config.GetColorBorder())
	cursorColor := lipgloss.Color(config.GetColorCursor())
	selectedBg := lipgloss.Color(config.GetColorSelected())
	dimColor := lipgloss.Color(config.GetColorDim())

	s.Header = lipgloss.NewStyle().Bold(true).Foreground(headerColor)
	s.Path = lipgloss.NewStyle().Foreground(pathColor)
	s.Language = lipgloss.NewStyle().Italic(true).Foreground(dimColor)
	s.Selected = lipgloss.NewStyle().Background(selectedBg)
	s.Cursor = lipgloss.NewStyle().Foreground(cursorColor)
	s.Dim = lipgloss.NewStyle().Foreground(dimColor)
	s.Tab = lipgloss.NewStyle().Padding(0, 1).Foreground(dimColor)

	s.Border = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(borderColor)
	s.Divider = lipgloss.NewStyle().Foreground(borderColor)
	s.SelectedBg = selectedBg
}

// WithSelection returns a copy of the given style with the selected background applied
func (s *StyleManager) WithSelection(style lipgloss.Style) lipgloss.Style {
	return style.Background(s.SelectedBg)
}

// parseANSIColor converts ANSI color codes to lipgloss colors
func parseANSIColor(code string) lipgloss.Color {
	ansiToLipgloss := map[string]string{
		"30": "0", "31": "1", "32": "2", "33": "3",
		"34": "4", "35": "5", "36": "6", "37": "7",
		"90": "8", "91": "9", "92": "10", "93": "11",
		"94": "12", "95": "13", "96": "14", "97": "15",
	}
	if mapped, ok := ansiToLipgloss[code]; ok {
		return lipgloss.Color(mapped)
	}
	return lipgloss.Color(code)
}

// Global style manager instance
var styles = DefaultStyles()

// RefreshStyles updates the global styles from config
func RefreshStyles() {
	styles.LoadFromConfig()
}
