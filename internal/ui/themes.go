package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/yildizm/nginx-config-viewer/internal/viewer"
)

// Theme represents a color theme for the TUI
type Theme struct {
	// Name is the theme identifier the view was handed.
	Name string

	// ChromaStyle names the syntax highlighting style used for the config text.
	ChromaStyle string

	// Primary colors
	Primary   lipgloss.Color
	Secondary lipgloss.Color

	// Semantic colors
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color

	// UI colors
	Border     lipgloss.Color
	Background lipgloss.Color
	Foreground lipgloss.Color
	Muted      lipgloss.Color
	Badge      lipgloss.Color
}

// buildTheme creates a theme with the given colors
func buildTheme(name, chromaStyle string, primary, secondary, success, warning, errorColor, border, background, foreground, muted, badge string) Theme {
	return Theme{
		Name:        name,
		ChromaStyle: chromaStyle,
		Primary:     lipgloss.Color(primary),
		Secondary:   lipgloss.Color(secondary),
		Success:     lipgloss.Color(success),
		Warning:     lipgloss.Color(warning),
		Error:       lipgloss.Color(errorColor),
		Border:      lipgloss.Color(border),
		Background:  lipgloss.Color(background),
		Foreground:  lipgloss.Color(foreground),
		Muted:       lipgloss.Color(muted),
		Badge:       lipgloss.Color(badge),
	}
}

// Available themes, one per color scheme.
var (
	DarkTheme = buildTheme(viewer.ThemeDark, "github-dark",
		"#60A5FA", "#9CA3AF", "#34D399", "#FBBF24", "#F87171",
		"#374151", "#0D1117", "#E6EDF3", "#8B949E", "#1F2937")

	LightTheme = buildTheme(viewer.ThemeLight, "github",
		"#1E40AF", "#6B7280", "#059669", "#D97706", "#DC2626",
		"#D1D5DB", "#FFFFFF", "#1F2328", "#6E7781", "#EAEEF2")
)

// ThemeFor returns the theme matching mode.
func ThemeFor(mode viewer.ThemeMode) Theme {
	return ThemeByName(mode.Theme())
}

// ThemeByName resolves a theme identifier. Unknown names get the light
// theme, matching the identifier a non-dark scheme maps to.
func ThemeByName(name string) Theme {
	if name == viewer.ThemeDark {
		return DarkTheme
	}
	return LightTheme
}

// IsColorDisabled checks if colors should be disabled
func IsColorDisabled() bool {
	return os.Getenv("NO_COLOR") != ""
}

// Styles contains all the styled components
type Styles struct {
	Theme Theme

	Title  lipgloss.Style
	Source lipgloss.Style
	Badge  lipgloss.Style
	Muted  lipgloss.Style
	Body   lipgloss.Style

	// Connection indicator styles
	Connected    lipgloss.Style
	Connecting   lipgloss.Style
	Disconnected lipgloss.Style

	Error   lipgloss.Style
	Spinner lipgloss.Style
	Header  lipgloss.Style
}

// GetStyles returns styled components for theme. With noColor every style
// keeps its layout but drops colors.
func GetStyles(theme Theme, noColor bool) *Styles {
	if noColor {
		plain := lipgloss.NewStyle()
		return &Styles{
			Theme:        theme,
			Title:        plain.Bold(true),
			Source:       plain,
			Badge:        plain.Padding(0, 1),
			Muted:        plain,
			Body:         plain,
			Connected:    plain,
			Connecting:   plain,
			Disconnected: plain,
			Error:        plain.Bold(true),
			Spinner:      plain,
			Header: plain.
				Border(lipgloss.NormalBorder(), false, false, true, false),
		}
	}

	return &Styles{
		Theme: theme,

		Title: lipgloss.NewStyle().
			Foreground(theme.Primary).
			Bold(true),

		Source: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Badge: lipgloss.NewStyle().
			Foreground(theme.Secondary).
			Background(theme.Badge).
			Padding(0, 1),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Body: lipgloss.NewStyle().
			Foreground(theme.Foreground),

		Connected: lipgloss.NewStyle().
			Foreground(theme.Success),

		Connecting: lipgloss.NewStyle().
			Foreground(theme.Warning),

		Disconnected: lipgloss.NewStyle().
			Foreground(theme.Error),

		Error: lipgloss.NewStyle().
			Foreground(theme.Error).
			Bold(true),

		Spinner: lipgloss.NewStyle().
			Foreground(theme.Primary),

		Header: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(theme.Border),
	}
}

// ConnStyle picks the indicator style for a connection state.
func (s *Styles) ConnStyle(state viewer.ConnState) lipgloss.Style {
	switch state {
	case viewer.ConnOpen:
		return s.Connected
	case viewer.ConnConnecting:
		return s.Connecting
	default:
		return s.Disconnected
	}
}
