// Package tui provides the terminal styling shared by the storefront
// browser and CLI output.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/basecamp/storefront/internal/tui/theme"
)

// Styles holds the styled components.
type Styles struct {
	theme theme.Theme

	// Page
	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	ShelfTitle lipgloss.Style
	Body       lipgloss.Style
	Muted      lipgloss.Style
	Success    lipgloss.Style
	Warning    lipgloss.Style
	Error      lipgloss.Style

	// Lockups
	Lockup         lipgloss.Style
	LockupSelected lipgloss.Style
	LockupSubtitle lipgloss.Style

	// Chrome
	Modal      lipgloss.Style
	StatusBar  lipgloss.Style
	StatusKey  lipgloss.Style
	Loading    lipgloss.Style
	Breadcrumb lipgloss.Style
}

// NewStyles creates Styles with the resolved theme.
func NewStyles() *Styles {
	return NewStylesWithTheme(theme.Resolve())
}

// NewStylesWithTheme creates Styles with theme.
func NewStylesWithTheme(th theme.Theme) *Styles {
	s := &Styles{theme: th}

	s.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(th.Primary)

	s.Subtitle = lipgloss.NewStyle().
		Foreground(th.Secondary)

	s.ShelfTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(th.Foreground).
		MarginTop(1)

	s.Body = lipgloss.NewStyle().
		Foreground(th.Foreground)

	s.Muted = lipgloss.NewStyle().
		Foreground(th.Muted)

	s.Success = lipgloss.NewStyle().
		Foreground(th.Success)

	s.Warning = lipgloss.NewStyle().
		Foreground(th.Warning)

	s.Error = lipgloss.NewStyle().
		Foreground(th.Error).
		Bold(true)

	s.Lockup = lipgloss.NewStyle().
		Foreground(th.Foreground).
		PaddingLeft(2)

	s.LockupSelected = lipgloss.NewStyle().
		Foreground(th.Highlight).
		Bold(true).
		PaddingLeft(1).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(th.Highlight)

	s.LockupSubtitle = lipgloss.NewStyle().
		Foreground(th.Muted)

	s.Modal = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(th.Primary).
		Padding(1, 2)

	s.StatusBar = lipgloss.NewStyle().
		Foreground(th.Secondary).
		Background(th.Border).
		Padding(0, 1)

	s.StatusKey = lipgloss.NewStyle().
		Foreground(th.Foreground).
		Background(th.Border).
		Bold(true)

	s.Loading = lipgloss.NewStyle().
		Foreground(th.Primary)

	s.Breadcrumb = lipgloss.NewStyle().
		Foreground(th.Muted).
		Italic(true)

	return s
}

// Theme returns the current theme.
func (s *Styles) Theme() theme.Theme {
	return s.theme
}

// RenderTitle renders a page title with optional subtitle.
func (s *Styles) RenderTitle(title string, subtitle ...string) string {
	result := s.Title.Render(title)
	if len(subtitle) > 0 && subtitle[0] != "" {
		result += "\n" + s.Subtitle.Render(subtitle[0])
	}
	return result
}

// RenderLockup renders one lockup line.
func (s *Styles) RenderLockup(title, subtitle string, selected bool) string {
	style := s.Lockup
	if selected {
		style = s.LockupSelected
	}
	line := style.Render(title)
	if subtitle != "" {
		line += "  " + s.LockupSubtitle.Render(subtitle)
	}
	return line
}

// RenderStatus renders a status message with appropriate styling.
func (s *Styles) RenderStatus(ok bool, message string) string {
	if ok {
		return s.Success.Render("✓ " + message)
	}
	return s.Error.Render("✗ " + message)
}
