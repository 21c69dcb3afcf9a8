// Package theme resolves the storefront color palette. It depends only on
// lipgloss so that plain output code can use it without the terminal UI.
package theme

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the storefront color palette.
type Theme struct {
	Primary    lipgloss.AdaptiveColor
	Secondary  lipgloss.AdaptiveColor
	Success    lipgloss.AdaptiveColor
	Warning    lipgloss.AdaptiveColor
	Error      lipgloss.AdaptiveColor
	Muted      lipgloss.AdaptiveColor
	Background lipgloss.AdaptiveColor
	Foreground lipgloss.AdaptiveColor
	Border     lipgloss.AdaptiveColor
	// Highlight marks the selected lockup.
	Highlight lipgloss.AdaptiveColor
}

// Default returns the built-in palette.
func Default() Theme {
	return Theme{
		Primary:    lipgloss.AdaptiveColor{Light: "#0066cc", Dark: "#4da3ff"},
		Secondary:  lipgloss.AdaptiveColor{Light: "#6e6e73", Dark: "#a1a1a6"},
		Success:    lipgloss.AdaptiveColor{Light: "#248a3d", Dark: "#30d158"},
		Warning:    lipgloss.AdaptiveColor{Light: "#b25000", Dark: "#ffd60a"},
		Error:      lipgloss.AdaptiveColor{Light: "#d70015", Dark: "#ff6961"},
		Muted:      lipgloss.AdaptiveColor{Light: "#8e8e93", Dark: "#636366"},
		Background: lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#1c1c1e"},
		Foreground: lipgloss.AdaptiveColor{Light: "#1d1d1f", Dark: "#f5f5f7"},
		Border:     lipgloss.AdaptiveColor{Light: "#d2d2d7", Dark: "#3a3a3c"},
		Highlight:  lipgloss.AdaptiveColor{Light: "#5e5ce6", Dark: "#7d7aff"},
	}
}

// Env names a colors.toml file that overrides the user theme.
const Env = "STOREFRONT_THEME"

// Resolve loads a theme with the following precedence:
//  1. NO_COLOR set: NoColor
//  2. STOREFRONT_THEME: the named colors.toml
//  3. <config dir>/storefront/theme/colors.toml
//  4. Default
//
// The theme directory can be a symlink into another theme system.
func Resolve() Theme {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return NoColor()
	}

	if path := os.Getenv(Env); path != "" {
		if theme, err := LoadFile(path); err == nil {
			return theme
		}
	}

	if theme, err := LoadUser(); err == nil {
		return theme
	}

	return Default()
}

// NoColor returns a theme with empty colors. Lipgloss renders empty
// colors as plain text.
func NoColor() Theme {
	empty := lipgloss.AdaptiveColor{}
	return Theme{
		Primary:    empty,
		Secondary:  empty,
		Success:    empty,
		Warning:    empty,
		Error:      empty,
		Muted:      empty,
		Background: empty,
		Foreground: empty,
		Border:     empty,
		Highlight:  empty,
	}
}

// UserPath returns where the user theme is read from.
func UserPath() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "storefront", "theme", "colors.toml"), nil
}

// LoadUser loads the theme at UserPath.
func LoadUser() (Theme, error) {
	path, err := UserPath()
	if err != nil {
		return Theme{}, err
	}
	return LoadFile(path)
}

// LoadFile parses a colors.toml file.
func LoadFile(path string) (Theme, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path from trusted config
	if err != nil {
		return Theme{}, err
	}
	return mapColorsToTheme(parseColors(string(data))), nil
}

// parseColors reads the key = "#hex" lines of a colors.toml file. Anything
// else, including tables and non-color values, is skipped.
func parseColors(data string) map[string]string {
	colors := make(map[string]string)
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' || line[0] == '[' {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		if i := inlineComment(value); i >= 0 {
			value = strings.TrimSpace(value[:i])
		}
		value = strings.Trim(value, `"'`)
		if isHexColor(value) {
			colors[strings.TrimSpace(key)] = value
		}
	}
	return colors
}

// inlineComment returns the index of a # outside quotes, or -1. A leading
// # starts an unquoted color, not a comment.
func inlineComment(s string) int {
	var quote rune
	for i, c := range s {
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '#' && i > 0:
			return i
		}
	}
	return -1
}

func isHexColor(s string) bool {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok || (len(hex) != 3 && len(hex) != 6) {
		return false
	}
	return strings.Trim(strings.ToLower(hex), "0123456789abcdef") == ""
}

// mapColorsToTheme maps terminal palette names onto theme roles. Terminal
// themes are usually dark, so only the Dark variants are overridden.
//
//	accent, color4  Primary
//	color7          Secondary
//	color2          Success
//	color3          Warning
//	color1          Error
//	color8, color0  Muted, Border
//	color5          Highlight
//	background      Background
//	foreground      Foreground
func mapColorsToTheme(colors map[string]string) Theme {
	theme := Default()

	dark := func(c *lipgloss.AdaptiveColor, keys ...string) {
		for _, k := range keys {
			if v, ok := colors[k]; ok {
				c.Dark = v
				return
			}
		}
	}

	dark(&theme.Primary, "accent", "color4")
	dark(&theme.Secondary, "color7")
	dark(&theme.Success, "color2")
	dark(&theme.Warning, "color3")
	dark(&theme.Error, "color1")
	dark(&theme.Muted, "color8", "color0")
	dark(&theme.Border, "color8", "color0")
	dark(&theme.Highlight, "color5", "accent", "color4")
	dark(&theme.Background, "background")
	dark(&theme.Foreground, "foreground")
	return theme
}
