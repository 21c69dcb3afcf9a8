package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
)

// Confirm shows a yes/no confirmation prompt.
func Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	err := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&result).
		Run()
	if err != nil {
		return defaultValue, err
	}
	return result, nil
}

// SecretInput prompts for a value without echoing it.
func SecretInput(title string) (string, error) {
	var result string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&result).
		Validate(required).
		Run()
	return strings.TrimSpace(result), err
}

// SelectOption is one choice in a select prompt.
type SelectOption struct {
	Value string
	Label string
}

// StartPage asks where to start browsing: a storefront, a tab, and an
// optional search term. Storefront and tab options come from the caller.
func StartPage(storefronts, tabs []SelectOption) (storefront, tab, term string, err error) {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Storefront").
				Options(toHuh(storefronts)...).
				Value(&storefront),
			huh.NewSelect[string]().
				Title("Start on").
				Options(toHuh(tabs)...).
				Value(&tab),
			huh.NewInput().
				Title("Search").
				Description("Leave blank to open the tab.").
				Value(&term),
		).Title("Browse the storefront"),
	)
	if err := form.Run(); err != nil {
		return "", "", "", err
	}
	return storefront, tab, strings.TrimSpace(term), nil
}

func toHuh(options []SelectOption) []huh.Option[string] {
	out := make([]huh.Option[string], len(options))
	for i, opt := range options {
		out[i] = huh.NewOption(opt.Label, opt.Value)
	}
	return out
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("this field is required")
	}
	return nil
}
