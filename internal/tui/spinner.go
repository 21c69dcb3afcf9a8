package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCanceled is returned when the user quits a spinner before the work
// finishes.
var ErrCanceled = errors.New("canceled")

type spinnerModel struct {
	spinner  spinner.Model
	message  string
	done     bool
	result   string
	err      error
	styles   *Styles
	quitting bool
}

type spinnerDoneMsg struct {
	result string
	err    error
}

func newSpinnerModel(message string, styles *Styles) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.Loading
	return spinnerModel{spinner: s, message: message, styles: styles}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
	case spinnerDoneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.quitting || (m.done && m.result == "") {
		return ""
	}
	if m.done {
		return m.styles.RenderStatus(m.err == nil, m.result) + "\n"
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), m.message)
}

// Spinner shows progress on stderr while a function runs.
type Spinner struct {
	message string
	styles  *Styles
	opts    []tea.ProgramOption
}

// NewSpinner creates a spinner with a message. Program options select the
// output stream; a spinner should never write to stdout when stdout
// carries data.
func NewSpinner(message string, styles *Styles, opts ...tea.ProgramOption) *Spinner {
	if styles == nil {
		styles = NewStyles()
	}
	return &Spinner{message: message, styles: styles, opts: opts}
}

// Run executes fn while the spinner animates and returns its result.
// done, when non-empty, is shown after fn succeeds.
func Run[T any](s *Spinner, done string, fn func() (T, error)) (T, error) {
	var (
		value T
		fnErr error
	)
	p := tea.NewProgram(newSpinnerModel(s.message, s.styles), s.opts...)

	go func() {
		value, fnErr = fn()
		msg := spinnerDoneMsg{err: fnErr}
		if fnErr == nil {
			msg.result = done
		}
		p.Send(msg)
	}()

	final, err := p.Run()
	if err != nil {
		var zero T
		return zero, err
	}
	if final.(spinnerModel).quitting { //nolint:errcheck // always a spinnerModel
		var zero T
		return zero, ErrCanceled
	}
	return value, fnErr
}
