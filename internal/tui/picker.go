package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// PickerItem is one page a picker offers. ID is the page URL.
type PickerItem struct {
	ID          string
	Title       string
	Description string
}

// FilterValue returns the text the filter matches against.
func (i PickerItem) FilterValue() string {
	return i.Title + " " + i.Description + " " + i.ID
}

type pickerModel struct {
	items        []PickerItem
	filtered     []PickerItem
	original     map[string]PickerItem
	recent       []PickerItem
	input        textinput.Model
	cursor       int
	offset       int
	maxVisible   int
	selected     *PickerItem
	quitting     bool
	styles       *Styles
	title        string
	emptyMessage string
}

// PickerOption configures a picker.
type PickerOption func(*pickerModel)

// WithPickerTitle sets the picker title.
func WithPickerTitle(title string) PickerOption {
	return func(m *pickerModel) { m.title = title }
}

// WithMaxVisible sets how many rows show at once.
func WithMaxVisible(n int) PickerOption {
	return func(m *pickerModel) { m.maxVisible = n }
}

// WithRecentItems lists items first, marked as recent. Duplicates further
// down are dropped.
func WithRecentItems(items []PickerItem) PickerOption {
	return func(m *pickerModel) { m.recent = items }
}

// WithEmptyMessage sets the text shown when nothing matches.
func WithEmptyMessage(msg string) PickerOption {
	return func(m *pickerModel) { m.emptyMessage = msg }
}

func newPickerModel(items []PickerItem, opts ...PickerOption) pickerModel {
	ti := textinput.New()
	ti.Placeholder = "Type to filter..."
	ti.Width = 40
	ti.Focus()

	m := pickerModel{
		input:        ti,
		styles:       NewStyles(),
		title:        "Select a page",
		maxVisible:   10,
		emptyMessage: "No pages match",
		original:     make(map[string]PickerItem),
	}
	for _, opt := range opts {
		opt(&m)
	}

	for _, item := range items {
		m.original[item.ID] = item
	}
	seen := make(map[string]bool)
	for _, item := range m.recent {
		m.original[item.ID] = item
		seen[item.ID] = true
		m.items = append(m.items, PickerItem{
			ID:          item.ID,
			Title:       "* " + item.Title,
			Description: "(recent) " + item.Description,
		})
	}
	for _, item := range items {
		if !seen[item.ID] {
			m.items = append(m.items, item)
		}
	}
	m.filtered = m.items
	return m
}

func (m pickerModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case "enter":
		if m.cursor < len(m.filtered) {
			m.selected = m.originalItem(m.filtered[m.cursor].ID)
		}
		return m, tea.Quit
	case "tab":
		if len(m.filtered) > 0 {
			m.selected = m.originalItem(m.filtered[0].ID)
		}
		return m, tea.Quit
	case "up", "ctrl+p":
		m.move(-1)
	case "down", "ctrl+n":
		m.move(1)
	case "ctrl+u":
		m.move(-m.maxVisible / 2)
	case "ctrl+d":
		m.move(m.maxVisible / 2)
	default:
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(key)
		m.filtered = m.filter(m.input.Value())
		m.cursor = 0
		m.offset = 0
		return m, cmd
	}
	return m, nil
}

// move shifts the cursor by delta, clamped, and keeps it on screen.
func (m *pickerModel) move(delta int) {
	m.cursor = max(0, min(m.cursor+delta, len(m.filtered)-1))
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+m.maxVisible {
		m.offset = m.cursor - m.maxVisible + 1
	}
}

func (m pickerModel) filter(query string) []PickerItem {
	if query == "" {
		return m.items
	}
	query = strings.ToLower(query)
	var result []PickerItem
	for _, item := range m.items {
		if strings.Contains(strings.ToLower(item.FilterValue()), query) {
			result = append(result, item)
		}
	}
	return result
}

// originalItem returns the item as the caller passed it, without the recent
// decoration.
func (m pickerModel) originalItem(id string) *PickerItem {
	if item, ok := m.original[id]; ok {
		return &item
	}
	for _, item := range m.items {
		if item.ID == id {
			return &item
		}
	}
	return nil
}

func (m pickerModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Title.Render(m.title) + "\n\n")
	b.WriteString(m.input.View() + "\n\n")

	if len(m.filtered) == 0 {
		b.WriteString(m.styles.Muted.Render(m.emptyMessage) + "\n")
	} else {
		end := min(m.offset+m.maxVisible, len(m.filtered))
		for i := m.offset; i < end; i++ {
			item := m.filtered[i]
			style := m.styles.Lockup
			if i == m.cursor {
				style = m.styles.LockupSelected
			}
			line := style.Render(item.Title)
			if item.Description != "" {
				line += m.styles.Muted.Render(" - " + item.Description)
			}
			b.WriteString(line + "\n")
		}
		if len(m.filtered) > m.maxVisible {
			b.WriteString("\n" + m.styles.Muted.Render(fmt.Sprintf("Showing %d-%d of %d", m.offset+1, end, len(m.filtered))) + "\n")
		}
	}

	b.WriteString("\n" + m.styles.Muted.Render("↑↓ navigate • enter select • tab first • esc cancel"))
	return b.String()
}

// Picker shows a filterable list of pages.
type Picker struct {
	items   []PickerItem
	opts    []PickerOption
	program []tea.ProgramOption
}

// NewPicker creates a picker over items.
func NewPicker(items []PickerItem, opts ...PickerOption) *Picker {
	return &Picker{items: items, opts: opts}
}

// WithProgramOptions passes options to the underlying tea.Program.
func (p *Picker) WithProgramOptions(opts ...tea.ProgramOption) *Picker {
	p.program = append(p.program, opts...)
	return p
}

// Run shows the picker and returns the chosen item, or nil if the user
// canceled.
func (p *Picker) Run() (*PickerItem, error) {
	final, err := tea.NewProgram(newPickerModel(p.items, p.opts...), p.program...).Run()
	if err != nil {
		return nil, err
	}
	m := final.(pickerModel) //nolint:errcheck // the program only ever holds a pickerModel
	if m.quitting {
		return nil, nil
	}
	return m.selected, nil
}
