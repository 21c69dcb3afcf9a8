package browse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"

	"github.com/basecamp/storefront/internal/flow"
	"github.com/basecamp/storefront/internal/intent"
	"github.com/basecamp/storefront/internal/observability"
	"github.com/basecamp/storefront/internal/tui"
)

// frameInterval is the animation-frame cadence while frames are queued.
const frameInterval = 16 * time.Millisecond

type inputMode int

const (
	inputNone inputMode = iota
	inputURL
	inputSearch
)

// Options configures a Model.
type Options struct {
	StartURL string
	Styles   *tui.Styles
	// NavLog feeds the latency figure in the status bar. Optional.
	NavLog *observability.NavigationLog
	// MarkdownStyle is a glamour style name. Empty selects by terminal
	// background.
	MarkdownStyle string
	// Storefront is used for searches before any page has loaded.
	Storefront string
}

// Model is the bubbletea model for the storefront browser.
type Model struct {
	ctx     context.Context
	session *Session
	opts    Options
	styles  *tui.Styles
	keys    KeyMap
	spinner spinner.Model
	input   textinput.Model
	mode    inputMode

	width, height int
	renderer      *glamour.TermRenderer

	latestSeq uint64
	loading   bool
	page      *intent.Page
	err       error
	modal     *intent.Page

	description string
	lines       []string
	lockups     []intent.Lockup
	lockupLine  []int
	selected    int

	navs   int
	status string
	ticking bool
}

// New creates a Model bound to session. ctx bounds every navigation the
// model starts.
func New(ctx context.Context, session *Session, opts Options) Model {
	if opts.Styles == nil {
		opts.Styles = tui.NewStyles()
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = opts.Styles.Loading

	ti := textinput.New()
	ti.CharLimit = 512

	return Model{
		ctx:     ctx,
		session: session,
		opts:    opts,
		styles:  opts.Styles,
		keys:    DefaultKeyMap(),
		spinner: s,
		input:   ti,
		loading: true,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listen(), m.open(m.opts.StartURL))
}

// Page returns the page on screen.
func (m Model) Page() *intent.Page { return m.page }

// Err returns the error on screen, if any.
func (m Model) Err() error { return m.err }

// Modal returns the presented modal page, if any.
func (m Model) Modal() *intent.Page { return m.modal }

// Loading reports whether the spinner is shown.
func (m Model) Loading() bool { return m.loading }

func (m Model) listen() tea.Cmd {
	msgs := m.session.Msgs()
	return func() tea.Msg {
		msg, ok := <-msgs
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) open(rawURL string) tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		return outcomeMsg{what: rawURL, outcome: s.Open(ctx, rawURL)}
	}
}

func (m Model) perform(a intent.FlowAction) tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		return outcomeMsg{what: a.Title, outcome: s.Perform(ctx, a)}
	}
}

func (m Model) await(u flow.Update) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		p, err := u.Page.Await(ctx)
		return pageMsg{seq: u.Seq, page: p, err: err}
	}
}

func (m *Model) frames() tea.Cmd {
	if m.ticking {
		return nil
	}
	m.ticking = true
	return tea.Tick(frameInterval, func(time.Time) tea.Msg { return frameMsg{} })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.renderer = nil
		m.description = ""
		m.session.Viewport().SetHeight(float64(m.bodyHeight()))
		m.input.Width = max(10, m.width-4)
		m.relayout()
		return m, nil

	case updateMsg:
		if msg.Seq < m.latestSeq {
			return m, m.listen()
		}
		m.latestSeq = msg.Seq
		m.loading = !msg.SettledEarly
		m.status = ""
		return m, tea.Batch(m.await(msg.Update), m.listen())

	case pageMsg:
		if msg.seq < m.latestSeq {
			return m, nil
		}
		m.loading = false
		m.navs++
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.page = msg.page
			m.selected = 0
			m.description = ""
		}
		m.relayout()
		return m, m.frames()

	case notFoundMsg:
		m.loading = false
		m.err = &flow.NotFoundError{URL: msg.url}
		return m, m.listen()

	case modalMsg:
		m.modal = msg.page
		return m, m.listen()

	case leftAppMsg:
		m.status = "Left the storefront for " + msg.url
		return m, m.listen()

	case outcomeMsg:
		if msg.outcome == intent.OutcomeUnsupported {
			m.loading = false
			m.status = "Can't open " + msg.what
		}
		return m, nil

	case navMsg:
		if !msg.moved {
			m.status = "No further history"
		}
		return m, m.frames()

	case frameMsg:
		m.ticking = false
		if m.session.Tick() {
			return m, m.frames()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.mode != inputNone {
			return m.updateInput(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.session
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Dismiss):
		m.modal = nil
		return m, nil

	case key.Matches(msg, m.keys.Back):
		m.modal = nil
		return m, func() tea.Msg { return navMsg{moved: s.Back()} }

	case key.Matches(msg, m.keys.Forward):
		m.modal = nil
		return m, func() tea.Msg { return navMsg{moved: s.Forward()} }

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
			m.relayout()
			m.reveal()
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.lockups)-1 {
			m.selected++
			m.relayout()
			m.reveal()
		}
		return m, nil

	case key.Matches(msg, m.keys.ScrollUp):
		s.Viewport().ScrollBy(-1)
		return m, nil

	case key.Matches(msg, m.keys.ScrollDn):
		s.Viewport().ScrollBy(1)
		return m, nil

	case key.Matches(msg, m.keys.Open):
		if m.selected < len(m.lockups) {
			return m, m.perform(m.lockups[m.selected].Action)
		}
		return m, nil

	case key.Matches(msg, m.keys.GoTo):
		return m.startInput(inputURL, "Go to: ", s.Location())

	case key.Matches(msg, m.keys.Search):
		return m.startInput(inputSearch, "Search: ", "")

	case key.Matches(msg, m.keys.Retry):
		var pfe *flow.PageFetchError
		if errors.As(m.err, &pfe) && pfe.RetryAction != nil {
			return m, m.perform(*pfe.RetryAction)
		}
		return m, nil
	}
	return m, nil
}

func (m Model) startInput(mode inputMode, prompt, value string) (tea.Model, tea.Cmd) {
	m.mode = mode
	m.input.Prompt = prompt
	m.input.SetValue(value)
	m.input.CursorEnd()
	return m, m.input.Focus()
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = inputNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m.mode = inputNone
		m.input.Blur()
		if value == "" {
			return m, nil
		}
		if mode == inputSearch {
			value = "/" + m.storefront() + "/search?term=" + url.QueryEscape(value)
		}
		return m, m.open(value)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) storefront() string {
	if m.page != nil && m.page.Metrics != nil {
		if sf := m.page.Metrics.Fields["storefront"]; sf != "" {
			return sf
		}
	}
	return m.opts.Storefront
}

// reveal scrolls the viewport so the selected lockup is visible.
func (m *Model) reveal() {
	if m.selected >= len(m.lockupLine) {
		return
	}
	vp := m.session.Viewport()
	line := float64(m.lockupLine[m.selected])
	top := vp.ScrollTop()
	h := float64(m.bodyHeight())
	switch {
	case line < top:
		vp.SetScrollTop(line)
	case line >= top+h:
		vp.SetScrollTop(line - h + 1)
	}
}

func (m Model) bodyHeight() int {
	// status bar and input line
	return max(1, m.height-2)
}

func (m *Model) markdown(text string) string {
	if text == "" || m.width <= 0 {
		return text
	}
	if m.renderer == nil {
		opt := glamour.WithAutoStyle()
		if m.opts.MarkdownStyle != "" {
			opt = glamour.WithStandardStyle(m.opts.MarkdownStyle)
		}
		r, err := glamour.NewTermRenderer(opt, glamour.WithWordWrap(m.width))
		if err != nil {
			return text
		}
		m.renderer = r
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// relayout rebuilds the page lines and the viewport's content height.
func (m *Model) relayout() {
	m.lines = m.lines[:0]
	m.lockups = m.lockups[:0]
	m.lockupLine = m.lockupLine[:0]

	if m.page != nil {
		p := m.page
		m.lines = append(m.lines, strings.Split(m.styles.RenderTitle(p.Title, p.CanonicalURL), "\n")...)
		if p.Description != "" {
			if m.description == "" {
				m.description = m.markdown(p.Description)
			}
			m.lines = append(m.lines, "")
			m.lines = append(m.lines, strings.Split(m.description, "\n")...)
		}
		for _, shelf := range p.Shelves {
			m.lines = append(m.lines, "", m.styles.ShelfTitle.UnsetMarginTop().Render(shelf.Title))
			for _, l := range shelf.Items {
				m.lockupLine = append(m.lockupLine, len(m.lines))
				selected := len(m.lockups) == m.selected
				m.lockups = append(m.lockups, l)
				m.lines = append(m.lines, m.styles.RenderLockup(l.Title, l.Subtitle, selected))
			}
		}
	}
	if m.width > 0 {
		for i, line := range m.lines {
			m.lines[i] = ansi.Truncate(line, m.width, "…")
		}
	}
	m.session.Viewport().SetContentHeight(float64(len(m.lines)))
}

// View implements tea.Model.
func (m Model) View() string {
	var body string
	switch {
	case m.err != nil:
		body = m.errorView()
	case m.page == nil:
		body = m.spinner.View() + " Loading…"
	default:
		body = m.pageView()
	}

	if m.modal != nil {
		body = m.modalView()
	}

	var footer string
	if m.mode != inputNone {
		footer = m.input.View()
	} else if m.loading && m.page != nil {
		footer = m.spinner.View() + " Loading…"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Height(m.bodyHeight()).MaxHeight(m.bodyHeight()).Render(body),
		footer,
		m.statusBar(),
	)
}

func (m Model) pageView() string {
	top := int(m.session.Viewport().ScrollTop())
	if top > len(m.lines) {
		top = len(m.lines)
	}
	end := min(len(m.lines), top+m.bodyHeight())
	return strings.Join(m.lines[top:end], "\n")
}

func (m Model) errorView() string {
	var sc interface{ StatusCode() int }
	if errors.As(m.err, &sc) && sc.StatusCode() == http.StatusNotFound {
		return m.styles.Error.Render("Page not found") + "\n" +
			m.styles.Muted.Render(m.session.Location())
	}
	msg := m.styles.Error.Render(m.err.Error())
	var pfe *flow.PageFetchError
	if errors.As(m.err, &pfe) && pfe.RetryAction != nil {
		msg += "\n" + m.styles.Muted.Render("Press r to retry")
	}
	return msg
}

func (m Model) modalView() string {
	p := m.modal
	var b strings.Builder
	b.WriteString(m.styles.RenderTitle(p.Title))
	if p.Description != "" {
		b.WriteString("\n\n" + p.Description)
	}
	for _, shelf := range p.Shelves {
		b.WriteString("\n\n" + m.styles.ShelfTitle.UnsetMarginTop().Render(shelf.Title))
		for _, l := range shelf.Items {
			b.WriteString("\n" + m.styles.RenderLockup(l.Title, l.Subtitle, false))
		}
	}
	b.WriteString("\n\n" + m.styles.Muted.Render("esc to close"))
	box := m.styles.Modal.MaxWidth(max(20, m.width-4)).Render(b.String())
	return lipgloss.Place(m.width, m.bodyHeight(), lipgloss.Center, lipgloss.Center, box)
}

func (m Model) statusBar() string {
	pos, total := m.session.Depth()
	parts := []string{
		m.styles.StatusKey.Render(m.storefront()),
		fmt.Sprintf("%d/%d", pos, total),
		humanize.Comma(int64(m.navs)) + " pages",
	}
	if m.opts.NavLog != nil {
		if sum := m.opts.NavLog.Summary(); sum.Count > 0 {
			parts = append(parts, fmt.Sprintf("p50 %s", sum.P50Latency.Round(time.Millisecond)))
		}
	}
	if m.status != "" {
		parts = append(parts, m.status)
	} else {
		hints := make([]string, 0, len(m.keys.Hints()))
		for _, h := range m.keys.Hints() {
			hints = append(hints, h.Help().Key+" "+h.Help().Desc)
		}
		parts = append(parts, strings.Join(hints, "  "))
	}
	line := ansi.Truncate(strings.Join(parts, " │ "), max(0, m.width-2), "…")
	return m.styles.StatusBar.Width(max(0, m.width)).Render(line)
}
