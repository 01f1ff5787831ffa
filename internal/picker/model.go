package picker

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/runger/runsel/internal/entry"
	"github.com/runger/runsel/internal/keybind"
	"github.com/runger/runsel/internal/match"
)

// DefaultPollInterval is how often visible entries are polled for previews.
const DefaultPollInterval = 50 * time.Millisecond

// minPreviewWidth is the narrowest terminal that still gets a preview pane.
const minPreviewWidth = 40

// pickerState represents the current state of the picker's state machine.
type pickerState int

const (
	stateBrowsing  pickerState = iota // Accepting input
	stateSelected                     // An action key finished the session
	stateCancelled                    // User cancelled (Esc / Ctrl+C)
)

// tickMsg drives preview polling.
type tickMsg struct{}

// ReloadMsg replaces the entry set, for example after the source file
// changed. The query is kept and the selection follows the focused name.
type ReloadMsg struct {
	Entries []*entry.Entry
}

// Options configure a Model.
type Options struct {
	Title               string // Shown in the status line, usually the source path
	Prompt              string
	Query               string
	PollInterval        time.Duration
	PreviewWidthPercent int
	MultiSelect         bool
	Matcher             match.Matcher
	Keys                *keybind.Set
}

// Result is what the session ended with.
type Result struct {
	Key     keybind.ActionKey
	Entries []*entry.Entry
}

// Model is the Bubble Tea model for the selector TUI.
type Model struct {
	state pickerState
	opts  Options
	keys  keyMap

	all       []*entry.Entry // Source order
	visible   []*entry.Entry // Matched, best first
	selection int            // Index into visible; -1 when empty
	offset    int            // First visible row

	dispatcher entry.Dispatcher

	input   textinput.Model
	preview viewport.Model
	help    help.Model

	previewFor *entry.Entry // Entry whose lines the viewport shows

	width  int // Terminal width
	height int // Terminal height

	result Result
}

// NewModel creates a picker over entries. Previews are computed through d.
func NewModel(entries []*entry.Entry, d entry.Dispatcher, opts Options) Model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Keys == nil {
		opts.Keys = keybind.DefaultSet()
	}

	ti := textinput.New()
	ti.Prompt = opts.Prompt
	ti.PromptStyle = promptStyle
	ti.SetValue(opts.Query)
	ti.Focus()

	m := Model{
		state:      stateBrowsing,
		opts:       opts,
		keys:       defaultKeyMap(),
		all:        entries,
		dispatcher: d,
		input:      ti,
		preview:    viewport.New(0, 0),
		help:       help.New(),
	}
	m.refilter()
	return m
}

// Result returns how the session ended; ok is false when it was cancelled
// or is still running.
func (m Model) Result() (Result, bool) {
	return m.result, m.state == stateSelected
}

// Cancelled reports whether the user dismissed the picker.
func (m Model) Cancelled() bool {
	return m.state == stateCancelled
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.opts.PollInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.input.Width = max(msg.Width-runewidth.StringWidth(m.opts.Prompt)-1, 1)
		m.layout()
		m.clampOffset()
		m.syncPreview(true)
		return m, nil

	case tickMsg:
		if m.state != stateBrowsing {
			return m, nil
		}
		m.pollVisible()
		return m, m.tick()

	case ReloadMsg:
		return m.handleReload(msg), nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	pressed := msg.String()

	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.state = stateCancelled
		return m, tea.Quit

	case key.Matches(msg, m.keys.Up):
		m.move(-1)
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.move(1)
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.move(-m.listHeight())
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.move(m.listHeight())
		return m, nil

	case key.Matches(msg, m.keys.PreviewUp):
		m.preview.HalfPageUp()
		return m, nil

	case key.Matches(msg, m.keys.PreviewDown):
		m.preview.HalfPageDown()
		return m, nil

	case m.opts.MultiSelect && key.Matches(msg, m.opts.Keys.Mark.Binding()):
		if e := m.selected(); e != nil {
			e.IsMarked = !e.IsMarked
			m.move(1)
		}
		return m, nil

	case key.Matches(msg, m.opts.Keys.RefreshPreview.Binding()):
		if e := m.selected(); e != nil && e.InvalidatePreview() {
			e.RefreshPreviewTask(m.dispatcher)
			// Invalidation drops an update the tick has not reported yet.
			m.syncPreview(false)
		}
		return m, nil
	}

	if ak, ok := keybind.Match(m.actionKeys(), pressed); ok {
		if entries := m.chosen(); len(entries) > 0 {
			m.state = stateSelected
			m.result = Result{Key: ak, Entries: entries}
			return m, tea.Quit
		}
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.refilter()
	}
	return m, cmd
}

// handleReload swaps in a new entry set.
func (m Model) handleReload(msg ReloadMsg) Model {
	var focused string
	if e := m.selected(); e != nil {
		focused = e.Name
	}

	m.all = msg.Entries
	m.previewFor = nil
	m.refilter()

	for i, e := range m.visible {
		if e.Name == focused {
			m.selection = i
			break
		}
	}
	m.clampOffset()
	m.syncPreview(true)
	return m
}

// refilter rematches the query against every entry and resets the cursor.
func (m *Model) refilter() {
	m.visible = m.opts.Matcher.Match(m.input.Value(), m.all)
	m.selection = 0
	m.offset = 0
	m.clampSelection()
	m.syncPreview(false)
}

// pollVisible advances the preview of every row on screen. Only rows the
// user can see start scripts.
func (m *Model) pollVisible() {
	end := min(m.offset+m.listHeight(), len(m.visible))
	for i := m.offset; i < end; i++ {
		e := m.visible[i]
		if e.RefreshPreviewTask(m.dispatcher) && i == m.selection {
			m.syncPreview(false)
		}
	}
}

// actionKeys are the keys that can finish the session right now.
func (m Model) actionKeys() []keybind.ActionKey {
	if m.markedCount() > 0 {
		if e := m.selected(); e != nil {
			return e.ActionKeysMultiSelection()
		}
		return m.opts.Keys.DefaultActionKeysMultiSelection
	}
	if e := m.selected(); e != nil {
		return e.ActionKeys()
	}
	return nil
}

// chosen returns the marked entries in source order, or the focused entry.
func (m Model) chosen() []*entry.Entry {
	var marked []*entry.Entry
	for _, e := range m.all {
		if e.IsMarked {
			marked = append(marked, e)
		}
	}
	if len(marked) > 0 {
		return marked
	}
	if e := m.selected(); e != nil {
		return []*entry.Entry{e}
	}
	return nil
}

func (m Model) markedCount() int {
	n := 0
	for _, e := range m.all {
		if e.IsMarked {
			n++
		}
	}
	return n
}

func (m Model) selected() *entry.Entry {
	if m.selection < 0 || m.selection >= len(m.visible) {
		return nil
	}
	return m.visible[m.selection]
}

func (m *Model) move(delta int) {
	if len(m.visible) == 0 {
		return
	}
	m.selection += delta
	m.clampSelection()
	m.clampOffset()
	m.syncPreview(false)
}

// clampSelection ensures the selection index is within bounds.
func (m *Model) clampSelection() {
	if len(m.visible) == 0 {
		m.selection = -1
		return
	}
	if m.selection < 0 {
		m.selection = 0
	}
	if m.selection >= len(m.visible) {
		m.selection = len(m.visible) - 1
	}
}

// clampOffset scrolls so the selection is on screen.
func (m *Model) clampOffset() {
	h := m.listHeight()
	if m.selection < m.offset {
		m.offset = max(m.selection, 0)
	}
	if m.selection >= m.offset+h {
		m.offset = m.selection - h + 1
	}
}

// syncPreview loads the focused entry's snapshot into the viewport. The
// scroll position survives content updates of the same entry unless reset.
func (m *Model) syncPreview(reset bool) {
	e := m.selected()
	if e == nil {
		m.previewFor = nil
		m.preview.SetContent("")
		return
	}

	lines := e.PreviewLines()
	rendered := make([]string, len(lines))
	for i, l := range lines {
		rendered[i] = SanitizeLine(l, m.preview.Width)
	}
	m.preview.SetContent(strings.Join(rendered, "\n"))

	if reset || e != m.previewFor {
		m.preview.GotoTop()
	}
	m.previewFor = e
}

// layout sizes the preview pane from the terminal size.
func (m *Model) layout() {
	w := m.previewWidth()
	if w == 0 {
		m.preview.Width = 0
		m.preview.Height = 0
		return
	}
	m.preview.Width = w - 2 // Border and gutter
	m.preview.Height = m.listHeight()
}

// previewWidth is the pane width including its border; 0 hides the pane.
func (m Model) previewWidth() int {
	if m.opts.PreviewWidthPercent <= 0 || m.width < minPreviewWidth {
		return 0
	}
	return m.width * m.opts.PreviewWidthPercent / 100
}

// listHeight returns the number of visible list rows (terminal height minus
// query line, status line and help line).
func (m Model) listHeight() int {
	const chrome = 3
	h := m.height - chrome
	if h < 1 {
		h = 20 // Sensible default before first WindowSizeMsg
	}
	return h
}

// --- View rendering ---

var (
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	normalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	matchStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	markStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	previewStyle  = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(lipgloss.Color("238")).
			PaddingLeft(1)
)

// View implements tea.Model.
func (m Model) View() string {
	if m.state != stateBrowsing {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteRune('\n')
	b.WriteString(m.viewStatus())
	b.WriteRune('\n')

	body := m.viewList()
	if m.previewWidth() > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top,
			lipgloss.NewStyle().Width(m.width-m.previewWidth()).Render(body),
			previewStyle.Height(m.listHeight()).Render(m.preview.View()),
		)
	}
	b.WriteString(body)
	b.WriteRune('\n')

	b.WriteString(m.viewHelp())
	return b.String()
}

// viewStatus renders the match counter and preview state.
func (m Model) viewStatus() string {
	status := fmt.Sprintf("%d/%d", len(m.visible), len(m.all))
	if m.opts.Title != "" {
		title := ValidateUTF8(StripANSI(m.opts.Title))
		if m.width > 0 {
			title = MiddleTruncate(title, max(m.width/3, 8))
		}
		status = title + " · " + status
	}
	if n := m.markedCount(); n > 0 {
		status += fmt.Sprintf(" (%d marked)", n)
	}
	if e := m.selected(); e != nil && e.PreviewStatus().Running {
		status += " · computing preview…"
	}
	return dimStyle.Render(status)
}

// viewList renders the entry rows with match highlighting.
func (m Model) viewList() string {
	if len(m.visible) == 0 {
		return dimStyle.Render("No matches")
	}

	width := m.width - m.previewWidth()
	if width <= 0 {
		width = 80
	}

	var rows []string
	end := min(m.offset+m.listHeight(), len(m.visible))
	for i := m.offset; i < end; i++ {
		rows = append(rows, m.viewRow(m.visible[i], i == m.selection, width))
	}
	return strings.Join(rows, "\n")
}

// viewRow renders one entry: cursor, mark, name and dimmed description.
func (m Model) viewRow(e *entry.Entry, focused bool, width int) string {
	var b strings.Builder

	base := normalStyle
	if focused {
		base = selectedStyle
		b.WriteString(selectedStyle.Render("> "))
	} else {
		b.WriteString("  ")
	}
	if m.opts.MultiSelect {
		if e.IsMarked {
			b.WriteString(markStyle.Render("* "))
		} else {
			b.WriteString("  ")
		}
	}

	room := width - runewidth.StringWidth(StripANSI(b.String()))
	name, used := highlight(e.Name, e.NameMatches, base, room)
	b.WriteString(name)
	room -= used

	if e.Description != "" && room > 2 {
		b.WriteString("  ")
		desc, _ := highlight(e.Description, e.DescriptionMatches, dimStyle, room-2)
		b.WriteString(desc)
	}
	return b.String()
}

// highlight renders s with the runes flagged in mask in matchStyle, cut to
// maxWidth columns. It returns the rendered text and the columns used.
func highlight(s string, mask []bool, base lipgloss.Style, maxWidth int) (string, int) {
	if maxWidth <= 0 {
		return "", 0
	}

	limit := maxWidth
	truncated := displayWidth(s) > maxWidth
	if truncated {
		limit-- // Room for the ellipsis
	}

	var out, run strings.Builder
	runHit := false
	flush := func() {
		if run.Len() == 0 {
			return
		}
		if runHit {
			out.WriteString(matchStyle.Render(run.String()))
		} else {
			out.WriteString(base.Render(run.String()))
		}
		run.Reset()
	}

	used, i := 0, 0
	for _, r := range s {
		r = printable(r)
		rw := runewidth.RuneWidth(r)
		if used+rw > limit {
			break
		}

		hit := i < len(mask) && mask[i]
		if hit != runHit {
			flush()
			runHit = hit
		}
		run.WriteRune(r)
		used += rw
		i++
	}
	flush()

	if truncated {
		out.WriteString(base.Render("…"))
		used++
	}
	return out.String(), used
}

// printable maps control runes to spaces so rows keep their layout.
func printable(r rune) rune {
	if r < 0x20 || r == 0x7f {
		return ' '
	}
	return r
}

func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		w += runewidth.RuneWidth(printable(r))
	}
	return w
}

// viewHelp renders the key hints for the focused entry.
func (m Model) viewHelp() string {
	e := m.selected()
	hasAsync := e != nil && e.PreviewStatus().Async
	return m.help.ShortHelpView(helpBindings(m.actionKeys(), m.opts.Keys, m.opts.MultiSelect, hasAsync))
}
