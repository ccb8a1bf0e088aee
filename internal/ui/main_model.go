package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gubarz/acecode/internal/document"
	"github.com/gubarz/acecode/internal/executor"
	"github.com/gubarz/acecode/internal/highlight"
	"github.com/gubarz/acecode/internal/parser"
	"github.com/gubarz/acecode/internal/store"
)

// ErrNoSnippets is returned when there is nothing to browse
var ErrNoSnippets = errors.New("no snippets found")

// ============================================================================
// String Builder Pool - reduces GC pressure from rendering
// ============================================================================

var builderPool = sync.Pool{
	New: func() interface{} {
		return &strings.Builder{}
	},
}

func getBuilder() *strings.Builder {
	b := builderPool.Get().(*strings.Builder)
	b.Reset()
	return b
}

func putBuilder(b *strings.Builder) {
	if b.Cap() < 64*1024 { // Don't pool huge builders
		builderPool.Put(b)
	}
}

// ============================================================================
// Session
// ============================================================================

// Session holds the collaborators the viewer parses, highlights and runs with.
// Store, Executor and Highlighter may be nil.
type Session struct {
	Parser      *parser.Parser
	Store       *store.Store
	Executor    *executor.Executor
	Highlighter *highlight.Highlighter
	BaseURL     string
	Output      executor.OutputMode
	ShowRaw     bool
}

// defaults returns the stored configuration for a snippet language
func (s Session) defaults(language string) *parser.Configuration {
	if s.Store == nil || language == "" {
		return nil
	}
	cfg, _ := s.Store.Get(language)
	return cfg
}

// parse runs the annotation pipeline on a snippet
func (s Session) parse(snippet *document.Snippet) snippetItem {
	p := s.Parser
	if p == nil {
		p = parser.New()
	}
	res, err := p.Parse(snippet.Code, s.defaults(snippet.Language))
	return newSnippetItem(snippet, res, err)
}

// ============================================================================
// Snippet Item
// ============================================================================

// snippetItem wraps a Snippet with its parse result and display metadata
type snippetItem struct {
	snippet *document.Snippet
	result  *parser.Result
	err     error
	folder  string
	file    string
}

// newSnippetItem creates a snippetItem from a parsed Snippet
func newSnippetItem(snippet *document.Snippet, res *parser.Result, err error) snippetItem {
	return snippetItem{
		snippet: snippet,
		result:  res,
		err:     err,
		folder:  filepath.Base(filepath.Dir(snippet.File)),
		file:    strings.TrimSuffix(filepath.Base(snippet.File), filepath.Ext(snippet.File)),
	}
}

// matchesQuery checks if the item matches all search words
func (item *snippetItem) matchesQuery(words []string) bool {
	for _, word := range words {
		if !item.containsWord(word) {
			return false
		}
	}
	return true
}

// containsWord checks if any field contains the word (case-insensitive)
func (item *snippetItem) containsWord(word string) bool {
	// Check smaller fields first for fast rejection
	if containsIgnoreCase(item.folder, word) || containsIgnoreCase(item.file, word) {
		return true
	}
	if containsIgnoreCase(item.snippet.Language, word) || containsIgnoreCase(item.snippet.Header, word) {
		return true
	}
	if item.result != nil {
		return containsIgnoreCase(item.result.Display, word)
	}
	return containsIgnoreCase(item.snippet.Code, word)
}

// containsIgnoreCase checks s for substr, which the caller has lowercased
func containsIgnoreCase(s, substr string) bool {
	if len(substr) > len(s) {
		return false
	}
	return strings.Contains(strings.ToLower(s), substr)
}

// text returns the variant shown in mode
func (item *snippetItem) text(mode viewMode) string {
	if item.result == nil || mode == modeRaw {
		return item.snippet.Code
	}
	if mode == modeExecute {
		return item.result.Execute
	}
	return item.result.Display
}

// badge summarizes the configuration of the item
func (item *snippetItem) badge() string {
	switch {
	case item.err != nil:
		return "error"
	case item.result == nil || item.result.Config == nil:
		return ""
	case item.result.Config.CompilerID == "":
		return "no compiler"
	default:
		return item.result.Config.CompilerID
	}
}

// ============================================================================
// View Modes
// ============================================================================

// viewMode selects which variant the code pane shows
type viewMode int

const (
	modeDisplay viewMode = iota
	modeExecute
	modeRaw
)

var modeNames = [...]string{"display", "execute", "raw"}

// String implements fmt.Stringer
func (v viewMode) String() string {
	return modeNames[v]
}

// next cycles display → execute → raw
func (v viewMode) next() viewMode {
	return (v + 1) % viewMode(len(modeNames))
}

// ============================================================================
// Messages
// ============================================================================

// filterMsg triggers filtering after debounce
type filterMsg struct{}

// debounceFilter returns a command that triggers filtering after a delay
func debounceFilter() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return filterMsg{}
	})
}

// runResultMsg is sent when a remote execution completes
type runResultMsg struct {
	snippet *document.Snippet
	result  *executor.ExecutionResult
	err     error
}

// ============================================================================
// Main Model - Snippet Browser
// ============================================================================

// rows around the list and code pane that never scroll
const chromeLines = 6

// mainModel is the Bubble Tea model for browsing parsed snippets
type mainModel struct {
	width     int
	height    int
	textInput textinput.Model
	code      viewport.Model
	quitting  bool

	items    []snippetItem
	filtered []snippetItem
	cursor   int
	offset   int // list scroll offset
	selected *snippetItem
	mode     viewMode

	status  string
	running bool
	result  *executor.ExecutionResult
	runErr  error

	ctx     context.Context
	session Session
}

// newMainModel creates a mainModel with every snippet parsed up front
func newMainModel(ctx context.Context, snippets []*document.Snippet, session Session) mainModel {
	ti := textinput.New()
	ti.Placeholder = "Type to search..."
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 50

	items := make([]snippetItem, len(snippets))
	for i, snippet := range snippets {
		items[i] = session.parse(snippet)
	}

	m := mainModel{
		textInput: ti,
		code:      viewport.New(80, 10),
		items:     items,
		filtered:  items,
		ctx:       ctx,
		session:   session,
	}
	if session.ShowRaw {
		m.mode = modeRaw
	}
	m.refreshCode()
	return m
}

// Init implements tea.Model
func (m mainModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model
func (m mainModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = msg.Width - 4
		m.layout()
	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	case filterMsg:
		m.filterSnippets()
		return m, nil
	case runResultMsg:
		m.running = false
		if cur := m.current(); cur != nil && cur.snippet == msg.snippet {
			m.result, m.runErr = msg.result, msg.err
		}
		return m, nil
	}

	prevQuery := m.textInput.Value()
	var tiCmd tea.Cmd
	m.textInput, tiCmd = m.textInput.Update(msg)
	cmds = append(cmds, tiCmd)

	// Only trigger debounced filter if query changed
	if m.textInput.Value() != prevQuery {
		cmds = append(cmds, debounceFilter())
	}

	return m, tea.Batch(cmds...)
}

// handleKey processes keyboard input, reporting whether the key was consumed
func (m *mainModel) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return tea.Quit, true
	case "enter":
		if cur := m.current(); cur != nil {
			m.selected = cur
			return tea.Quit, true
		}
		return nil, true
	case "up", "ctrl+p":
		m.moveCursor(-1)
	case "down", "ctrl+n":
		m.moveCursor(1)
	case "pgup":
		m.moveCursor(-10)
	case "pgdown":
		m.moveCursor(10)
	case "shift+up", "ctrl+k":
		m.code.SetYOffset(m.code.YOffset - 1)
	case "shift+down", "ctrl+j":
		m.code.SetYOffset(m.code.YOffset + 1)
	case "tab":
		m.mode = m.mode.next()
		m.refreshCode()
	case "ctrl+r":
		if m.mode == modeRaw {
			m.mode = modeDisplay
		} else {
			m.mode = modeRaw
		}
		m.refreshCode()
	case "ctrl+y":
		m.copySelected()
	case "ctrl+o":
		m.shareSelected()
	case "ctrl+x":
		return m.runSelected(), true
	default:
		return nil, false
	}
	return nil, true
}

// current returns the item under the cursor
func (m *mainModel) current() *snippetItem {
	if m.cursor < 0 || m.cursor >= len(m.filtered) {
		return nil
	}
	return &m.filtered[m.cursor]
}

// moveCursor moves the cursor by delta, clamping to valid range
func (m *mainModel) moveCursor(delta int) {
	prev := m.cursor
	m.cursor = clamp(m.cursor+delta, 0, max(0, len(m.filtered)-1))
	m.adjustOffset()
	if m.cursor != prev {
		m.clearRun()
		m.refreshCode()
	}
}

// adjustOffset ensures cursor is visible within the list
func (m *mainModel) adjustOffset() {
	scrollWindow(m.cursor, len(m.filtered), m.listHeight(), &m.offset)
}

// filterSnippets filters the snippet list based on the search query
func (m *mainModel) filterSnippets() {
	query := strings.TrimSpace(m.textInput.Value())

	if query == "" {
		m.filtered = m.items
	} else {
		words := strings.Fields(strings.ToLower(query))
		m.filtered = make([]snippetItem, 0, min(len(m.items), 1000))
		for i := range m.items {
			if m.items[i].matchesQuery(words) {
				m.filtered = append(m.filtered, m.items[i])
				// Limit results to prevent UI lag
				if len(m.filtered) >= 1000 {
					break
				}
			}
		}
	}

	m.cursor = clamp(m.cursor, 0, max(0, len(m.filtered)-1))
	m.layout()
	m.clearRun()
	m.refreshCode()
}

// clearRun forgets the result of a previous execution
func (m *mainModel) clearRun() {
	m.result, m.runErr, m.status = nil, nil, ""
}

// ============================================================================
// Actions
// ============================================================================

// copySelected copies the display variant of the current item
func (m *mainModel) copySelected() {
	cur := m.current()
	if cur == nil || cur.result == nil || m.session.Executor == nil {
		return
	}
	if err := m.session.Executor.Copy(cur.result); err != nil {
		m.status = "copy failed: " + err.Error()
		return
	}
	m.status = "copied " + cur.file
}

// shareSelected builds the Compiler Explorer link of the current item
func (m *mainModel) shareSelected() {
	cur := m.current()
	if cur == nil || cur.result == nil {
		return
	}
	if err := executionError(cur.result); err != nil {
		m.status = err.Error()
		return
	}
	link, err := executor.ClientStateURL(m.baseURL(), cur.result.Execute, cur.snippet.Language, cur.result.Config)
	if err != nil {
		m.status = err.Error()
		return
	}
	m.status = link
}

// runSelected executes the current item remotely
func (m *mainModel) runSelected() tea.Cmd {
	cur := m.current()
	if cur == nil || cur.result == nil || m.running {
		return nil
	}
	if m.session.Executor == nil {
		m.status = "execution is not configured"
		return nil
	}
	if err := executionError(cur.result); err != nil {
		m.status = err.Error()
		return nil
	}

	m.clearRun()
	m.running = true
	m.status = "running on " + m.baseURL() + "..."

	ctx, exec := m.ctx, m.session.Executor
	snippet, res := cur.snippet, cur.result
	return func() tea.Msg {
		result, err := exec.Run(ctx, res)
		return runResultMsg{snippet: snippet, result: result, err: err}
	}
}

// executionError tells why res cannot be run, nil when it can
func executionError(res *parser.Result) error {
	switch {
	case res.Config == nil:
		return executor.ErrNotExecutable
	case !res.Executable():
		return parser.ErrMissingCompilerID
	}
	return nil
}

func (m *mainModel) baseURL() string {
	if m.session.BaseURL != "" {
		return m.session.BaseURL
	}
	return executor.DefaultBaseURL
}

// ============================================================================
// Layout & Rendering
// ============================================================================

// listHeight returns how many rows the snippet list gets
func (m *mainModel) listHeight() int {
	height := maxInt(m.height, 24)
	return clamp(len(m.filtered), 3, height/3)
}

// layout sizes the code pane to what is left of the screen
func (m *mainModel) layout() {
	width := maxInt(m.width, 80)
	height := maxInt(m.height, 24)
	m.code.Width = width
	m.code.Height = maxInt(height-m.listHeight()-chromeLines-resultLines, 3)
	m.adjustOffset()
}

// refreshCode loads the current variant into the code pane
func (m *mainModel) refreshCode() {
	cur := m.current()
	if cur == nil {
		m.code.SetContent("")
		return
	}
	if cur.err != nil {
		m.code.SetContent(styles.Failure.Render(cur.err.Error()))
		return
	}

	text := cur.text(m.mode)
	if h := m.session.Highlighter; h != nil {
		if out, err := h.String(text, cur.snippet.Language); err == nil {
			text = out
		}
	}
	m.code.SetContent(strings.TrimRight(text, "\n"))
	m.code.GotoTop()
}

// View implements tea.Model
func (m mainModel) View() string {
	if m.quitting {
		return ""
	}

	width := maxInt(m.width, 80)

	b := getBuilder()
	defer putBuilder(b)
	b.WriteString(m.renderList(m.listHeight()))
	b.WriteString(styles.Divider.Render(strings.Repeat("─", width)))
	b.WriteString("\n")
	b.WriteString(m.renderPreviewHeader(width))
	b.WriteString("\n")
	b.WriteString(m.code.View())
	b.WriteString("\n")
	b.WriteString(m.renderResult(width))
	b.WriteString(m.renderInput(width))

	return b.String()
}

// renderList renders the scrollable list of snippets, padded to height
func (m *mainModel) renderList(height int) string {
	b := getBuilder()
	defer putBuilder(b)

	start, end := scrollWindow(m.cursor, len(m.filtered), height, &m.offset)
	for i := start; i < end; i++ {
		b.WriteString(m.renderListItem(m.filtered[i], i == m.cursor))
		b.WriteString("\n")
	}
	for i := end - start; i < height; i++ {
		b.WriteString("\n")
	}
	return b.String()
}

// renderListItem renders a single list row
func (m mainModel) renderListItem(item snippetItem, selected bool) string {
	pStyle, hStyle, lStyle := m.getItemStyles(selected)

	pathPart := fmt.Sprintf("%s/%s:%d", item.folder, item.file, item.snippet.Line)
	headerPart := truncateString(item.snippet.Header, 40)
	lang := item.snippet.Language
	if badge := item.badge(); badge != "" {
		lang += " [" + badge + "]"
	}

	gap := "  "
	if selected {
		gap = styles.Selected.Render(gap)
	}

	line := pStyle.Render(pathPart) + gap + hStyle.Render(headerPart) + gap + lStyle.Render(lang)
	if selected {
		return styles.Cursor.Render("▶ ") + line
	}
	return "  " + line
}

// getItemStyles returns the appropriate styles based on selection state
func (m mainModel) getItemStyles(selected bool) (path, header, lang lipgloss.Style) {
	path, header, lang = styles.Path, styles.Header, styles.Language
	if selected {
		path = styles.WithSelection(path)
		header = styles.WithSelection(header)
		lang = styles.WithSelection(lang)
	}
	return
}

// renderPreviewHeader renders the mode tabs above the code pane
func (m mainModel) renderPreviewHeader(width int) string {
	tabs := make([]string, len(modeNames))
	for i := range modeNames {
		style := styles.Tab
		if viewMode(i) == m.mode {
			style = styles.ActiveTab
		}
		tabs[i] = style.Render(modeNames[i])
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	if cur := m.current(); cur != nil {
		desc := truncateString(firstLine(cur.snippet.Description), maxInt(width-lipgloss.Width(header)-2, 0))
		header += "  " + styles.Dim.Render(desc)
	}
	return header
}

// lines reserved for the execution result
const resultLines = 4

// renderResult renders the last execution result, padded to resultLines
func (m mainModel) renderResult(width int) string {
	var text string
	switch {
	case m.runErr != nil:
		text = styles.Failure.Render(truncateLines(m.runErr.Error(), resultLines, 0))
	case m.result != nil:
		style := styles.Success
		if m.result.ReturnCode != 0 || m.result.Error != "" {
			style = styles.Failure
		}
		summary := fmt.Sprintf("exit %d", m.result.ReturnCode)
		if m.result.Error != "" {
			summary += ": " + m.result.Error
		}
		output := truncateLines(strings.TrimRight(m.result.Output, "\n"), resultLines-1, 0)
		text = style.Render(summary) + "\n" + output
	}

	b := getBuilder()
	defer putBuilder(b)
	b.WriteString(styles.Divider.Render(strings.Repeat("─", width)))
	b.WriteString("\n")
	lines := strings.Split(text, "\n")
	for i := 0; i < resultLines; i++ {
		if text != "" && i < len(lines) {
			b.WriteString(lines[i])
		}
		b.WriteString("\n")
	}
	return b.String()
}

// firstLine returns the first line of a string
func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

// renderInput renders the status and input section at the bottom
func (m mainModel) renderInput(width int) string {
	b := getBuilder()
	defer putBuilder(b)
	if m.status != "" {
		b.WriteString(styles.Dim.Render(truncateString(m.status, width)))
	}
	b.WriteString("\n")
	b.WriteString(styles.Dim.Render(fmt.Sprintf("  %d/%d", len(m.filtered), len(m.items))))
	b.WriteString(" • ")
	b.WriteString(styles.Dim.Render("Tab view"))
	b.WriteString(" • ")
	b.WriteString(styles.Dim.Render("Ctrl+X run"))
	b.WriteString(" • ")
	b.WriteString(styles.Dim.Render("Ctrl+Y copy"))
	b.WriteString(" • ")
	b.WriteString(styles.Dim.Render("Ctrl+O link"))
	b.WriteString(" • ")
	b.WriteString(styles.Dim.Render("ESC exit"))
	b.WriteString("\n")
	b.WriteString(m.textInput.View())
	return b.String()
}

// ============================================================================
// Run TUI
// ============================================================================

// getTTY returns file handles for TUI input/output
// Uses /dev/tty to bypass shell pipes and command substitution
func getTTY() (in *os.File, out *os.File, cleanup func()) {
	var closers []func()

	// If stdout is not a terminal (piped or captured by $()), use /dev/tty
	if fileInfo, _ := os.Stdout.Stat(); (fileInfo.Mode() & os.ModeCharDevice) == 0 {
		out, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
		if err != nil {
			out = os.Stderr // Last resort fallback
		} else {
			closers = append(closers, func() { out.Close() })
		}

		in, err := os.OpenFile("/dev/tty", os.O_RDONLY, 0)
		if err != nil {
			in = os.Stdin
		} else {
			closers = append(closers, func() { in.Close() })
		}

		// Tell lipgloss to use the TTY for color detection
		lipgloss.SetDefaultRenderer(lipgloss.NewRenderer(out))

		return in, out, func() {
			for _, c := range closers {
				c()
			}
		}
	}

	return os.Stdin, os.Stdout, func() {}
}

// RunTUI launches the snippet browser. The snippet picked with enter is handed
// to the executor with the session output mode.
func RunTUI(ctx context.Context, index *document.Index, session Session, initialQuery string) error {
	if index == nil || len(index.Snippets) == 0 {
		return ErrNoSnippets
	}

	ttyIn, ttyOut, cleanup := getTTY()
	RefreshStyles() // Refresh after getTTY sets up the renderer

	m := newMainModel(ctx, index.Snippets, session)
	if initialQuery != "" {
		m.textInput.SetValue(initialQuery)
		m.filterSnippets()
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithOutput(ttyOut), tea.WithInput(ttyIn), tea.WithContext(ctx))
	finalModel, err := p.Run()
	cleanup()
	if err != nil {
		return err
	}

	result := finalModel.(mainModel)
	if result.selected == nil || result.selected.result == nil || session.Executor == nil {
		return nil
	}
	return session.Executor.OutputWithMode(ctx, result.selected.result, session.Output)
}

// ============================================================================
// Helpers
// ============================================================================

// clamp restricts v to the range [minV, maxV]
func clamp(v, minV, maxV int) int {
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// maxInt returns the larger of a and b
func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// scrollWindow calculates the visible range for a scrollable list
func scrollWindow(cursor, total, height int, offset *int) (start, end int) {
	if cursor < *offset {
		*offset = cursor
	}
	if cursor >= *offset+height {
		*offset = cursor - height + 1
	}
	maxOffset := max(0, total-height)
	*offset = clamp(*offset, 0, maxOffset)

	start = *offset
	end = min(start+height, total)
	return
}

// truncateString truncates a string to maxLen with ellipsis
func truncateString(s string, maxLen int) string {
	if maxLen <= 3 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// truncateLines truncates text to maxLines with optional maxLen per content
func truncateLines(text string, maxLines int, maxLen int) string {
	lines := strings.Split(text, "\n")
	if len(lines) > maxLines {
		text = strings.Join(lines[:maxLines], "\n") + "..."
	}
	if maxLen > 0 && len(text) > maxLen {
		text = text[:maxLen-3] + "..."
	}
	return text
}
