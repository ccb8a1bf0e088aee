package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultTag prefixes every annotation when no other tag is configured
const DefaultTag = "// @awesome-code-element"

// Result holds the views derived from one snippet
type Result struct {
	Raw     string         `json:"raw"`
	Display string         `json:"to_display"`
	Execute string         `json:"to_execute"`
	Config  *Configuration `json:"config,omitempty"`

	// Warnings lists the non-fatal issues met while parsing
	Warnings []error `json:"-"`
}

// Executable reports whether the snippet can be sent to a compiler
func (r *Result) Executable() bool {
	return r != nil && r.Config != nil && r.Config.CompilerID != ""
}

// Parser splits annotated snippets into display and execute variants.
// A Parser is immutable once built and safe for concurrent use.
type Parser struct {
	tag    string
	marker string
	logger *slog.Logger

	ceMarker  string
	skipBegin string
	skipEnd   string
	skipLine  string
	showBegin string
	showEnd   string
	showLine  string
}

// Option configures a Parser
type Option func(*Parser)

// WithTag sets the annotation prefix, e.g. "// @ace"
func WithTag(tag string) Option {
	return func(p *Parser) {
		p.tag = tag
	}
}

// WithCommentMarker sets the line-comment token that prefixes CE block lines
func WithCommentMarker(marker string) Option {
	return func(p *Parser) {
		p.marker = marker
	}
}

// WithLogger sets the logger warnings are reported to
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		p.logger = logger
	}
}

// New creates a parser
func New(opts ...Option) *Parser {
	p := &Parser{tag: DefaultTag}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.marker == "" {
		p.marker = commentMarker(p.tag)
	}

	p.ceMarker = p.tag + "::CE="
	p.skipBegin = p.tag + "::skip::block::begin"
	p.skipEnd = p.tag + "::skip::block::end"
	p.skipLine = p.tag + "::skip::line"
	p.showBegin = p.tag + "::show::block::begin"
	p.showEnd = p.tag + "::show::block::end"
	p.showLine = p.tag + "::show::line"
	return p
}

// Tag returns the annotation prefix
func (p *Parser) Tag() string {
	return p.tag
}

// commentMarker guesses the comment token from the tag: "// @ace" gives "//"
func commentMarker(tag string) string {
	if fields := strings.Fields(tag); len(fields) > 1 {
		return fields[0]
	}
	return "//"
}

var defaultParser = New()

// Parse parses text with the default tag
func Parse(text string, defaults *Configuration) (*Result, error) {
	return defaultParser.Parse(text, defaults)
}

type line struct {
	text string
	no   int
}

// Parse extracts the configuration, removes skipped code and computes the
// display and execute variants. Only a malformed CE block is an error.
func (p *Parser) Parse(text string, defaults *Configuration) (*Result, error) {
	res := &Result{Raw: text, Config: defaults.Clone()}
	if text == "" {
		return res, nil
	}

	raw := strings.Split(text, "\n")
	lines := make([]line, len(raw))
	for i, l := range raw {
		lines[i] = line{text: l, no: i + 1}
	}

	lines, local, keys, err := p.extractConfig(lines, res)
	if err != nil {
		return nil, err
	}
	res.Config = mergeKeys(defaults, local, keys)

	lines = p.removeSkipped(lines, res)
	res.Display, res.Execute = p.extractShown(lines, res)

	if res.Config != nil {
		res.Execute = RewriteIncludes(res.Execute, res.Config.IncludesTransformation)
	}
	return res, nil
}

func (p *Parser) warn(res *Result, err error) {
	res.Warnings = append(res.Warnings, err)
	p.logger.Warn("annotated code", "tag", p.tag, "warning", err)
}

// ============================================================================
// CE configuration blocks
// ============================================================================

// extractConfig removes the CE blocks and returns their merged configuration
// together with every key the blocks name
func (p *Parser) extractConfig(lines []line, res *Result) ([]line, *Configuration, keySet, error) {
	var local *Configuration
	keys := keySet{}
	kept := make([]line, 0, len(lines))
	blocks := 0

	for i := 0; i < len(lines); i++ {
		first, ok := strings.CutPrefix(strings.TrimLeft(lines[i].text, " \t"), p.ceMarker)
		if !ok {
			kept = append(kept, lines[i])
			continue
		}

		end, payload, err := p.collectConfig(lines, i, first)
		if err != nil {
			return nil, nil, nil, &ConfigParseError{Line: lines[i].no, Err: err}
		}
		cfg, blockKeys, err := decodeConfiguration([]byte(payload))
		if err != nil {
			return nil, nil, nil, &ConfigParseError{Line: lines[i].no, Err: err}
		}

		blocks++
		local = mergeKeys(local, cfg, blockKeys)
		keys = keys.union(blockKeys)
		i = end
	}

	if blocks > 1 {
		p.warn(res, fmt.Errorf("%w: %d blocks merged in document order", ErrAmbiguousConfig, blocks))
	}
	return kept, local, keys, nil
}

// collectConfig gathers the JSON object starting on lines[start] and returns
// the index of its closing line
func (p *Parser) collectConfig(lines []line, start int, first string) (int, string, error) {
	if !strings.HasPrefix(strings.TrimSpace(first), "{") {
		return 0, "", fmt.Errorf("expected '{' after %q", p.ceMarker)
	}

	var b strings.Builder
	var depth braceDepth
	b.WriteString(first)
	b.WriteByte('\n')
	if depth.feed(first) {
		return start, b.String(), nil
	}

	for j := start + 1; j < len(lines); j++ {
		content, ok := strings.CutPrefix(strings.TrimLeft(lines[j].text, " \t"), p.marker)
		if !ok {
			return 0, "", fmt.Errorf("line %d: object not closed before uncommented code", lines[j].no)
		}
		// commented-out entries inside the object
		if strings.HasPrefix(strings.TrimSpace(content), p.marker) {
			continue
		}
		b.WriteString(content)
		b.WriteByte('\n')
		if depth.feed(content) {
			return j, b.String(), nil
		}
	}
	return 0, "", errors.New("object not closed before end of text")
}

// braceDepth tracks JSON nesting across lines, ignoring braces inside strings
type braceDepth struct {
	depth    int
	opened   bool
	inString bool
	escaped  bool
}

// feed consumes s and reports whether the outermost object just closed
func (d *braceDepth) feed(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if d.inString {
			switch {
			case d.escaped:
				d.escaped = false
			case c == '\\':
				d.escaped = true
			case c == '"':
				d.inString = false
			}
			continue
		}
		switch c {
		case '"':
			d.inString = true
		case '{', '[':
			d.depth++
			d.opened = true
		case '}', ']':
			d.depth--
			if d.opened && d.depth == 0 {
				return true
			}
		}
	}
	return false
}

// ============================================================================
// Skip markers
// ============================================================================

func (p *Parser) removeSkipped(lines []line, res *Result) []line {
	kept := make([]line, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		switch {
		case strings.TrimSpace(lines[i].text) == p.skipBegin:
			end := findMarker(lines, i+1, p.skipEnd)
			if end < 0 {
				p.warn(res, fmt.Errorf("%w: skip::block::begin at line %d, skipping to end of text", ErrUnterminatedBlock, lines[i].no))
				return kept
			}
			i = end
		case endsWithMarker(lines[i].text, p.skipLine):
		default:
			kept = append(kept, lines[i])
		}
	}
	return kept
}

// ============================================================================
// Show markers
// ============================================================================

type spanKind int

const (
	spanCode spanKind = iota
	spanShowBlock
	spanShowLine
)

// span is a run of execute lines; non-code spans are also displayed
type span struct {
	kind  spanKind
	lines []string
}

func (p *Parser) extractShown(lines []line, res *Result) (display, execute string) {
	spans := make([]span, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		text := lines[i].text
		switch {
		case strings.TrimSpace(text) == p.showBegin:
			end := findMarker(lines, i+1, p.showEnd)
			stop := end
			if end < 0 {
				p.warn(res, fmt.Errorf("%w: show::block::begin at line %d, showing to end of text", ErrUnterminatedBlock, lines[i].no))
				stop = len(lines)
			}
			body := make([]string, 0, stop-i-1)
			for _, l := range lines[i+1 : stop] {
				body = append(body, p.stripShowLine(l.text))
			}
			spans = append(spans, span{kind: spanShowBlock, lines: body})
			i = stop

		case endsWithMarker(text, p.showLine):
			prefix := p.stripShowLine(text)
			if strings.TrimSpace(prefix) != "" {
				spans = append(spans, span{kind: spanShowLine, lines: []string{prefix}})
				continue
			}
			// marker alone on its line applies to the previous code line
			if !showPrevious(spans) {
				p.warn(res, fmt.Errorf("%w: line %d", ErrDanglingShowLine, lines[i].no))
			}

		default:
			spans = append(spans, span{kind: spanCode, lines: []string{text}})
		}
	}

	var exec, shown []string
	for _, s := range spans {
		exec = append(exec, s.lines...)
		if s.kind != spanCode {
			shown = append(shown, strings.Join(s.lines, "\n"))
		}
	}

	execute = strings.Join(exec, "\n")
	if len(shown) == 0 {
		return execute, execute
	}
	return strings.Join(shown, "\n"), execute
}

// stripShowLine removes a trailing show::line marker and the blanks before it
func (p *Parser) stripShowLine(text string) string {
	if !endsWithMarker(text, p.showLine) {
		return text
	}
	return strings.TrimRight(text[:strings.LastIndex(text, p.showLine)], " \t")
}

// showPrevious turns the nearest non-blank code span into a shown line
func showPrevious(spans []span) bool {
	for i := len(spans) - 1; i >= 0; i-- {
		if spans[i].kind != spanCode {
			return false
		}
		if strings.TrimSpace(spans[i].lines[0]) != "" {
			spans[i].kind = spanShowLine
			return true
		}
	}
	return false
}

// ============================================================================
// Helpers
// ============================================================================

func findMarker(lines []line, from int, marker string) int {
	for j := from; j < len(lines); j++ {
		if strings.TrimSpace(lines[j].text) == marker {
			return j
		}
	}
	return -1
}

func endsWithMarker(text, marker string) bool {
	return strings.HasSuffix(strings.TrimRight(text, " \t\r"), marker)
}
