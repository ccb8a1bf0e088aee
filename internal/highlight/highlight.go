package highlight

import (
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// Default style and formatter names
const (
	DefaultStyle     = "tokyonight-night"
	DefaultFormatter = "terminal256"
)

// Highlighter renders code with a chroma style and formatter
type Highlighter struct {
	style     *chroma.Style
	formatter chroma.Formatter
}

// New creates a highlighter. Unknown names fall back to chroma's defaults.
func New(styleName, formatterName string) *Highlighter {
	if styleName == "" {
		styleName = DefaultStyle
	}
	if formatterName == "" {
		formatterName = DefaultFormatter
	}
	return &Highlighter{
		style:     styles.Get(styleName),
		formatter: formatters.Get(formatterName),
	}
}

// Lexer picks the lexer for language, guessing from code when the language is unknown
func Lexer(language, code string) chroma.Lexer {
	var lexer chroma.Lexer
	if language != "" {
		lexer = lexers.Get(language)
	}
	if lexer == nil && code != "" {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	return chroma.Coalesce(lexer)
}

// Detect returns the name of the language guessed for code, or "" when unsure
func Detect(code string) string {
	if lexer := lexers.Analyse(code); lexer != nil {
		return lexer.Config().Name
	}
	return ""
}

// Highlight writes the highlighted code to w
func (h *Highlighter) Highlight(w io.Writer, code, language string) error {
	iterator, err := Lexer(language, code).Tokenise(nil, code)
	if err != nil {
		return err
	}
	return h.formatter.Format(w, h.style, iterator)
}

// String returns the highlighted code
func (h *Highlighter) String(code, language string) (string, error) {
	var b strings.Builder
	if err := h.Highlight(&b, code, language); err != nil {
		return "", err
	}
	return b.String(), nil
}
