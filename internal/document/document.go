package document

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Snippet represents a fenced code block found in a documentation file
type Snippet struct {
	File        string // Source file path
	Header      string // Section header
	Description string // Description from blockquotes
	Language    string // Fence info string language
	Code        string // Block content, as authored
	Line        int    // 1-based line of the opening fence
}

// Index holds all snippets found by a scanner
type Index struct {
	Snippets []*Snippet
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{
		Snippets: make([]*Snippet, 0),
	}
}

// Languages returns the distinct snippet languages in discovery order
func (idx *Index) Languages() []string {
	seen := make(map[string]bool)
	var langs []string
	for _, s := range idx.Snippets {
		if s.Language != "" && !seen[s.Language] {
			seen[s.Language] = true
			langs = append(langs, s.Language)
		}
	}
	return langs
}

// Scanner finds code snippets in markdown files
type Scanner struct {
	index *Index
}

// NewScanner creates a new scanner
func NewScanner() *Scanner {
	return &Scanner{
		index: NewIndex(),
	}
}

// ScanDirectory recursively scans all markdown files
func (s *Scanner) ScanDirectory(dir string) (*Index, error) {
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != dir && strings.HasPrefix(info.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if isMarkdown(path) {
			if err := s.scanFile(path); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.index, nil
}

// ScanFile scans a single markdown file
func (s *Scanner) ScanFile(path string) (*Index, error) {
	if err := s.scanFile(path); err != nil {
		return nil, err
	}
	return s.index, nil
}

// Scan scans a file or a directory
func (s *Scanner) Scan(path string) (*Index, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return s.ScanDirectory(path)
	}
	return s.ScanFile(path)
}

func isMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown", ".mdx":
		return true
	}
	return false
}

func (s *Scanner) scanFile(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	s.index.Snippets = append(s.index.Snippets, ScanSource(path, source)...)
	return nil
}

// ScanSource extracts the fenced code blocks of a markdown document.
// Headers and blockquote descriptions carry over to the blocks that follow them.
func ScanSource(path string, source []byte) []*Snippet {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var snippets []*Snippet
	var header, description string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			header = strings.TrimSpace(linesText(node, source))
			description = ""
			return ast.WalkSkipChildren, nil
		case *ast.Blockquote:
			if quoted := blockquoteText(node, source); quoted != "" {
				if description != "" {
					description += "\n"
				}
				description += quoted
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			code := strings.TrimSuffix(linesText(node, source), "\n")
			if strings.TrimSpace(code) == "" {
				return ast.WalkSkipChildren, nil
			}
			snippets = append(snippets, &Snippet{
				File:        path,
				Header:      header,
				Description: description,
				Language:    strings.ToLower(string(node.Language(source))),
				Code:        code,
				Line:        fenceLine(node, source),
			})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return snippets
}

// linesText concatenates the raw source lines of a block node
func linesText(n ast.Node, source []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return b.String()
}

func blockquoteText(quote *ast.Blockquote, source []byte) string {
	var parts []string
	_ = ast.Walk(quote, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		paragraph, ok := n.(*ast.Paragraph)
		if !entering || !ok {
			return ast.WalkContinue, nil
		}
		if line := strings.TrimSpace(linesText(paragraph, source)); line != "" {
			parts = append(parts, line)
		}
		return ast.WalkSkipChildren, nil
	})
	return strings.Join(parts, "\n")
}

// fenceLine returns the 1-based line of the opening fence
func fenceLine(block *ast.FencedCodeBlock, source []byte) int {
	if block.Info != nil {
		return lineAt(source, block.Info.Segment.Start)
	}
	return lineAt(source, block.Lines().At(0).Start) - 1
}

func lineAt(source []byte, offset int) int {
	return bytes.Count(source[:offset], []byte("\n")) + 1
}
