package store

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2/lexers"
	"gopkg.in/yaml.v3"

	"github.com/gubarz/acecode/internal/parser"
)

// Store maps languages to their default compiler configuration.
// Language names are normalized, so "cpp", "c++" and "cc" share one entry.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*parser.Configuration
	logger  *slog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger used for override and unknown-language warnings
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates an empty store
func New(opts ...Option) *Store {
	s := &Store{entries: make(map[string]*parser.Configuration)}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	return s
}

// Normalize returns the canonical name of a language alias, and false when
// the language is unknown to the highlighter
func Normalize(language string) (string, bool) {
	language = strings.TrimPrefix(strings.TrimSpace(language), "language-")
	if language == "" {
		return "", false
	}
	lexer := lexers.Get(language)
	if lexer == nil {
		return strings.ToLower(language), false
	}
	return lexer.Config().Name, true
}

func (s *Store) key(language string) string {
	key, ok := Normalize(language)
	if !ok {
		s.logger.Warn("unknown language", "language", language)
	}
	return key
}

// Set registers the configuration of a language. The configuration must name a compiler.
func (s *Store) Set(language string, cfg *parser.Configuration) error {
	if cfg == nil || cfg.CompilerID == "" {
		return fmt.Errorf("language %q: %w", language, parser.ErrMissingCompilerID)
	}
	key := s.key(language)
	if key == "" {
		return fmt.Errorf("empty language name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; exists {
		s.logger.Warn("overriding language configuration", "language", language, "name", key)
	}
	s.entries[key] = cfg.Clone()
	return nil
}

// Get returns a copy of the configuration registered for language
func (s *Store) Get(language string) (*parser.Configuration, bool) {
	key, _ := Normalize(language)

	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return cfg.Clone(), true
}

// Has reports whether language has a configuration
func (s *Store) Has(language string) bool {
	_, ok := s.Get(language)
	return ok
}

// Languages lists the normalized names with a configuration, sorted
func (s *Store) Languages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Load reads a YAML document mapping language names to configurations
func (s *Store) Load(r io.Reader) error {
	var doc map[string]*parser.Configuration
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("languages: %w", err)
	}

	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := s.Set(name, doc[name]); err != nil {
			return fmt.Errorf("languages: %w", err)
		}
	}
	return nil
}

// LoadFile reads a languages file. A missing file leaves the store empty.
func (s *Store) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()
	return s.Load(f)
}
