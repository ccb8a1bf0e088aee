package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gubarz/acecode/internal/parser"
)

func TestNormalize(t *testing.T) {
	cpp, ok := Normalize("cpp")
	require.True(t, ok)

	for _, alias := range []string{"c++", "C++", "language-cpp"} {
		name, ok := Normalize(alias)
		assert.True(t, ok, alias)
		assert.Equal(t, cpp, name, alias)
	}

	name, ok := Normalize("definitely-not-a-language")
	assert.False(t, ok)
	assert.Equal(t, "definitely-not-a-language", name)
}

func TestSetGet(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("cpp", &parser.Configuration{CompilerID: "clang1400"}))

	cfg, ok := s.Get("c++")
	require.True(t, ok)
	assert.Equal(t, "clang1400", cfg.CompilerID)
	assert.True(t, s.Has("cpp"))
	assert.False(t, s.Has("go"))

	// returned configurations are copies
	cfg.CompilerID = "changed"
	again, _ := s.Get("cpp")
	assert.Equal(t, "clang1400", again.CompilerID)
}

func TestSetRejectsMissingCompiler(t *testing.T) {
	s := New()
	assert.ErrorIs(t, s.Set("cpp", nil), parser.ErrMissingCompilerID)
	assert.ErrorIs(t, s.Set("cpp", &parser.Configuration{Language: "c++"}), parser.ErrMissingCompilerID)
	assert.Empty(t, s.Languages())
}

func TestSetOverrides(t *testing.T) {
	s := New()
	require.NoError(t, s.Set("cpp", &parser.Configuration{CompilerID: "a"}))
	require.NoError(t, s.Set("c++", &parser.Configuration{CompilerID: "b"}))

	cfg, ok := s.Get("cpp")
	require.True(t, ok)
	assert.Equal(t, "b", cfg.CompilerID)
	assert.Len(t, s.Languages(), 1)
}

func TestLoad(t *testing.T) {
	s := New()
	err := s.Load(strings.NewReader(`
cpp:
  language: c++
  compiler_id: clang1400
  compilation_options: -O2 -std=c++20
  libs:
    - id: fmt
      version: trunk
python:
  compiler_id: python311
`))
	require.NoError(t, err)

	cfg, ok := s.Get("c++")
	require.True(t, ok)
	assert.Equal(t, "-O2 -std=c++20", cfg.CompilationOptions)
	assert.Equal(t, []parser.Library{{ID: "fmt", Version: "trunk"}}, cfg.Libs)
	assert.True(t, s.Has("py"))
	assert.Len(t, s.Languages(), 2)
}

func TestLoadErrors(t *testing.T) {
	assert.NoError(t, New().Load(strings.NewReader("")))
	assert.Error(t, New().Load(strings.NewReader("cpp: [1, 2")))
	assert.ErrorIs(t, New().Load(strings.NewReader("cpp:\n  language: c++\n")), parser.ErrMissingCompilerID)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, New().LoadFile(filepath.Join(dir, "missing.yaml")))

	path := filepath.Join(dir, "languages.yaml")
	require.NoError(t, os.WriteFile(path, []byte("go:\n  compiler_id: gl1230\n"), 0o644))

	s := New()
	require.NoError(t, s.LoadFile(path))
	assert.True(t, s.Has("golang"))
}
