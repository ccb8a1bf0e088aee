package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDefaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())

	require.NoError(t, Init())
	assert.Equal(t, "// @awesome-code-element", GetTag())
	assert.Equal(t, "print", GetOutput())
	assert.Equal(t, "https://godbolt.org", GetCompilerExplorerURL())
	assert.Equal(t, 30*time.Second, GetTimeout())
	assert.Equal(t, 128, GetIncludeCacheSize())
	assert.Equal(t, slog.LevelWarn, GetLogLevel())
	assert.Equal(t, "// @awesome-code-element", C.Tag)
}

func TestInitFromFileAndEnv(t *testing.T) {
	viper.Reset()
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acecode.yaml"), []byte("tag: \"// @ace\"\ntimeout: 5s\nlog_level: debug\n"), 0o644))
	t.Setenv("ACECODE_OUTPUT", "copy")

	require.NoError(t, Init())
	assert.Equal(t, "// @ace", GetTag())
	assert.Equal(t, 5*time.Second, GetTimeout())
	assert.Equal(t, slog.LevelDebug, GetLogLevel())
	assert.Equal(t, "copy", GetOutput())

	SetTag("# @ace")
	assert.Equal(t, "# @ace", GetTag())
	SetOutput("run")
	assert.Equal(t, "run", C.Output)
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "x.yaml"), expandTilde("~/x.yaml"))
	assert.Equal(t, "/abs", expandTilde("/abs"))
	assert.Equal(t, "", expandTilde(""))
}
