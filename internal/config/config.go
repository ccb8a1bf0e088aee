package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Tag                 string        `mapstructure:"tag"`
	Output              string        `mapstructure:"output"`
	Style               string        `mapstructure:"style"`
	Formatter           string        `mapstructure:"formatter"`
	Languages           string        `mapstructure:"languages"`
	CompilerExplorerURL string        `mapstructure:"compiler_explorer_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	IncludeCacheSize    int           `mapstructure:"include_cache_size"`
	LogLevel            string        `mapstructure:"log_level"`
	ShowRaw             bool          `mapstructure:"show_raw"`
	ColorHeader         string        `mapstructure:"color_header"`
	ColorPath           string        `mapstructure:"color_path"`
	ColorBorder         string        `mapstructure:"color_border"`
	ColorCursor         string        `mapstructure:"color_cursor"`
	ColorSelected       string        `mapstructure:"color_selected"`
	ColorDim            string        `mapstructure:"color_dim"`
}

// C is the global config instance
var C Config

// Init initializes configuration with viper
func Init() error {
	viper.SetDefault("tag", "// @awesome-code-element")
	viper.SetDefault("output", "print")
	viper.SetDefault("style", "tokyonight-night")
	viper.SetDefault("formatter", "terminal256")
	viper.SetDefault("languages", "~/.config/acecode/languages.yaml")
	viper.SetDefault("compiler_explorer_url", "https://godbolt.org")
	viper.SetDefault("timeout", 30*time.Second)
	viper.SetDefault("include_cache_size", 128)
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("show_raw", false)
	viper.SetDefault("color_header", "36")    // Cyan
	viper.SetDefault("color_path", "90")      // Gray
	viper.SetDefault("color_border", "240")   // Dark gray
	viper.SetDefault("color_cursor", "212")   // Pink
	viper.SetDefault("color_selected", "236") // Selection background
	viper.SetDefault("color_dim", "241")

	viper.SetConfigName("acecode")
	viper.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "acecode"))
		viper.AddConfigPath(home)
	}
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("ACECODE")
	viper.AutomaticEnv()

	// Try to read config, but don't fail if not found or malformed
	_ = viper.ReadInConfig()

	return viper.Unmarshal(&C)
}

// GetTag returns the annotation tag
func GetTag() string {
	return viper.GetString("tag")
}

// GetOutput returns the output mode
func GetOutput() string {
	return viper.GetString("output")
}

// GetStyle returns the chroma style name
func GetStyle() string {
	return viper.GetString("style")
}

// GetFormatter returns the chroma formatter name
func GetFormatter() string {
	return viper.GetString("formatter")
}

// GetLanguages returns the language store path with tilde expansion
func GetLanguages() string {
	return expandTilde(viper.GetString("languages"))
}

// GetCompilerExplorerURL returns the Compiler Explorer base URL
func GetCompilerExplorerURL() string {
	return viper.GetString("compiler_explorer_url")
}

// GetTimeout returns the remote request timeout
func GetTimeout() time.Duration {
	return viper.GetDuration("timeout")
}

// GetIncludeCacheSize returns how many remote includes are cached
func GetIncludeCacheSize() int {
	return viper.GetInt("include_cache_size")
}

// GetShowRaw returns whether the viewer starts on the raw text
func GetShowRaw() bool {
	return viper.GetBool("show_raw")
}

// GetLogLevel returns the slog level, warn when unset or unknown
func GetLogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(viper.GetString("log_level")))); err != nil {
		return slog.LevelWarn
	}
	return level
}

// GetColorHeader returns the color of snippet headers
func GetColorHeader() string {
	return viper.GetString("color_header")
}

// GetColorPath returns the color of file paths
func GetColorPath() string {
	return viper.GetString("color_path")
}

// GetColorBorder returns the color of borders and dividers
func GetColorBorder() string {
	return viper.GetString("color_border")
}

// GetColorCursor returns the color of the list cursor
func GetColorCursor() string {
	return viper.GetString("color_cursor")
}

// GetColorSelected returns the background of the selected row
func GetColorSelected() string {
	return viper.GetString("color_selected")
}

// GetColorDim returns the color of secondary text
func GetColorDim() string {
	return viper.GetString("color_dim")
}

// SetOutput sets output mode at runtime
func SetOutput(mode string) {
	viper.Set("output", mode)
	C.Output = mode
}

// SetTag sets the annotation tag at runtime
func SetTag(tag string) {
	viper.Set("tag", tag)
	C.Tag = tag
}

// expandTilde expands ~ to the user's home directory
func expandTilde(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
