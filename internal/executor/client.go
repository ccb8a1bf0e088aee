package executor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gubarz/acecode/internal/parser"
	"github.com/gubarz/acecode/internal/store"
)

// DefaultBaseURL is the public Compiler Explorer instance
const DefaultBaseURL = "https://godbolt.org"

// ============================================================================
// Compiler Interface
// ============================================================================

// Compiler compiles and executes code remotely
type Compiler interface {
	Compile(ctx context.Context, code string, cfg *parser.Configuration) (*ExecutionResult, error)
}

// ExecutionResult is the outcome of a remote compilation
type ExecutionResult struct {
	Output     string `json:"output"`
	ReturnCode int    `json:"return_code"`
	Error      string `json:"error,omitempty"`
}

// ============================================================================
// Compiler Explorer Client
// ============================================================================

// Client talks to a Compiler Explorer instance
type Client struct {
	baseURL  string
	http     *http.Client
	includes *IncludeFetcher
	logger   *slog.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for every request
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithTimeout sets the request timeout of the default HTTP client
func WithTimeout(d time.Duration) ClientOption {
	return func(cl *Client) {
		cl.http = &http.Client{Timeout: d}
	}
}

// WithIncludeFetcher sets how remote includes are downloaded before compiling
func WithIncludeFetcher(f *IncludeFetcher) ClientOption {
	return func(cl *Client) {
		cl.includes = f
	}
}

// WithClientLogger sets the client logger
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(cl *Client) {
		cl.logger = logger
	}
}

// NewClient creates a client for the instance at baseURL
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid compiler explorer url: %w", err)
	}

	c := &Client{baseURL: strings.TrimRight(baseURL, "/")}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.includes == nil {
		c.includes = NewIncludeFetcher(c.http, DefaultIncludeCacheSize)
	}
	return c, nil
}

// BaseURL returns the instance URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

type compileRequest struct {
	Source              string         `json:"source"`
	Compiler            string         `json:"compiler"`
	Options             compileOptions `json:"options"`
	Lang                string         `json:"lang,omitempty"`
	AllowStoreCodeDebug bool           `json:"allowStoreCodeDebug"`
}

type compileOptions struct {
	UserArguments     string            `json:"userArguments"`
	ExecuteParameters executeParameters `json:"executeParameters"`
	CompilerOptions   map[string]bool   `json:"compilerOptions"`
	Filters           map[string]bool   `json:"filters"`
	Tools             []any             `json:"tools"`
	Libraries         []parser.Library  `json:"libraries"`
}

type executeParameters struct {
	Args  []string `json:"args"`
	Stdin string   `json:"stdin"`
}

func newCompileRequest(code string, cfg *parser.Configuration) compileRequest {
	req := compileRequest{
		Source:   code,
		Compiler: cfg.CompilerID,
		Lang:     cfg.Language,
		Options: compileOptions{
			UserArguments: cfg.CompilationOptions,
			ExecuteParameters: executeParameters{
				Args:  cfg.ExecuteArgs,
				Stdin: cfg.ExecuteStdin,
			},
			CompilerOptions: map[string]bool{"executorRequest": true},
			Filters:         map[string]bool{"execute": true},
			Tools:           []any{},
			Libraries:       cfg.Libs,
		},
		AllowStoreCodeDebug: true,
	}
	if req.Options.ExecuteParameters.Args == nil {
		req.Options.ExecuteParameters.Args = []string{}
	}
	if req.Options.Libraries == nil {
		req.Options.Libraries = []parser.Library{}
	}
	return req
}

// Compile expands remote includes, then compiles and executes code
func (c *Client) Compile(ctx context.Context, code string, cfg *parser.Configuration) (*ExecutionResult, error) {
	if cfg == nil || cfg.CompilerID == "" {
		return nil, parser.ErrMissingCompilerID
	}

	code, err := c.includes.Expand(ctx, code)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(newCompileRequest(code, cfg))
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + "/api/compiler/" + url.PathEscape(cfg.CompilerID) + "/compile"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json;charset=utf-8")

	c.logger.Debug("compile request", "compiler", cfg.CompilerID, "bytes", len(body))
	text, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("compile with %s: %w", cfg.CompilerID, err)
	}
	return ParseExecutionResult(text), nil
}

// Languages lists the language ids the instance supports
func (c *Client) Languages(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/languages", nil)
	if err != nil {
		return nil, err
	}
	text, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("list languages: %w", err)
	}

	lines := strings.Split(text, "\n")
	ids := make([]string, 0, len(lines))
	for _, l := range lines[1:] { // header
		if id, _, _ := strings.Cut(strings.TrimSpace(l), " "); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (c *Client) do(req *http.Request) (string, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return string(data), nil
}

// ============================================================================
// Results
// ============================================================================

var resultHeader = regexp.MustCompile(`# Compilation provided by Compiler Explorer at \S+\n\n(# Compiler exited with result code (-?\d+))`)

// ParseExecutionResult splits the plain-text compile response into output
// and return code. A response without the expected header keeps its text
// with return code -1.
func ParseExecutionResult(text string) *ExecutionResult {
	m := resultHeader.FindStringSubmatchIndex(text)
	if m == nil {
		return &ExecutionResult{Output: text, ReturnCode: -1, Error: "unknown"}
	}
	code, err := strconv.Atoi(text[m[4]:m[5]])
	if err != nil {
		return &ExecutionResult{Output: text, ReturnCode: -1, Error: "unknown"}
	}
	return &ExecutionResult{Output: text[m[2]:], ReturnCode: code}
}

// ============================================================================
// Client State
// ============================================================================

type clientState struct {
	Sessions []session `json:"sessions"`
}

type session struct {
	ID        int               `json:"id"`
	Language  string            `json:"language"`
	Source    string            `json:"source"`
	Compilers []sessionCompiler `json:"compilers"`
	Executors []sessionExecutor `json:"executors"`
}

type sessionCompiler struct {
	ID      string           `json:"id"`
	Libs    []parser.Library `json:"libs"`
	Options string           `json:"options"`
}

type sessionExecutor struct {
	Compiler sessionCompiler `json:"compiler"`
}

// ClientStateURL builds the link that opens code in the Compiler Explorer UI.
// language names the session language when cfg has none.
func ClientStateURL(baseURL, code, language string, cfg *parser.Configuration) (string, error) {
	if cfg == nil || cfg.CompilerID == "" {
		return "", parser.ErrMissingCompilerID
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if cfg.Language != "" {
		language = cfg.Language
	} else {
		language = LanguageID(language)
	}

	compiler := sessionCompiler{ID: cfg.CompilerID, Libs: cfg.Libs, Options: cfg.CompilationOptions}
	if compiler.Libs == nil {
		compiler.Libs = []parser.Library{}
	}
	state := clientState{Sessions: []session{{
		ID:        1,
		Language:  language,
		Source:    code,
		Compilers: []sessionCompiler{compiler},
		Executors: []sessionExecutor{{Compiler: compiler}},
	}}}

	data, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	encoded := base64.StdEncoding.EncodeToString(data)
	return strings.TrimRight(baseURL, "/") + "/clientstate/" + url.QueryEscape(encoded), nil
}

// LanguageID turns a fence or alias name into a Compiler Explorer language id,
// e.g. "cpp" gives "c++"
func LanguageID(name string) string {
	if canonical, ok := store.Normalize(name); ok {
		return strings.ToLower(canonical)
	}
	return strings.ToLower(strings.TrimSpace(name))
}
