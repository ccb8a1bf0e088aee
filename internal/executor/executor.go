package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/gubarz/acecode/internal/parser"
)

// ErrNotExecutable is returned when a snippet has no configuration at all
var ErrNotExecutable = errors.New("snippet has no CE configuration")

// ============================================================================
// Clipboard Interface
// ============================================================================

// Clipboard defines the interface for clipboard operations
type Clipboard interface {
	Copy(text string) error
}

// systemClipboard implements Clipboard with the platform clipboard
type systemClipboard struct {
	fallback io.Writer
}

// Copy copies text to the system clipboard
func (c *systemClipboard) Copy(text string) error {
	if clipboard.Unsupported {
		// No clipboard tool found, just print
		_, err := fmt.Fprintln(c.fallback, text)
		return err
	}
	return clipboard.WriteAll(text)
}

// ============================================================================
// Executor
// ============================================================================

// Executor runs the affordances of a parsed snippet: print, copy and run
type Executor struct {
	compiler  Compiler
	clipboard Clipboard
	out       io.Writer
}

// NewExecutor creates a new executor compiling with the given compiler
func NewExecutor(compiler Compiler) *Executor {
	return &Executor{
		compiler:  compiler,
		clipboard: &systemClipboard{fallback: os.Stdout},
		out:       os.Stdout,
	}
}

// WithClipboard sets a custom clipboard implementation (useful for testing)
func (e *Executor) WithClipboard(c Clipboard) *Executor {
	e.clipboard = c
	return e
}

// WithOutput sets where printed snippets and results are written
func (e *Executor) WithOutput(w io.Writer) *Executor {
	e.out = w
	return e
}

// Run compiles and executes the execute variant of res.
// The configuration is only checked here, never while parsing.
func (e *Executor) Run(ctx context.Context, res *parser.Result) (*ExecutionResult, error) {
	if res == nil || res.Config == nil {
		return nil, ErrNotExecutable
	}
	if err := res.Config.Validate(); err != nil {
		return nil, err
	}
	if res.Config.CompilerID == "" {
		return nil, parser.ErrMissingCompilerID
	}
	return e.compiler.Compile(ctx, res.Execute, res.Config)
}

// Copy copies the displayed code
func (e *Executor) Copy(res *parser.Result) error {
	return e.clipboard.Copy(res.Display)
}

// ============================================================================
// Output Handling
// ============================================================================

// OutputMode represents how the selected snippet should be handled
type OutputMode string

const (
	OutputPrint OutputMode = "print"
	OutputCopy  OutputMode = "copy"
	OutputRun   OutputMode = "run"
)

// ParseOutputMode validates a mode name
func ParseOutputMode(s string) (OutputMode, error) {
	switch mode := OutputMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case OutputPrint, OutputCopy, OutputRun:
		return mode, nil
	case "":
		return OutputPrint, nil
	default:
		return "", fmt.Errorf("unsupported output mode: %s (supported: print, copy, run)", s)
	}
}

// OutputWithMode handles a snippet with an explicit mode
func (e *Executor) OutputWithMode(ctx context.Context, res *parser.Result, mode OutputMode) error {
	switch mode {
	case OutputRun:
		result, err := e.Run(ctx, res)
		if err != nil {
			return err
		}
		return WriteResult(e.out, result)
	case OutputCopy:
		return e.Copy(res)
	default: // print
		_, err := fmt.Fprintln(e.out, res.Display)
		return err
	}
}

// WriteResult prints an execution result
func WriteResult(w io.Writer, result *ExecutionResult) error {
	if _, err := fmt.Fprintln(w, strings.TrimRight(result.Output, "\n")); err != nil {
		return err
	}
	if result.Error != "" {
		_, err := fmt.Fprintf(w, "error: %s (return code %d)\n", result.Error, result.ReturnCode)
		return err
	}
	return nil
}
