package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/gubarz/acecode/internal/config"
	"github.com/gubarz/acecode/internal/document"
	"github.com/gubarz/acecode/internal/executor"
	"github.com/gubarz/acecode/internal/highlight"
	"github.com/gubarz/acecode/internal/htmlcode"
	"github.com/gubarz/acecode/internal/parser"
	"github.com/gubarz/acecode/internal/store"
	"github.com/gubarz/acecode/internal/ui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "acecode",
	Short: "Annotated code snippets",
	Long: `Parses code snippets annotated with awesome-code-element comments.

Annotations select which lines are displayed, which are
compiled, and how the snippet runs on Compiler Explorer.`,
	SilenceUsage: true,
}

var parseCmd = &cobra.Command{
	Use:   "parse [file|-]",
	Short: "Print the parse result of an annotated snippet",
	Long: `Prints the parse result as JSON, or a single part of it.

Reads stdin when no file is given or the file is "-".`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

var highlightCmd = &cobra.Command{
	Use:   "highlight [file|-]",
	Short: "Print the displayed code with syntax highlighting",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHighlight,
}

var runCmd = &cobra.Command{
	Use:   "run [file|-]",
	Short: "Compile and execute a snippet on Compiler Explorer",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRun,
}

var urlCmd = &cobra.Command{
	Use:   "url [file|-]",
	Short: "Print the Compiler Explorer link of a snippet",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runURL,
}

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "List the code snippets of markdown files",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

var viewCmd = &cobra.Command{
	Use:   "view [path]",
	Short: "Browse the code snippets of markdown files",
	Long: `Interactive viewer over the snippets of markdown files.

Tab cycles the displayed, executed and raw code, Ctrl+X runs the
snippet, Ctrl+Y copies it and Ctrl+O prints its Compiler Explorer link.
Enter hands the snippet to the output mode (print, copy, run).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runView,
}

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List the configured and remote languages",
	Args:  cobra.NoArgs,
	RunE:  runLanguages,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(parseCmd, highlightCmd, runCmd, urlCmd, scanCmd, viewCmd, languagesCmd)

	rootCmd.PersistentFlags().StringP("tag", "t", "", "Annotation tag (default \"// @awesome-code-element\")")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output mode: print, copy, run")
	rootCmd.PersistentFlags().String("url", "", "Compiler Explorer URL")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	viper.BindPFlag("tag", rootCmd.PersistentFlags().Lookup("tag"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("compiler_explorer_url", rootCmd.PersistentFlags().Lookup("url"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	for _, c := range []*cobra.Command{parseCmd, highlightCmd, runCmd, urlCmd} {
		c.Flags().Bool("html", false, "Treat the input as an HTML fragment")
		c.Flags().StringP("language", "l", "", "Language whose stored configuration applies")
	}

	parseCmd.Flags().Bool("display", false, "Print only the displayed code")
	parseCmd.Flags().Bool("execute", false, "Print only the executed code")
	parseCmd.Flags().Bool("raw", false, "Print only the raw text")
	parseCmd.Flags().Bool("config", false, "Print only the configuration")

	viewCmd.Flags().StringP("query", "q", "", "Initial search query")
	viewCmd.Flags().Bool("raw", false, "Start on the raw text")
	viper.BindPFlag("show_raw", viewCmd.Flags().Lookup("raw"))
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: config.GetLogLevel()})))
}

// ============================================================================
// Collaborators
// ============================================================================

func newParser() *parser.Parser {
	return parser.New(parser.WithTag(config.GetTag()), parser.WithLogger(slog.Default()))
}

func loadStore() (*store.Store, error) {
	st := store.New(store.WithLogger(slog.Default()))
	if err := st.LoadFile(config.GetLanguages()); err != nil {
		return nil, fmt.Errorf("language store: %w", err)
	}
	return st, nil
}

func newClient() (*executor.Client, error) {
	fetcher := executor.NewIncludeFetcher(nil, config.GetIncludeCacheSize())
	return executor.NewClient(config.GetCompilerExplorerURL(),
		executor.WithTimeout(config.GetTimeout()),
		executor.WithIncludeFetcher(fetcher),
		executor.WithClientLogger(slog.Default()),
	)
}

func newHighlighter() *highlight.Highlighter {
	return highlight.New(config.GetStyle(), config.GetFormatter())
}

// ============================================================================
// Input
// ============================================================================

// readInput returns the snippet text named by args, stdin for none or "-"
func readInput(cmd *cobra.Command, args []string) (string, error) {
	var data []byte
	var err error
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", err
	}

	text := string(data)
	if isHTML, _ := cmd.Flags().GetBool("html"); isHTML {
		return htmlcode.Extract(text)
	}
	return text, nil
}

// parseInput reads and parses the snippet, applying the stored configuration of --language
func parseInput(cmd *cobra.Command, args []string) (*parser.Result, error) {
	text, err := readInput(cmd, args)
	if err != nil {
		return nil, err
	}

	var defaults *parser.Configuration
	if language, _ := cmd.Flags().GetString("language"); language != "" {
		st, err := loadStore()
		if err != nil {
			return nil, err
		}
		cfg, ok := st.Get(language)
		if !ok {
			slog.Warn("no stored configuration", "language", language)
		}
		defaults = cfg
	}

	return newParser().Parse(text, defaults)
}

// ============================================================================
// Commands
// ============================================================================

func runParse(cmd *cobra.Command, args []string) error {
	res, err := parseInput(cmd, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	flags := cmd.Flags()
	switch {
	case flagSet(flags.GetBool("display")):
		_, err = fmt.Fprintln(out, res.Display)
	case flagSet(flags.GetBool("execute")):
		_, err = fmt.Fprintln(out, res.Execute)
	case flagSet(flags.GetBool("raw")):
		_, err = fmt.Fprintln(out, res.Raw)
	case flagSet(flags.GetBool("config")):
		err = writeJSON(out, res.Config)
	default:
		err = writeJSON(out, res)
	}
	return err
}

func flagSet(v bool, _ error) bool {
	return v
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func runHighlight(cmd *cobra.Command, args []string) error {
	res, err := parseInput(cmd, args)
	if err != nil {
		return err
	}
	language := ""
	if res.Config != nil {
		language = res.Config.Language
	}
	if l, _ := cmd.Flags().GetString("language"); l != "" {
		language = l
	}
	out := cmd.OutOrStdout()
	if err := newHighlighter().Highlight(out, res.Display, language); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out)
	return err
}

func runRun(cmd *cobra.Command, args []string) error {
	res, err := parseInput(cmd, args)
	if err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}

	result, err := executor.NewExecutor(client).Run(cmd.Context(), res)
	if err != nil {
		return err
	}
	if err := executor.WriteResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if result.ReturnCode != 0 {
		return fmt.Errorf("program exited with code %d", result.ReturnCode)
	}
	return nil
}

func runURL(cmd *cobra.Command, args []string) error {
	res, err := parseInput(cmd, args)
	if err != nil {
		return err
	}
	language, _ := cmd.Flags().GetString("language")
	link, err := executor.ClientStateURL(config.GetCompilerExplorerURL(), res.Execute, language, res.Config)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), link)
	return err
}

// scanPath resolves the path argument and scans its markdown files
func scanPath(args []string) (*document.Index, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("error resolving path: %w", err)
	}
	index, err := document.NewScanner().Scan(absPath)
	if err != nil {
		return nil, fmt.Errorf("scan error: %w", err)
	}
	return index, nil
}

var (
	pathStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	headerStyle = lipgloss.NewStyle().Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

func runScan(cmd *cobra.Command, args []string) error {
	index, err := scanPath(args)
	if err != nil {
		return err
	}
	st, err := loadStore()
	if err != nil {
		return err
	}

	p := newParser()
	out := cmd.OutOrStdout()
	failures := 0
	for _, snippet := range index.Snippets {
		defaults, _ := st.Get(snippet.Language)
		res, err := p.Parse(snippet.Code, defaults)

		status := "-"
		switch {
		case err != nil:
			failures++
			status = errorStyle.Render(err.Error())
		case res.Config != nil && !res.Executable():
			status = errorStyle.Render(parser.ErrMissingCompilerID.Error())
		case res.Executable():
			status = res.Config.CompilerID
		}
		if err == nil && len(res.Warnings) > 0 {
			status += fmt.Sprintf(" (%d warnings)", len(res.Warnings))
		}

		fmt.Fprintf(out, "%s  %s  %s  %s\n",
			pathStyle.Render(fmt.Sprintf("%s:%d", snippet.File, snippet.Line)),
			headerStyle.Render(snippet.Header),
			snippet.Language,
			status,
		)
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d snippets failed to parse", failures, len(index.Snippets))
	}
	return nil
}

func runView(cmd *cobra.Command, args []string) error {
	mode, err := executor.ParseOutputMode(config.GetOutput())
	if err != nil {
		return err
	}
	index, err := scanPath(args)
	if err != nil {
		return err
	}
	st, err := loadStore()
	if err != nil {
		return err
	}
	client, err := newClient()
	if err != nil {
		return err
	}

	session := ui.Session{
		Parser:      newParser(),
		Store:       st,
		Executor:    executor.NewExecutor(client),
		Highlighter: newHighlighter(),
		BaseURL:     client.BaseURL(),
		Output:      mode,
		ShowRaw:     config.GetShowRaw(),
	}
	query, _ := cmd.Flags().GetString("query")
	return ui.RunTUI(cmd.Context(), index, session, query)
}

func runLanguages(cmd *cobra.Command, args []string) error {
	st, err := loadStore()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, language := range st.Languages() {
		cfg, _ := st.Get(language)
		fmt.Fprintf(out, "%s  %s\n", headerStyle.Render(language), cfg.CompilerID)
	}

	client, err := newClient()
	if err != nil {
		return err
	}
	remote, err := client.Languages(cmd.Context())
	if err != nil {
		return fmt.Errorf("%s: %w", client.BaseURL(), err)
	}
	fmt.Fprintf(out, "%s\n", pathStyle.Render(client.BaseURL()+": "+strings.Join(remote, ", ")))
	return nil
}

func main() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
