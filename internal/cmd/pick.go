package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/runger/runsel/internal/config"
	"github.com/runger/runsel/internal/dispatch"
	"github.com/runger/runsel/internal/entry"
	"github.com/runger/runsel/internal/keybind"
	"github.com/runger/runsel/internal/logging"
	"github.com/runger/runsel/internal/match"
	"github.com/runger/runsel/internal/picker"
	"github.com/runger/runsel/internal/source"
)

// maxQueryLen is the maximum length of a query string in bytes.
const maxQueryLen = 4096

// minTermWidth is the narrowest terminal the picker runs in.
const minTermWidth = 20

// pickOpts holds the parsed command-line options shared by the root command
// and "pick".
type pickOpts struct {
	format     string
	query      string
	multi      bool
	watch      bool
	printKey   bool
	configPath string
}

var pickFlags pickOpts

var pickCmd = &cobra.Command{
	Use:   "pick [file]",
	Short: "Select items from a file or stdin",
	Long: `Select items from a file or stdin and print the selected values.

The format is taken from --format, or guessed from the file extension.
Plain text input has one item per line; a tab separates name and description.

Exit status is 0 when a selection was made, 1 when cancelled and 2 on errors.

Examples:
  runsel pick tasks.yaml
  ls | runsel pick
  runsel pick --multi --print-key --watch commands.toml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPick,
}

func init() {
	addPickFlags(pickCmd)
}

func addPickFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&pickFlags.format, "format", "f", "", "input format: yaml, json, toml or lines")
	f.StringVarP(&pickFlags.query, "query", "q", "", "initial query")
	f.BoolVarP(&pickFlags.multi, "multi", "m", false, "allow marking several items")
	f.BoolVarP(&pickFlags.watch, "watch", "w", false, "reload the item file when it changes")
	f.BoolVar(&pickFlags.printKey, "print-key", false, "print the action key before the values")
	f.StringVar(&pickFlags.configPath, "config", "", "config file (default: XDG config dir)")
}

func runPick(cmd *cobra.Command, args []string) error {
	opts := pickFlags

	query, err := sanitizeQuery(opts.query)
	if err != nil {
		return &exitError{code: exitFallback, err: fmt.Errorf("--query: %w", err)}
	}
	opts.query = query

	cfg, cfgPath, err := loadConfig(opts.configPath)
	if err != nil {
		return &exitError{code: exitFallback, err: err}
	}
	if !cmd.Flags().Changed("multi") {
		opts.multi = cfg.Picker.MultiSelect
	}

	logger, closeLog := openLogger(cfg)
	defer closeLog()

	var file string
	if len(args) == 1 {
		file = args[0]
	}
	if opts.watch && file == "" {
		return &exitError{code: exitFallback, err: errors.New("--watch needs a file argument")}
	}

	format, err := resolveFormat(opts.format, file)
	if err != nil {
		return &exitError{code: exitFallback, err: err}
	}

	keys, err := cfg.KeyBinding.Resolve()
	if err != nil {
		return &exitError{code: exitFallback, err: fmt.Errorf("key_binding: %w", err)}
	}

	items, err := loadItems(file, format, cmd.InOrStdin())
	if err != nil {
		return &exitError{code: exitFallback, err: err}
	}
	entries, err := buildEntries(items, cfg, keys)
	if err != nil {
		return &exitError{code: exitFallback, err: err}
	}

	tty, err := openTTY()
	if err != nil {
		return &exitError{code: exitFallback, err: fmt.Errorf("no TTY available: %w", err)}
	}
	defer tty.Close()

	if err := checkTERM(os.Getenv("TERM")); err != nil {
		return &exitError{code: exitFallback, err: err}
	}
	if err := checkTermWidth(tty); err != nil {
		return &exitError{code: exitFallback, err: err}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	pool := newPool(cfg, logger)
	if err := pool.Start(ctx); err != nil {
		return &exitError{code: exitFallback, err: err}
	}
	defer func() { _ = pool.Close() }()

	logging.LogSessionStart(logger, logging.SessionInfo{
		Version:    Version,
		ConfigPath: cfgPath,
		Source:     sourceTitle(file),
		Format:     string(format),
		Items:      len(entries),
		Workers:    cfg.Preview.Workers,
		PID:        os.Getpid(),
	})
	start := time.Now()

	model := picker.NewModel(entries, pool, pickerOptions(cfg, opts, keys, file))

	// Detect color profile from the tty: stdout is usually a pipe.
	lipgloss.SetColorProfile(termenv.NewOutput(tty).ColorProfile())

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithInput(tty),
		tea.WithOutput(tty),
		tea.WithContext(ctx),
	)

	if opts.watch {
		err := source.Watch(ctx, file, format, source.DefaultDebounce, func(items []source.Item, err error) {
			if err == nil {
				var reloaded []*entry.Entry
				if reloaded, err = buildEntries(items, cfg, keys); err == nil {
					logging.LogSourceReload(logger, file, len(reloaded))
					p.Send(picker.ReloadMsg{Entries: reloaded})
					return
				}
			}
			logging.LogSourceReloadFailed(logger, file, err)
		})
		if err != nil {
			return &exitError{code: exitFallback, err: err}
		}
	}

	finalModel, err := p.Run()
	if err != nil {
		return &exitError{code: exitFallback, err: fmt.Errorf("TUI error: %w", err)}
	}

	m, ok := finalModel.(picker.Model)
	if !ok {
		return &exitError{code: exitFallback, err: errors.New("unexpected model type")}
	}

	stats := pool.Stats()
	logger.Debug("preview pool stats",
		"submitted", stats.Submitted,
		"completed", stats.Completed,
		"failed", stats.Failed,
		"rejected", stats.Rejected,
	)

	res, ok := m.Result()
	if !ok {
		logging.LogSessionEnd(logger, "cancelled", 0, time.Since(start))
		return errCancelled
	}
	logging.LogSessionEnd(logger, "selected", len(res.Entries), time.Since(start))

	if err := writeResult(cmd.OutOrStdout(), res, opts.printKey); err != nil {
		return &exitError{code: exitFallback, err: err}
	}
	return nil
}

// loadConfig reads the config file named by --config, or the default one.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		path = config.DefaultPaths().ConfigFile()
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, path, nil
}

// openLogger opens the session log. Logging problems never stop a session.
func openLogger(cfg *config.Config) (*slog.Logger, func()) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}

	path := cfg.Log.File
	if path == "" {
		path = config.DefaultPaths().LogFile()
	}

	logger, closer, err := logging.OpenFile(path, level)
	if err != nil {
		return logging.Discard(), func() {}
	}
	return logger, func() { _ = closer.Close() }
}

// resolveFormat picks the input format from the flag, then the file name.
// Stdin defaults to plain lines.
func resolveFormat(flag, file string) (source.Format, error) {
	if flag != "" {
		return source.ParseFormat(flag)
	}
	if file == "" {
		return source.FormatLines, nil
	}
	return source.FormatFromPath(file), nil
}

// loadItems reads items from file, or from stdin when file is empty.
func loadItems(file string, format source.Format, stdin io.Reader) ([]source.Item, error) {
	if file != "" {
		return source.LoadFile(file, format)
	}
	if f, ok := stdin.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			return nil, errors.New("no input: pass a file or pipe items on stdin")
		}
	}
	return source.Decode(stdin, format)
}

// buildEntries turns decoded items into fresh entries.
func buildEntries(items []source.Item, cfg *config.Config, keys *keybind.Set) ([]*entry.Entry, error) {
	srcItems, err := source.ToSourceItems(items, source.Options{
		Shell:    cfg.Preview.Shell,
		MaxLines: cfg.Preview.MaxLines,
	})
	if err != nil {
		return nil, err
	}
	return entry.ConvertFrom(srcItems, keys), nil
}

func newPool(cfg *config.Config, logger *slog.Logger) *dispatch.Pool {
	return dispatch.New(dispatch.Options{
		Workers:   cfg.Preview.Workers,
		QueueSize: cfg.Preview.QueueSize,
		Timeout:   time.Duration(cfg.Preview.TimeoutMs) * time.Millisecond,
		Logger:    logger,
	})
}

func pickerOptions(cfg *config.Config, opts pickOpts, keys *keybind.Set, file string) picker.Options {
	fields := match.NameOnly
	if cfg.Picker.MatchDescription {
		fields = match.NameAndDescription
	}
	return picker.Options{
		Title:               sourceTitle(file),
		Prompt:              cfg.Picker.Prompt,
		Query:               opts.query,
		PollInterval:        time.Duration(cfg.Picker.PollIntervalMs) * time.Millisecond,
		PreviewWidthPercent: cfg.Picker.PreviewWidthPercent,
		MultiSelect:         opts.multi,
		Matcher:             match.Matcher{Fields: fields},
		Keys:                keys,
	}
}

func sourceTitle(file string) string {
	if file == "" {
		return "stdin"
	}
	return file
}

// sanitizeQuery strips control characters and validates the query string.
func sanitizeQuery(q string) (string, error) {
	if q == "" {
		return "", nil
	}

	// Reject newlines before stripping.
	if strings.ContainsAny(q, "\n\r") {
		return "", errors.New("query must not contain newlines")
	}

	// Strip control characters (0x00-0x1F) except tab (0x09).
	var b strings.Builder
	b.Grow(len(q))
	for _, r := range q {
		if r <= 0x1F && r != 0x09 {
			continue
		}
		b.WriteRune(r)
	}
	result := b.String()

	// Truncate to maxQueryLen bytes without splitting a rune.
	if len(result) > maxQueryLen {
		cut := maxQueryLen
		for cut > 0 && !utf8RuneStart(result[cut]) {
			cut--
		}
		result = result[:cut]
	}

	return result, nil
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }

// checkTERM verifies that the terminal type can host the picker.
func checkTERM(term string) error {
	if term == "dumb" {
		return errors.New("TERM=dumb is not supported")
	}
	return nil
}
