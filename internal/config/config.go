package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/runger/runsel/internal/keybind"
)

// Config represents the runsel configuration.
type Config struct {
	Picker     PickerConfig     `yaml:"picker"`
	Preview    PreviewConfig    `yaml:"preview"`
	KeyBinding KeyBindingConfig `yaml:"key_binding"`
	Log        LogConfig        `yaml:"log"`
}

// PickerConfig holds selector UI settings.
type PickerConfig struct {
	Prompt              string `yaml:"prompt"`                // Query prompt
	PollIntervalMs      int    `yaml:"poll_interval_ms"`      // Preview poll tick
	PreviewWidthPercent int    `yaml:"preview_width_percent"` // Preview pane share of the width (0 = hidden)
	MultiSelect         bool   `yaml:"multi_select"`          // Allow marking several entries
	MatchDescription    bool   `yaml:"match_description"`     // Match the query against descriptions too
}

// PreviewConfig holds background preview settings.
type PreviewConfig struct {
	Workers   int    `yaml:"workers"`    // Concurrent preview scripts
	QueueSize int    `yaml:"queue_size"` // Pending preview tasks before rejecting
	TimeoutMs int    `yaml:"timeout_ms"` // Per-script timeout
	Shell     string `yaml:"shell"`      // Shell for shell-mode items (empty = $SHELL)
	MaxLines  int    `yaml:"max_lines"`  // Lines kept from script output (0 = all)
}

// KeyBindingConfig holds key spellings in "key" or "key:Description" form.
type KeyBindingConfig struct {
	DefaultActionKeys               []string `yaml:"default_action_keys"`
	DefaultActionKeysMultiSelection []string `yaml:"default_action_keys_multi_selection"`
	Mark                            string   `yaml:"mark"`
	RefreshPreview                  string   `yaml:"refresh_preview"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // Log file path (overrides default)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Picker: PickerConfig{
			Prompt:              "> ",
			PollIntervalMs:      50,
			PreviewWidthPercent: 50,
			MultiSelect:         true,
			MatchDescription:    true,
		},
		Preview: PreviewConfig{
			Workers:   4,
			QueueSize: 256,
			TimeoutMs: 10000,
			Shell:     "",
			MaxLines:  1000,
		},
		KeyBinding: KeyBindingConfig{
			DefaultActionKeys:               []string{"enter:Select"},
			DefaultActionKeysMultiSelection: []string{"enter:Select marked"},
			Mark:                            "tab:Mark",
			RefreshPreview:                  "ctrl+r:Refresh preview",
		},
		Log: LogConfig{
			Level: "info",
			File:  "", // Use default from paths
		},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	paths := DefaultPaths()
	return LoadFromFile(paths.ConfigFile())
}

// LoadFromFile loads configuration from the specified file.
// A missing file means defaults. Environment overrides are applied after
// the file and validated with it.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults.
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Env values go through the same clamps as file values.
	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves the configuration to the specified file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Get retrieves a configuration value by dot-separated key.
// For example: "picker.prompt" or "preview.workers"
func (c *Config) Get(key string) (string, error) {
	section, field, err := splitKey(key)
	if err != nil {
		return "", err
	}

	switch section {
	case "picker":
		return c.getPickerField(field)
	case "preview":
		return c.getPreviewField(field)
	case "key_binding":
		return c.getKeyBindingField(field)
	case "log":
		return c.getLogField(field)
	default:
		return "", fmt.Errorf("unknown section: %s", section)
	}
}

// Set sets a configuration value by dot-separated key.
func (c *Config) Set(key, value string) error {
	section, field, err := splitKey(key)
	if err != nil {
		return err
	}

	switch section {
	case "picker":
		return c.setPickerField(field, value)
	case "preview":
		return c.setPreviewField(field, value)
	case "key_binding":
		return c.setKeyBindingField(field, value)
	case "log":
		return c.setLogField(field, value)
	default:
		return fmt.Errorf("unknown section: %s", section)
	}
}

func splitKey(key string) (string, string, error) {
	parts := strings.Split(key, ".")
	if len(parts) != 2 {
		return "", "", errors.New("key must be in format 'section.key'")
	}
	return parts[0], parts[1], nil
}

func (c *Config) getPickerField(field string) (string, error) {
	switch field {
	case "prompt":
		return c.Picker.Prompt, nil
	case "poll_interval_ms":
		return strconv.Itoa(c.Picker.PollIntervalMs), nil
	case "preview_width_percent":
		return strconv.Itoa(c.Picker.PreviewWidthPercent), nil
	case "multi_select":
		return strconv.FormatBool(c.Picker.MultiSelect), nil
	case "match_description":
		return strconv.FormatBool(c.Picker.MatchDescription), nil
	default:
		return "", fmt.Errorf("unknown field: picker.%s", field)
	}
}

func (c *Config) setPickerField(field, value string) error {
	switch field {
	case "prompt":
		c.Picker.Prompt = value
	case "poll_interval_ms":
		return setInt(&c.Picker.PollIntervalMs, field, value)
	case "preview_width_percent":
		return setInt(&c.Picker.PreviewWidthPercent, field, value)
	case "multi_select":
		return setBool(&c.Picker.MultiSelect, field, value)
	case "match_description":
		return setBool(&c.Picker.MatchDescription, field, value)
	default:
		return fmt.Errorf("unknown field: picker.%s", field)
	}
	return nil
}

func (c *Config) getPreviewField(field string) (string, error) {
	switch field {
	case "workers":
		return strconv.Itoa(c.Preview.Workers), nil
	case "queue_size":
		return strconv.Itoa(c.Preview.QueueSize), nil
	case "timeout_ms":
		return strconv.Itoa(c.Preview.TimeoutMs), nil
	case "shell":
		return c.Preview.Shell, nil
	case "max_lines":
		return strconv.Itoa(c.Preview.MaxLines), nil
	default:
		return "", fmt.Errorf("unknown field: preview.%s", field)
	}
}

func (c *Config) setPreviewField(field, value string) error {
	switch field {
	case "workers":
		return setInt(&c.Preview.Workers, field, value)
	case "queue_size":
		return setInt(&c.Preview.QueueSize, field, value)
	case "timeout_ms":
		return setInt(&c.Preview.TimeoutMs, field, value)
	case "shell":
		c.Preview.Shell = value
	case "max_lines":
		return setInt(&c.Preview.MaxLines, field, value)
	default:
		return fmt.Errorf("unknown field: preview.%s", field)
	}
	return nil
}

// List-valued key fields are read and written comma-separated.
func (c *Config) getKeyBindingField(field string) (string, error) {
	switch field {
	case "default_action_keys":
		return strings.Join(c.KeyBinding.DefaultActionKeys, ","), nil
	case "default_action_keys_multi_selection":
		return strings.Join(c.KeyBinding.DefaultActionKeysMultiSelection, ","), nil
	case "mark":
		return c.KeyBinding.Mark, nil
	case "refresh_preview":
		return c.KeyBinding.RefreshPreview, nil
	default:
		return "", fmt.Errorf("unknown field: key_binding.%s", field)
	}
}

func (c *Config) setKeyBindingField(field, value string) error {
	switch field {
	case "default_action_keys":
		c.KeyBinding.DefaultActionKeys = splitList(value)
	case "default_action_keys_multi_selection":
		c.KeyBinding.DefaultActionKeysMultiSelection = splitList(value)
	case "mark":
		c.KeyBinding.Mark = value
	case "refresh_preview":
		c.KeyBinding.RefreshPreview = value
	default:
		return fmt.Errorf("unknown field: key_binding.%s", field)
	}
	return nil
}

func (c *Config) getLogField(field string) (string, error) {
	switch field {
	case "level":
		return c.Log.Level, nil
	case "file":
		return c.Log.File, nil
	default:
		return "", fmt.Errorf("unknown field: log.%s", field)
	}
}

func (c *Config) setLogField(field, value string) error {
	switch field {
	case "level":
		if !isValidLogLevel(value) {
			return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", value)
		}
		c.Log.Level = value
	case "file":
		c.Log.File = value
	default:
		return fmt.Errorf("unknown field: log.%s", field)
	}
	return nil
}

func setInt(dst *int, field, value string) error {
	v, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", field, err)
	}
	*dst = v
	return nil
}

func setBool(dst *bool, field, value string) error {
	v, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", field, err)
	}
	*dst = v
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate validates the configuration. Out-of-range sizes are clamped;
// invalid levels and key spellings are rejected.
func (c *Config) Validate() error {
	if !isValidLogLevel(c.Log.Level) {
		return fmt.Errorf("log.level must be debug, info, warn, or error (got: %s)", c.Log.Level)
	}

	if c.Preview.TimeoutMs < 0 {
		return errors.New("preview.timeout_ms must be >= 0")
	}

	if c.Preview.MaxLines < 0 {
		return errors.New("preview.max_lines must be >= 0")
	}

	// Clamp poll interval to [10, 1000] ms
	if c.Picker.PollIntervalMs < 10 {
		c.Picker.PollIntervalMs = 10
	}
	if c.Picker.PollIntervalMs > 1000 {
		c.Picker.PollIntervalMs = 1000
	}

	// Clamp preview width to [0, 90] percent
	if c.Picker.PreviewWidthPercent < 0 {
		c.Picker.PreviewWidthPercent = 0
	}
	if c.Picker.PreviewWidthPercent > 90 {
		c.Picker.PreviewWidthPercent = 90
	}

	// Clamp workers to [1, 64]
	if c.Preview.Workers < 1 {
		c.Preview.Workers = 1
	}
	if c.Preview.Workers > 64 {
		c.Preview.Workers = 64
	}

	if c.Preview.QueueSize < 1 {
		c.Preview.QueueSize = 1
	}

	if _, err := c.KeyBinding.Resolve(); err != nil {
		return fmt.Errorf("key_binding: %w", err)
	}

	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// Resolve parses the key spellings into the read-only set shared by every
// entry. Empty lists and keys fall back to keybind.DefaultSet().
func (k KeyBindingConfig) Resolve() (*keybind.Set, error) {
	set := keybind.DefaultSet()

	if len(k.DefaultActionKeys) > 0 {
		keys, err := keybind.ParseList(k.DefaultActionKeys)
		if err != nil {
			return nil, fmt.Errorf("default_action_keys: %w", err)
		}
		set.DefaultActionKeys = keys
	}

	if len(k.DefaultActionKeysMultiSelection) > 0 {
		keys, err := keybind.ParseList(k.DefaultActionKeysMultiSelection)
		if err != nil {
			return nil, fmt.Errorf("default_action_keys_multi_selection: %w", err)
		}
		set.DefaultActionKeysMultiSelection = keys
	}

	if k.Mark != "" {
		mark, err := keybind.Parse(k.Mark)
		if err != nil {
			return nil, fmt.Errorf("mark: %w", err)
		}
		set.Mark = mark
	}

	if k.RefreshPreview != "" {
		refresh, err := keybind.Parse(k.RefreshPreview)
		if err != nil {
			return nil, fmt.Errorf("refresh_preview: %w", err)
		}
		set.RefreshPreview = refresh
	}

	return set, nil
}

// ApplyEnvOverrides applies environment variable overrides to the config.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RUNSEL_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			c.Log.Level = "debug"
		}
	}
	if v := os.Getenv("RUNSEL_LOG_LEVEL"); v != "" {
		if isValidLogLevel(v) {
			c.Log.Level = v
		}
	}
	if v := os.Getenv("RUNSEL_PREVIEW_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Preview.Workers = n
		}
	}
}

// ListKeys returns user-facing configuration keys.
func ListKeys() []string {
	return []string{
		"picker.prompt",
		"picker.poll_interval_ms",
		"picker.preview_width_percent",
		"picker.multi_select",
		"picker.match_description",
		"preview.workers",
		"preview.queue_size",
		"preview.timeout_ms",
		"preview.shell",
		"preview.max_lines",
		"key_binding.default_action_keys",
		"key_binding.default_action_keys_multi_selection",
		"key_binding.mark",
		"key_binding.refresh_preview",
		"log.level",
		"log.file",
	}
}
