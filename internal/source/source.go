// Package source loads the items a picker session selects from.
//
// Items come from YAML, JSON or TOML documents, either as a top-level list or
// under an "items" key, or from plain text with one item per line. Plain text
// lines may carry a description after a tab.
package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/runger/runsel/internal/entry"
	"github.com/runger/runsel/internal/keybind"
	"github.com/runger/runsel/internal/script"
)

// Common errors.
var (
	ErrUnknownFormat = errors.New("unknown source format")
	ErrMissingName   = errors.New("item has no name")
)

// Format names an input encoding.
type Format string

// Supported formats.
const (
	FormatYAML  Format = "yaml"
	FormatJSON  Format = "json"
	FormatTOML  Format = "toml"
	FormatLines Format = "lines"
)

// Item is one selectable item as written in a source file.
type Item struct {
	Name        string   `yaml:"name" json:"name" toml:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty" toml:"description,omitempty"`
	Preview     []string `yaml:"preview,omitempty" json:"preview,omitempty" toml:"preview,omitempty"`

	// PreviewCommand is run in the background to compute the preview.
	PreviewCommand string `yaml:"preview_command,omitempty" json:"preview_command,omitempty" toml:"preview_command,omitempty"`
	PreviewShell   bool   `yaml:"preview_shell,omitempty" json:"preview_shell,omitempty" toml:"preview_shell,omitempty"`
	PreviewArgs    any    `yaml:"preview_args,omitempty" json:"preview_args,omitempty" toml:"preview_args,omitempty"`

	ActionKeys               []string `yaml:"action_keys,omitempty" json:"action_keys,omitempty" toml:"action_keys,omitempty"`
	ActionKeysMultiSelection []string `yaml:"action_keys_multi_selection,omitempty" json:"action_keys_multi_selection,omitempty" toml:"action_keys_multi_selection,omitempty"`

	// Value is printed when the item is selected; the name when unset.
	Value any `yaml:"value,omitempty" json:"value,omitempty" toml:"value,omitempty"`
}

type document struct {
	Items []Item `yaml:"items" json:"items" toml:"items"`
}

// Options control how items become entry source items.
type Options struct {
	// Shell runs preview commands of items with preview_shell set.
	// Empty means script.DefaultShell().
	Shell string

	// Dir is the working directory of preview commands.
	Dir string

	// MaxLines caps preview command output; zero keeps everything.
	MaxLines int
}

// ParseFormat parses a --format value.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "toml":
		return FormatTOML, nil
	case "lines", "text", "txt":
		return FormatLines, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// FormatFromPath guesses the format from the file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	case ".toml":
		return FormatTOML
	default:
		return FormatLines
	}
}

// Decode reads every item from r.
func Decode(r io.Reader, format Format) ([]Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	var items []Item
	switch format {
	case FormatYAML:
		items, err = decodeYAML(data)
	case FormatJSON:
		items, err = decodeJSON(data)
	case FormatTOML:
		items, err = decodeTOML(data)
	case FormatLines:
		items, err = decodeLines(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", format, err)
	}

	for i, it := range items {
		if strings.TrimSpace(it.Name) == "" {
			return nil, fmt.Errorf("item %d: %w", i, ErrMissingName)
		}
	}
	return items, nil
}

func decodeYAML(data []byte) ([]Item, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	if root.Content[0].Kind == yaml.SequenceNode {
		var items []Item
		if err := root.Content[0].Decode(&items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var doc document
	if err := root.Content[0].Decode(&doc); err != nil {
		return nil, err
	}
	return doc.Items, nil
}

func decodeJSON(data []byte) ([]Item, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		var items []Item
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Items, nil
}

func decodeTOML(data []byte) ([]Item, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Items, nil
}

func decodeLines(data []byte) ([]Item, error) {
	var items []Item
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, desc, _ := strings.Cut(line, "\t")
		items = append(items, Item{Name: name, Description: desc})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// LoadFile reads items from path. An empty format is guessed from the
// extension; "~" expands to the home directory.
func LoadFile(path string, format Format) ([]Item, error) {
	resolved, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = FormatFromPath(resolved)
	}

	f, err := os.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Decode(f, format)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

// ToSourceItem converts it for entry construction. A preview command becomes
// a script.Command; the static preview, when also present, is shown until
// the command first produces output.
func (it Item) ToSourceItem(opts Options) (entry.SourceItem, error) {
	if strings.TrimSpace(it.Name) == "" {
		return entry.SourceItem{}, ErrMissingName
	}

	src := entry.SourceItem{
		Name:        it.Name,
		Description: it.Description,
		Value:       it.Value,
	}
	if src.Value == nil {
		src.Value = it.Name
	}

	if len(it.Preview) > 0 {
		src.Preview = make([]any, len(it.Preview))
		for i, l := range it.Preview {
			src.Preview[i] = l
		}
	}

	if strings.TrimSpace(it.PreviewCommand) != "" {
		cmd := &script.Command{
			Line:     it.PreviewCommand,
			Dir:      opts.Dir,
			MaxLines: opts.MaxLines,
		}
		if it.PreviewShell {
			cmd.Shell = opts.Shell
			if cmd.Shell == "" {
				cmd.Shell = script.DefaultShell()
			}
		}
		src.PreviewScript = cmd
		src.PreviewArgs = it.PreviewArgs
	}

	var err error
	if src.ActionKeys, err = keybind.ParseList(it.ActionKeys); err != nil {
		return entry.SourceItem{}, fmt.Errorf("%s: action_keys: %w", it.Name, err)
	}
	if src.ActionKeysMultiSelection, err = keybind.ParseList(it.ActionKeysMultiSelection); err != nil {
		return entry.SourceItem{}, fmt.Errorf("%s: action_keys_multi_selection: %w", it.Name, err)
	}

	return src, nil
}

// ToSourceItems converts every item, failing on the first invalid one.
func ToSourceItems(items []Item, opts Options) ([]entry.SourceItem, error) {
	out := make([]entry.SourceItem, 0, len(items))
	for i, it := range items {
		src, err := it.ToSourceItem(opts)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, src)
	}
	return out, nil
}
