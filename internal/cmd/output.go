package cmd

import (
	"bufio"
	"fmt"
	"io"

	"github.com/goccy/go-json"

	"github.com/runger/runsel/internal/picker"
)

// writeResult prints one value per selected entry, optionally preceded by
// the action key that finished the session.
func writeResult(w io.Writer, res picker.Result, printKey bool) error {
	bw := bufio.NewWriter(w)

	if printKey {
		fmt.Fprintln(bw, res.Key.Key)
	}
	for _, e := range res.Entries {
		var v any = e.Name
		if e.Source != nil && e.Source.Value != nil {
			v = e.Source.Value
		}
		s, err := formatValue(v)
		if err != nil {
			return fmt.Errorf("format value of %q: %w", e.Name, err)
		}
		fmt.Fprintln(bw, s)
	}

	return bw.Flush()
}

// formatValue renders strings as-is and everything else as compact JSON.
func formatValue(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
