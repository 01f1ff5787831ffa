package entry

import (
	"fmt"
	"reflect"
	"strings"
)

// FormatLines converts each element to text and splits it into lines.
// Carriage returns are dropped; absent elements are skipped.
func FormatLines(objs []any) []string {
	lines := make([]string, 0, len(objs))
	for _, obj := range objs {
		text, ok := toText(obj)
		if !ok {
			continue
		}
		text = strings.ReplaceAll(text, "\r", "")
		lines = append(lines, strings.Split(text, "\n")...)
	}
	return lines
}

func toText(obj any) (string, bool) {
	if isAbsent(obj) {
		return "", false
	}
	switch v := obj.(type) {
	case string:
		return v, true
	case *string:
		return *v, true
	case []byte:
		return string(v), true
	case error:
		return v.Error(), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// isAbsent reports nil interfaces and typed nil pointers, maps, slices and
// funcs.
func isAbsent(obj any) bool {
	if obj == nil {
		return true
	}
	switch v := reflect.ValueOf(obj); v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}
