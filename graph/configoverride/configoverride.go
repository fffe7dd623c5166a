// Package configoverride parses `key=value` configuration override
// strings where value is interpreted as a TOML scalar, falling back to a
// bare string when it does not parse as TOML, using
// github.com/BurntSushi/toml for the scalar grammar.
package configoverride

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Override is one parsed `key=value` entry.
type Override struct {
	Key   string
	Value interface{}
}

// Parse splits raw on the first '=', trims both sides, and parses the
// value as TOML. If the value does not parse as TOML (e.g. it contains
// spaces or is an otherwise-bare word), it falls back to the trimmed,
// quote-stripped string itself. An empty key or a raw string without '='
// is an error.
func Parse(raw string) (Override, error) {
	idx := strings.IndexByte(raw, '=')
	if idx < 0 {
		return Override{}, fmt.Errorf("configoverride: missing '=' in %q", raw)
	}

	key := strings.TrimSpace(raw[:idx])
	valueStr := strings.TrimSpace(raw[idx+1:])
	if key == "" {
		return Override{}, fmt.Errorf("configoverride: empty key in %q", raw)
	}

	value, err := parseValue(valueStr)
	if err != nil {
		value = stripQuotes(valueStr)
	}

	return Override{Key: key, Value: value}, nil
}

// parseValue decodes valueStr as a single TOML value by wrapping it in a
// throwaway key and decoding the resulting one-line document. This reuses
// BurntSushi/toml's value grammar (ints, floats, bools, dates, quoted
// strings, inline arrays/tables) without hand-rolling a parser. TOML has no
// bare strings, so a bare word fails here and Parse falls back to the raw
// string.
func parseValue(valueStr string) (interface{}, error) {
	if valueStr == "" {
		return "", nil
	}

	doc := fmt.Sprintf("v = %s", valueStr)
	var wrapper struct {
		V interface{} `toml:"v"`
	}
	if _, err := toml.Decode(doc, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.V, nil
}

func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Apply merges one Override into table, creating intermediate tables for
// dotted keys and applying last-write-wins on collision. table is mutated
// in place.
func Apply(table map[string]interface{}, o Override) error {
	parts := strings.Split(o.Key, ".")
	cur := table
	for i, part := range parts {
		if part == "" {
			return fmt.Errorf("configoverride: empty key segment in %q", o.Key)
		}
		if i == len(parts)-1 {
			cur[part] = o.Value
			return nil
		}
		next, ok := cur[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			cur[part] = next
		}
		cur = next
	}
	return nil
}

// ApplyAll parses and applies a sequence of `key=value` strings in order,
// so later entries win on key collision (last-write-wins).
func ApplyAll(raws []string) (map[string]interface{}, error) {
	table := make(map[string]interface{})
	for _, raw := range raws {
		o, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		if err := Apply(table, o); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// Print renders an Override back to `key=value` form. String, bool, int64
// and float64 values are written in TOML syntax, so Parse(Print(o))
// reproduces an equivalent Override for them. Any other value (arrays,
// inline tables, date-times) is written with Go's %v formatting, which is
// not TOML; Parse(Print(o)) does not reproduce such values.
func Print(o Override) string {
	return fmt.Sprintf("%s=%s", o.Key, printValue(o.Value))
}

func printValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
