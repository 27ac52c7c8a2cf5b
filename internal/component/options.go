package component

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"
)

// Options carries the per-instance settings passed to a class factory.
// Values come from YAML or JSON, so numbers may arrive as int or float64 and
// durations as strings ("250ms") or numbers of seconds.
type Options map[string]any

// Merge returns a new Options holding o overlaid by over.
func (o Options) Merge(over Options) Options {
	out := make(Options, len(o)+len(over))
	maps.Copy(out, o)
	maps.Copy(out, over)
	return out
}

// Has reports whether key is set.
func (o Options) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// GetString returns the value of key as a string, or def if unset.
func (o Options) GetString(key, def string) string {
	v, ok := o[key]
	if !ok || v == nil {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// GetStrings returns a list value. A single string becomes a one-element list.
func (o Options) GetStrings(key string) []string {
	switch v := o[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	}
	return nil
}

// GetInt returns the value of key as an int.
func (o Options) GetInt(key string, def int) (int, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: %s must be a whole number, got %v", ErrInvalidOption, key, n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrInvalidOption, key, err)
		}
		return i, nil
	}
	return 0, fmt.Errorf("%w: %s has type %T, want integer", ErrInvalidOption, key, v)
}

// GetBool returns the value of key as a bool.
func (o Options) GetBool(key string, def bool) (bool, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, fmt.Errorf("%w: %s: %w", ErrInvalidOption, key, err)
		}
		return parsed, nil
	}
	return false, fmt.Errorf("%w: %s has type %T, want bool", ErrInvalidOption, key, v)
}

// GetDuration returns the value of key as a time.Duration. Numbers are seconds.
func (o Options) GetDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return def, nil
	}
	switch d := v.(type) {
	case time.Duration:
		return d, nil
	case int:
		return time.Duration(d) * time.Second, nil
	case float64:
		return time.Duration(d * float64(time.Second)), nil
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(d))
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", ErrInvalidOption, key, err)
		}
		return parsed, nil
	}
	return 0, fmt.Errorf("%w: %s has type %T, want duration", ErrInvalidOption, key, v)
}
