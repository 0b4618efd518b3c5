package command

import (
	"fmt"
	"sort"
	"time"

	"github.com/muurk/mowerble/internal/protocol"
)

// Fields maps field names to values, for requests and decoded responses
type Fields map[string]any

// Keys returns the field names in sorted order
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Single returns the only value when f has exactly one entry
func (f Fields) Single() (any, bool) {
	if len(f) != 1 {
		return nil, false
	}
	for _, v := range f {
		return v, true
	}
	return nil, false
}

func (f Fields) get(name string) (any, error) {
	v, ok := f[name]
	if !ok {
		return nil, protocol.NewDecodingError(fmt.Sprintf("response has no field %q", name), nil)
	}
	return v, nil
}

func mismatch(name string, want string, got any) error {
	return protocol.NewDecodingError(fmt.Sprintf("field %q is %T, not %s", name, got, want), nil)
}

// Uint returns an unsigned integer field, widening as needed
func (f Fields) Uint(name string) (uint64, error) {
	v, err := f.get(name)
	if err != nil {
		return 0, err
	}
	n, err := toUint64(v)
	if err != nil {
		return 0, mismatch(name, "an unsigned integer", v)
	}
	return n, nil
}

// Int returns an integer field as int64
func (f Fields) Int(name string) (int64, error) {
	v, err := f.get(name)
	if err != nil {
		return 0, err
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, mismatch(name, "an integer", v)
	}
	return n, nil
}

// Bool returns a bool field
func (f Fields) Bool(name string) (bool, error) {
	v, err := f.get(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, mismatch(name, "a bool", v)
	}
	return b, nil
}

// Text returns a string field
func (f Fields) Text(name string) (string, error) {
	v, err := f.get(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", mismatch(name, "a string", v)
	}
	return s, nil
}

// Time returns a timestamp field. Unset timestamps are the zero time.
func (f Fields) Time(name string) (time.Time, error) {
	v, err := f.get(name)
	if err != nil {
		return time.Time{}, err
	}
	t, ok := v.(time.Time)
	if !ok {
		return time.Time{}, mismatch(name, "a time", v)
	}
	return t, nil
}

// Weekdays returns a weekdays field
func (f Fields) Weekdays(name string) (Weekdays, error) {
	v, err := f.get(name)
	if err != nil {
		return Weekdays{}, err
	}
	w, ok := v.(Weekdays)
	if !ok {
		return Weekdays{}, mismatch(name, "weekdays", v)
	}
	return w, nil
}
