package command

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/muurk/mowerble/internal/schema"
)

// appendField encodes one value per its field spec
func appendField(buf []byte, spec schema.FieldSpec, value any) ([]byte, error) {
	t := spec.Type

	switch {
	case t.IsUnsigned():
		v, err := toUint64(value)
		if err != nil {
			return nil, err
		}
		size, _ := t.Size()
		if size < 8 && v > (uint64(1)<<(8*size))-1 {
			return nil, fmt.Errorf("value %d out of range for %s", v, t)
		}
		return appendUint(buf, v, size), nil

	case t.IsSigned():
		v, err := toInt64(value)
		if err != nil {
			return nil, err
		}
		size, _ := t.Size()
		if size < 8 {
			lim := int64(1) << (8*size - 1)
			if v < -lim || v >= lim {
				return nil, fmt.Errorf("value %d out of range for %s", v, t)
			}
		}
		return appendUint(buf, uint64(v), size), nil

	case t == schema.TypeBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", value)
		}
		if b {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil

	case t.IsString():
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		if len(s) > spec.MaxLength {
			return nil, fmt.Errorf("string of %d bytes exceeds max length %d", len(s), spec.MaxLength)
		}
		if t == schema.TypeASCII {
			for i := 0; i < len(s); i++ {
				if s[i] >= 0x80 {
					return nil, fmt.Errorf("non-ASCII byte 0x%02x at offset %d", s[i], i)
				}
				if s[i] == 0 {
					return nil, fmt.Errorf("NUL byte at offset %d in ascii string", i)
				}
			}
		} else if !utf8.ValidString(s) {
			return nil, fmt.Errorf("string is not valid UTF-8")
		}
		buf = append(buf, byte(len(s)))
		return append(buf, s...), nil

	case t == schema.TypeWeekdays:
		switch w := value.(type) {
		case Weekdays:
			return append(buf, w.Byte()), nil
		case [7]bool:
			return append(buf, Weekdays(w).Byte()), nil
		}
		v, err := toUint64(value)
		if err != nil {
			return nil, err
		}
		if v > 0x7F {
			return nil, fmt.Errorf("weekday mask 0x%x out of range", v)
		}
		return append(buf, byte(v)), nil

	case t == schema.TypeTimestamp:
		var secs int64
		if tm, ok := value.(time.Time); ok {
			if !tm.IsZero() {
				secs = tm.Unix()
			}
		} else {
			v, err := toInt64(value)
			if err != nil {
				return nil, err
			}
			secs = v
		}
		if secs < 0 || secs > math.MaxUint32 {
			return nil, fmt.Errorf("timestamp %d out of range", secs)
		}
		return appendUint(buf, uint64(secs), 4), nil
	}

	return nil, fmt.Errorf("unsupported field type %q", t)
}

func appendUint(buf []byte, v uint64, size int) []byte {
	switch size {
	case 1:
		return append(buf, byte(v))
	case 2:
		return binary.LittleEndian.AppendUint16(buf, uint16(v))
	case 4:
		return binary.LittleEndian.AppendUint32(buf, uint32(v))
	default:
		return binary.LittleEndian.AppendUint64(buf, v)
	}
}

// decodeField decodes one value and returns the number of bytes consumed
func decodeField(data []byte, spec schema.FieldSpec) (any, int, error) {
	t := spec.Type

	if size, fixed := t.Size(); fixed {
		if len(data) < size {
			return nil, 0, fmt.Errorf("need %d bytes, have %d", size, len(data))
		}
		raw := data[:size]

		switch t {
		case schema.TypeUint8:
			return raw[0], size, nil
		case schema.TypeUint16:
			return binary.LittleEndian.Uint16(raw), size, nil
		case schema.TypeUint32:
			return binary.LittleEndian.Uint32(raw), size, nil
		case schema.TypeUint64:
			return binary.LittleEndian.Uint64(raw), size, nil
		case schema.TypeInt8:
			return int8(raw[0]), size, nil
		case schema.TypeInt16:
			return int16(binary.LittleEndian.Uint16(raw)), size, nil
		case schema.TypeInt32:
			return int32(binary.LittleEndian.Uint32(raw)), size, nil
		case schema.TypeInt64:
			return int64(binary.LittleEndian.Uint64(raw)), size, nil
		case schema.TypeBool:
			return raw[0] != 0, size, nil
		case schema.TypeWeekdays:
			return WeekdaysFromByte(raw[0]), size, nil
		case schema.TypeTimestamp:
			secs := binary.LittleEndian.Uint32(raw)
			if secs == 0 {
				return time.Time{}, size, nil
			}
			return time.Unix(int64(secs), 0).UTC(), size, nil
		}
	}

	if t.IsString() {
		if len(data) < 1 {
			return nil, 0, fmt.Errorf("missing string length")
		}
		n := int(data[0])
		if len(data) < 1+n {
			return nil, 0, fmt.Errorf("string declares %d bytes, have %d", n, len(data)-1)
		}
		s := string(data[1 : 1+n])
		if t == schema.TypeASCII {
			// Devices pad ascii names with NULs
			s = strings.TrimRight(s, "\x00")
		}
		return s, 1 + n, nil
	}

	return nil, 0, fmt.Errorf("unsupported field type %q", t)
}

func toUint64(value any) (uint64, error) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v := rv.Int()
		if v < 0 {
			return 0, fmt.Errorf("negative value %d for unsigned field", v)
		}
		return uint64(v), nil
	}
	return 0, fmt.Errorf("expected integer, got %T", value)
}

func toInt64(value any) (int64, error) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		v := rv.Uint()
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("value %d out of range", v)
		}
		return int64(v), nil
	}
	return 0, fmt.Errorf("expected integer, got %T", value)
}

// ParseValue converts command-line text into a value accepted by a field.
// Integers accept 0x and 0b prefixes, timestamps accept RFC 3339 or Unix
// seconds, and weekdays accept the Weekdays.String form.
func ParseValue(spec schema.FieldSpec, text string) (any, error) {
	t := spec.Type

	switch {
	case t.IsUnsigned():
		size, _ := t.Size()
		v, err := strconv.ParseUint(text, 0, size*8)
		if err != nil {
			return nil, err
		}
		return v, nil
	case t.IsSigned():
		size, _ := t.Size()
		v, err := strconv.ParseInt(text, 0, size*8)
		if err != nil {
			return nil, err
		}
		return v, nil
	case t == schema.TypeBool:
		return strconv.ParseBool(text)
	case t.IsString():
		return text, nil
	case t == schema.TypeWeekdays:
		return ParseWeekdays(text)
	case t == schema.TypeTimestamp:
		if tm, err := time.Parse(time.RFC3339, text); err == nil {
			return tm, nil
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected RFC 3339 time or Unix seconds: %w", err)
		}
		return v, nil
	}
	return nil, fmt.Errorf("unsupported field type %q", t)
}
