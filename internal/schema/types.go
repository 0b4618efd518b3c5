package schema

import (
	"fmt"

	"github.com/muurk/mowerble/internal/protocol"
)

// FieldType is the wire type of a request or response field
type FieldType string

// Supported field types
const (
	TypeUint8     FieldType = "uint8"
	TypeUint16    FieldType = "uint16"
	TypeUint32    FieldType = "uint32"
	TypeUint64    FieldType = "uint64"
	TypeInt8      FieldType = "int8"
	TypeInt16     FieldType = "int16"
	TypeInt32     FieldType = "int32"
	TypeInt64     FieldType = "int64"
	TypeBool      FieldType = "bool"
	TypeASCII     FieldType = "ascii"
	TypeUTF8      FieldType = "utf8"
	TypeWeekdays  FieldType = "weekdays"
	TypeTimestamp FieldType = "timestamp"
)

// DefaultStringLength is the max length applied to string fields that do not declare one
const DefaultStringLength = 64

// Valid reports whether t is a known field type
func (t FieldType) Valid() bool {
	_, ok := fixedSizes[t]
	return ok || t.IsString()
}

// IsString reports whether t is a length-prefixed string type.
// Trailing NULs in an ascii value are device padding and are dropped on
// decode, so ascii values may not contain NUL. utf8 values are kept as sent.
func (t FieldType) IsString() bool {
	return t == TypeASCII || t == TypeUTF8
}

// IsSigned reports whether t is a signed integer type
func (t FieldType) IsSigned() bool {
	switch t {
	case TypeInt8, TypeInt16, TypeInt32, TypeInt64:
		return true
	}
	return false
}

// IsUnsigned reports whether t is an unsigned integer type
func (t FieldType) IsUnsigned() bool {
	switch t {
	case TypeUint8, TypeUint16, TypeUint32, TypeUint64:
		return true
	}
	return false
}

// Size returns the encoded width in bytes of a fixed-size type.
// ok is false for strings.
func (t FieldType) Size() (size int, ok bool) {
	size, ok = fixedSizes[t]
	return size, ok
}

var fixedSizes = map[FieldType]int{
	TypeUint8:     1,
	TypeUint16:    2,
	TypeUint32:    4,
	TypeUint64:    8,
	TypeInt8:      1,
	TypeInt16:     2,
	TypeInt32:     4,
	TypeInt64:     8,
	TypeBool:      1,
	TypeWeekdays:  1,
	TypeTimestamp: 4,
}

// FieldSpec describes one field of a request or response
type FieldSpec struct {
	Name      string    `yaml:"name"`
	Type      FieldType `yaml:"type"`
	MaxLength int       `yaml:"maxLength,omitempty"` // strings only
	Default   any       `yaml:"default,omitempty"`   // request fields only; nil means required
}

// HasDefault reports whether the field may be omitted by the caller
func (f FieldSpec) HasDefault() bool {
	return f.Default != nil
}

// MinSize is the smallest number of bytes this field occupies on the wire
func (f FieldSpec) MinSize() int {
	if size, ok := f.Type.Size(); ok {
		return size
	}
	return 1
}

// MaxSize is the largest number of bytes this field occupies on the wire
func (f FieldSpec) MaxSize() int {
	if size, ok := f.Type.Size(); ok {
		return size
	}
	return 1 + f.MaxLength
}

// Validation is the response validation rule for a command.
// A response passes when it starts with Prefix and its length lies within
// [MinLength, MaxLength]. A MaxLength of zero means unbounded.
type Validation struct {
	Prefix    []byte `yaml:"prefix,omitempty"`
	MinLength int    `yaml:"minLength,omitempty"`
	MaxLength int    `yaml:"maxLength,omitempty"`
}

// Entry is the immutable definition of one command
type Entry struct {
	Name       Name
	ID         protocol.CommandID
	Request    []FieldSpec
	Response   []FieldSpec
	Validation Validation
}

// String returns a short description such as "GetBatteryLevel(16061.12)"
func (e *Entry) String() string {
	return fmt.Sprintf("%s(%s)", e.Name, e.ID)
}

// RequestField returns the request field spec with the given name
func (e *Entry) RequestField(name string) (FieldSpec, bool) {
	for _, f := range e.Request {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}
