package command

import (
	"bytes"
	"fmt"

	"github.com/muurk/mowerble/internal/protocol"
	"github.com/muurk/mowerble/internal/schema"
)

// Command encodes and decodes payloads for one schema entry on one channel
type Command struct {
	channel uint32
	entry   *schema.Entry
}

// New creates a command for the given channel and schema entry
func New(channel uint32, entry *schema.Entry) *Command {
	return &Command{channel: channel, entry: entry}
}

// Name returns the command name
func (c *Command) Name() schema.Name { return c.entry.Name }

// ID returns the command id placed in the frame header
func (c *Command) ID() protocol.CommandID { return c.entry.ID }

// Channel returns the channel the command is bound to
func (c *Command) Channel() uint32 { return c.channel }

// Entry returns the schema entry
func (c *Command) Entry() *schema.Entry { return c.entry }

// Matches reports whether a frame is the response to this command
func (c *Command) Matches(f *protocol.Frame) bool {
	return f.Channel == c.channel && f.Command == c.entry.ID
}

// GenerateRequest encodes the request payload.
// Every request field must be supplied unless the schema gives it a
// default. Unknown fields and out-of-range values are rejected with an
// encoding error.
func (c *Command) GenerateRequest(fields Fields) ([]byte, error) {
	for name := range fields {
		if _, ok := c.entry.RequestField(name); !ok {
			return nil, protocol.NewEncodingError(
				fmt.Sprintf("%s: unknown request field %q", c.entry.Name, name), nil)
		}
	}

	var buf []byte
	for _, spec := range c.entry.Request {
		value, ok := fields[spec.Name]
		if !ok {
			if !spec.HasDefault() {
				return nil, protocol.NewEncodingError(
					fmt.Sprintf("%s: missing required field %q", c.entry.Name, spec.Name), nil)
			}
			value = spec.Default
		}

		var err error
		buf, err = appendField(buf, spec, value)
		if err != nil {
			return nil, protocol.NewEncodingError(
				fmt.Sprintf("%s: field %q", c.entry.Name, spec.Name), err)
		}
	}

	if buf == nil {
		buf = []byte{}
	}
	return buf, nil
}

// ValidateResponse applies the entry's validation rule.
// A false result is not fatal; callers log it and still parse.
func (c *Command) ValidateResponse(payload []byte) bool {
	v := c.entry.Validation
	if !bytes.HasPrefix(payload, v.Prefix) {
		return false
	}
	if len(payload) < v.MinLength {
		return false
	}
	if v.MaxLength > 0 && len(payload) > v.MaxLength {
		return false
	}
	return true
}

// ParseResponse decodes the response fields in schema order.
// The validation prefix is skipped by length, whatever its content.
// Trailing bytes beyond the declared fields are ignored.
func (c *Command) ParseResponse(payload []byte) (Fields, error) {
	offset := len(c.entry.Validation.Prefix)
	if len(payload) < offset {
		return nil, protocol.NewDecodingError(
			fmt.Sprintf("%s: response of %d bytes is shorter than its %d byte prefix", c.entry.Name, len(payload), offset), nil)
	}

	fields := make(Fields, len(c.entry.Response))
	for _, spec := range c.entry.Response {
		value, n, err := decodeField(payload[offset:], spec)
		if err != nil {
			return nil, protocol.NewDecodingError(
				fmt.Sprintf("%s: field %q at offset %d", c.entry.Name, spec.Name, offset), err)
		}
		fields[spec.Name] = value
		offset += n
	}

	return fields, nil
}

// EncodeResponse builds a response payload, status prefix included.
// It is the inverse of ParseResponse and is used by device simulators.
func (c *Command) EncodeResponse(fields Fields) ([]byte, error) {
	buf := append([]byte{}, c.entry.Validation.Prefix...)
	for _, spec := range c.entry.Response {
		value, ok := fields[spec.Name]
		if !ok {
			return nil, protocol.NewEncodingError(
				fmt.Sprintf("%s: missing response field %q", c.entry.Name, spec.Name), nil)
		}
		var err error
		buf, err = appendField(buf, spec, value)
		if err != nil {
			return nil, protocol.NewEncodingError(
				fmt.Sprintf("%s: response field %q", c.entry.Name, spec.Name), err)
		}
	}
	return buf, nil
}

// DecodeRequest parses a request payload produced by GenerateRequest.
// Like EncodeResponse it exists for the device side of a conversation.
func (c *Command) DecodeRequest(payload []byte) (Fields, error) {
	fields := make(Fields, len(c.entry.Request))
	offset := 0
	for _, spec := range c.entry.Request {
		value, n, err := decodeField(payload[offset:], spec)
		if err != nil {
			return nil, protocol.NewDecodingError(
				fmt.Sprintf("%s: request field %q", c.entry.Name, spec.Name), err)
		}
		fields[spec.Name] = value
		offset += n
	}
	return fields, nil
}
