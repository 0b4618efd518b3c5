// Package command encodes request payloads and decodes response payloads
// for a single schema entry.
//
// A Command is bound to a channel and a schema.Entry. It does no I/O; the
// bytes it produces travel inside a protocol.Frame sent by link.Manager.
//
//	entry, _ := schema.Default().Get(schema.SetOverrideMow)
//	cmd := command.New(channel, entry)
//
//	payload, err := cmd.GenerateRequest(command.Fields{"duration": 10800})
//	if err != nil {
//	    return err // protocol.ErrEncoding
//	}
//
//	// ... round trip ...
//
//	if !cmd.ValidateResponse(resp) {
//	    log.Warn("Response failed validation")
//	}
//	fields, err := cmd.ParseResponse(resp)
//
// Decoded values use fixed Go types so that callers can type-assert or use
// the typed accessors on Fields:
//
//	uint8..uint64, int8..int64   same-width Go integer
//	bool                         bool
//	ascii, utf8                  string
//	weekdays                     Weekdays
//	timestamp                    time.Time (UTC, zero when unset)
//
// Encoding is more forgiving: any Go integer kind is accepted for integer
// fields (including named enum types), as long as the value fits.
package command
