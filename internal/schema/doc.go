// Package schema holds the static command definitions and the
// manufacturer/model table shipped with mowerble.
//
// Definitions are YAML files embedded at build time. They are parsed once,
// on first use of Default, and never change afterwards, so a *Registry can
// be shared across goroutines and connections without locking.
//
// Each command entry carries:
//
//   - a CommandID (major/minor) placed in the frame header
//   - the ordered request fields with their wire types and optional defaults
//   - the ordered response fields
//   - a validation rule (expected leading bytes and length bounds)
//
// Usage:
//
//	reg := schema.Default()
//	entry, err := reg.Get(schema.GetBatteryLevel)
//	if err != nil {
//	    return err // protocol.ErrUnknownCommand
//	}
//
//	manufacturer, model, ok := reg.Models().Lookup(deviceType, deviceVariant)
//
// Supported field types are listed by FieldType. All integers are little
// endian. Strings carry a one-byte length prefix. Weekdays pack one bit per
// day starting with Monday at bit 0. Timestamps are uint32 Unix seconds with
// zero meaning "not set".
package schema
