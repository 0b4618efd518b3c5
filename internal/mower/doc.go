// Package mower is the public face of the protocol engine: connect to a
// mower, run named commands, and use typed wrappers and composite
// operations built from them.
//
// Usage:
//
//	m := mower.New(adapter, mower.DefaultChannel,
//	    mower.WithScanner(adapter),
//	    mower.WithLogger(log),
//	    mower.WithPIN(1234),
//	)
//
//	err := m.Session(ctx, "60:98:66:AA:BB:CC", func(ctx context.Context, m *mower.Mower) error {
//	    level, err := m.BatteryLevel(ctx)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Printf("Battery: %d%%\n", level)
//	    return m.Override(ctx, 3.0)
//	})
//
// Every command runs with a fixed timeout (10s unless WithTimeout says
// otherwise). The facade never retries; timeouts and disconnects reach the
// caller, which owns the retry policy.
//
// A response that fails schema validation is not an error. Command logs a
// warning, parses the payload anyway and reports Result.SoftFailed.
// Composite operations (Override, Park, Resume, Pause) carry on past soft
// failures.
package mower
