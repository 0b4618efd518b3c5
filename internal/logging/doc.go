// Package logging builds the zap loggers used by mowerble.
//
// Nothing in mowerble logs through a global. Commands build one logger at
// startup and hand it down through options:
//
//	log, err := logging.New(levelFlag)
//	if err != nil {
//	    return err
//	}
//	defer log.Sync()
//
//	m := mower.New(transport, channel, mower.WithLogger(log))
//
// # Log Levels
//
//   - Debug: frame and chunk traffic, hex dumps, discarded frames
//   - Info: scans, connects, disconnects, composite operation steps
//   - Warn: failed validation, link loss, failed teardown
//   - Error: proxy server failures
//
// Logging is silent unless MOWERBLE_LOG_LEVEL (or --log-level) is set.
// Output goes to stderr in console format so that command output on
// stdout stays machine readable.
//
// # Protocol Bytes
//
//	log.Debug("Chunk received", logging.Hex("hex", chunk))
//	log.Debug("Chunk dropped", logging.RawBytes(chunk)...)
package logging
