// Package dashboard is an interactive status screen for a connected mower.
//
// It refreshes the mower's status report on an interval and offers key
// bindings for the common operations: override, pause, resume and park.
// Only one command is in flight at a time; automatic refreshes are
// skipped while an action runs.
package dashboard
