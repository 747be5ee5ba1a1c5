// Package violation maps raw per-frame analysis signals to violation labels
// and resolves the severity of proctoring event types.
//
// Classification is pure and stateless: the same face count, authorization
// flag, and gaze status always produce the same label. Severity lookup uses a
// static table; event types the table does not know are informational.
package violation
