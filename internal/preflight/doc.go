// Package preflight provides readiness checks for the filesystem paths,
// detector models, and services proctor depends on.
//
// These checks run in two contexts:
//   - The serve command calls RunAll before starting the analysis workers and
//     refuses to start when a required check fails.
//   - The CLI "proctor check" command renders every result as a table.
//
// Each check is gated by its config toggle. Disabled features are skipped.
package preflight
