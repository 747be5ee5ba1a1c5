// Package proctoring turns violation events into persisted warning counts,
// status timeline entries and suspensions.
//
// Every mutating operation runs under a per-interview lock and inside one
// store transaction, so concurrent violations for the same interview never
// lose warning increments. Broadcasts go out after commit and never block.
package proctoring
