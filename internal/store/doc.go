// Package store persists interview proctoring state in SQLite.
//
// The Store owns the interview session rows this system mutates (current
// status, warning counter, suspension fields, last activity), the append-only
// violation event log, and the append-only status timeline. Question progress
// tables back the admin summary. Mutations that must commit together run in a
// single immediate-mode transaction through WithTx so a violation, the session
// update it causes, and the resulting timeline entry are never partially
// written.
//
// Schema changes ship as numbered files under migrations/ and are applied in
// order on Open. Triggers reject UPDATE and DELETE on the append-only tables.
package store
