// Package analysis runs frame analyzers on dedicated worker goroutines and
// exposes the latest per-session result to callers that must never block.
//
// A Worker owns one FrameAnalyzer, a bounded task channel and a bounded
// result channel. Both channels drop on full. The Coordinator owns one Worker
// per analyzer kind, replaces dead workers lazily on the next submission, and
// merges results per session with latest-wins semantics.
package analysis
