// Package job persists render jobs and drives one from validation through
// encoding. A job moves Queued -> Analyzing -> Rendering -> Encoding ->
// Completed, or lands in Failed with the error kind that killed it. State
// lives in SQLite so an interrupted run is visible after restart.
package job
