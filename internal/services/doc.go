// Package services defines the error taxonomy and context plumbing shared by
// the rendering pipeline stages.
//
// Sentinel markers classify failures the way the job store persists them:
// configuration-level problems (timing gaps, effect extents) abort before any
// frame is produced, per-frame problems are retried locally, and encoding
// problems get exactly one hardware-to-software fallback. Wrap tags errors
// with a marker plus component/operation context so ErrorKind classification
// survives arbitrary wrapping.
package services
