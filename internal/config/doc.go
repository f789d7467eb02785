// Package config loads, normalizes, and validates Cadence configuration.
//
// Configuration is TOML with an embedded sample file, defaults applied before
// parsing, path expansion (~) applied after, and a final validation pass that
// rejects unusable geometry (margins that consume the whole frame, odd frame
// dimensions, zero-sized pools). Loading never creates directories; callers
// invoke EnsureDirectories when they are about to do real work.
package config
