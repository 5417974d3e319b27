// Package history keeps an optional SQLite audit log of update prompts: when
// each was raised and how it was closed. The watcher never reads it back; it
// exists for `bundlewatch history` and post-mortems.
package history
