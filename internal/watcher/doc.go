// Package watcher implements the update watcher: a poll loop that compares the
// bundle fingerprint of the loaded document with the one the origin serves
// and raises a single persistent prompt when they differ.
//
// The watcher owns all of its state behind one mutex. Each tick refreshes the
// local fingerprint (unless the user dismissed a prompt), fetches the remote
// fingerprint outside the lock, and raises a prompt when both are known, they
// differ, and no prompt is already open. Dismiss and Reload are the two user
// actions that clear a prompt.
package watcher
