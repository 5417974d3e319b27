// Package remote asks the origin which bundle it is serving right now.
//
// A Checker performs a single cache-busted GET of the watched page, parses the
// returned HTML, and extracts the app.<fingerprint>.js token from its script
// elements. Every failure surfaces as a *FetchError so callers can treat the
// whole check as one fallible step. There is no retry; the watcher simply
// tries again on its next tick.
package remote
