// Package document provides the "currently loaded page" side of the watcher.
//
// A Source reports the script URLs of the document the user is looking at:
// an HTML file on disk, a snapshot captured from the origin at startup, or a
// live Chrome tab reached over the DevTools protocol. A Reloader performs the
// reload action for that document.
package document
