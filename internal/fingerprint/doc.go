// Package fingerprint extracts build fingerprints from bundle script URLs.
//
// Bundlers embed a content hash or build version in the main entry script's
// filename (app.<fingerprint>.js). Comparing the token found in the page a
// client is running against the token in the page the origin currently serves
// tells the watcher whether a new build has been deployed.
//
// Extraction is pure: an absent fingerprint is the empty string, never an
// error. Only HTML parsing in ScriptSources can fail.
package fingerprint
