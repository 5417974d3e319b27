// Command bundlewatch watches a deployed web page for a new client bundle and
// prompts the user to reload when one appears.
//
// `bundlewatch run` starts the watcher daemon. The other subcommands inspect
// pages once or talk to a running daemon through its control API.
package main
