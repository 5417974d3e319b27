// Package notify renders update prompts.
//
// The watcher raises at most one prompt at a time through a Prompter and
// closes it through the returned Prompt. Implementations cover the terminal
// (Console), ntfy push notifications (Ntfy), websocket subscribers (Hub), and
// Fanout, which shows the same update on several surfaces at once.
package notify
