// Package transport defines the byte-stream transport interfaces used by
// gamenet channels and a few implementations: tcp (with optional TLS), quic
// (one bidirectional stream per connection), winpipe (Windows named pipes)
// and mem (in-process pipes for tests and single-process deployments).
//
// Listeners share one accept pattern (Queue): a goroutine accepts from the
// underlying listener and hands connections to Accept callers, so Accept can
// honour a context.
package transport
