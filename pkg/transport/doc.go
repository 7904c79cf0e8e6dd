// Package transport pumps bytes between a protocol engine and a
// full-duplex byte stream.
//
// The device end of the stream is whatever delivers the CDC-ACM data: a
// USB TTY (/dev/ttyACM*), a pseudo terminal, a socket, or the stdio of
// a simulator child process. Stream owns the reader goroutine that
// drives protocol ingestion; Sim forks the simulator binary and couples
// its stdio to a Stream.
//
// The transport carries no retry or reconnection logic; a dead stream
// stays dead and the application decides what to do next.
package transport
