// Package log provides structured protocol event logging.
//
// Events are captured at the transport layer (raw frames) and the
// protocol layer (decoded messages, request lifecycle, errors) and
// handed to a Logger. Implementations include a CBOR file logger for
// capture, an slog adapter for console output during development, and
// a multi logger for fanning out to both. Reader replays captured
// files with optional filtering.
package log
