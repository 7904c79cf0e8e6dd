// Package protocol implements the viaems protocol engine: the framed
// message decoder, the telemetry feed handler, and the request broker.
//
// A Protocol instance sits between a byte-stream transport and the
// application. The transport pushes inbound bytes through Ingest, which
// parses one CBOR message at a time and dispatches it; everything the
// engine delivers (feed samples, request callbacks, blocking results)
// is produced on the goroutine that calls Ingest; the one exception is
// Close, which fails a pending request on its own goroutine. Outbound requests are
// encoded and handed to the injected Sender.
//
// The broker holds a single pending request per instance. Both an
// async callback form and a blocking form are provided for each request
// kind; blocking calls are serialized against each other so the slot is
// never contended between blocking clients, and any submission while a
// request is pending fails with ErrRequestPending.
package protocol
