// Package wire defines the CBOR wire format for the viaems protocol.
//
// Every logical message is a single CBOR map (RFC 8949) with text keys,
// concatenated on the byte stream with no additional framing; CBOR's
// self-delimiting structure is the framing. The top-level "type" key
// selects the message:
//   - "feed": unsolicited telemetry sample (device to host)
//   - "description": positional schema for subsequent feeds (device to host)
//   - "response": reply correlated to a request by id (device to host)
//   - "request": get/set/structure request (host to device)
//
// # Feed scalars
//
// Feed values are restricted to two encodings: an unsigned integer
// (major type 0, narrowed to uint32) or a single-precision float (0xFA).
// Half- and double-precision floats are rejected, matching the device
// firmware.
package wire
