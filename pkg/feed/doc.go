// Package feed models the telemetry side of the viaems protocol: the
// ordered set of field keys declared by a description message and the
// typed values carried by each feed sample.
//
// The key order is defined by the most recent description and indexes
// every subsequent feed positionally. A key's kind is not part of the
// description; it is learned from the first feed that delivers a value
// for it, so a key observed between a description and the first
// matching feed reports FieldUnknown.
package feed
