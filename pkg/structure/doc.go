// Package structure models the device's configuration schema as a tree
// of typed nodes.
//
// The device reports its schema as a recursive CBOR document: arrays
// become list nodes, maps carrying a "_type" key become leaves, and all
// other maps become named map nodes whose entry order is preserved from
// the wire. Every node records its path from the root, so a node handed
// to the caller can be used directly to address get/set requests even
// after the surrounding tree is discarded.
package structure
