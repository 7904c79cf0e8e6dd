// Package simdevice implements a fake engine-management device for
// development and testing. It speaks the device side of the wire
// protocol over any io.ReadWriter: it emits a description once and then
// periodic telemetry feeds, and answers structure/get/set requests against
// an in-memory configuration tree.
package simdevice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/via/viaems-protocol/pkg/wire"
)

// Leaf is one configurable value on the simulated device.
type Leaf struct {
	Type        string
	Description string
	Choices     []string
	Value       any
}

// Config configures the simulated device.
type Config struct {
	// FeedInterval is the telemetry period (default 20ms).
	FeedInterval time.Duration

	// Tree is the device's configuration tree: nested map[string]any /
	// []any with *Leaf terminals. Nil uses DefaultTree.
	Tree any
}

// Device is one simulated device session.
type Device struct {
	rw     io.ReadWriter
	config Config

	mu   sync.Mutex // guards tree values and writes to rw
	tree any

	feedCount uint32
}

// New creates a device speaking over rw.
func New(rw io.ReadWriter, config Config) *Device {
	if config.FeedInterval <= 0 {
		config.FeedInterval = 20 * time.Millisecond
	}
	tree := config.Tree
	if tree == nil {
		tree = DefaultTree()
	}
	return &Device{rw: rw, config: config, tree: tree}
}

// DefaultTree returns a small engine configuration tree.
func DefaultTree() any {
	return map[string]any{
		"sensors": []any{
			&Leaf{Type: "sensor", Description: "MAP", Value: map[string]any{"pin": uint32(3)}},
			&Leaf{Type: "sensor", Description: "CLT", Value: map[string]any{"pin": uint32(4)}},
		},
		"fueling": map[string]any{
			"injector_size": &Leaf{Type: "float", Description: "Injector size (cc/min)", Value: float32(550)},
			"algorithm": &Leaf{
				Type:    "string",
				Choices: []string{"alpha-n", "speed-density"},
				Value:   "speed-density",
			},
		},
		"ignition": map[string]any{
			"rev_limit": &Leaf{Type: "uint32", Description: "Rev limiter (rpm)", Value: uint32(8000)},
			"enabled":   &Leaf{Type: "bool", Value: true},
		},
		"outputs": []any{
			&Leaf{Type: "output", Value: map[string]any{"pin": uint32(1)}},
		},
	}
}

// Run serves the device until a read from the stream fails or reaches
// EOF. Cancelling ctx stops the feed loop and makes the read error that
// follows a clean nil return; it does not interrupt a read in progress.
func (d *Device) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go d.feedLoop(ctx)

	dec := wire.NewDecoder(d.rw)
	for {
		var raw cbor.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("simdevice read failed: %w", err)
		}

		req, err := wire.DecodeRequest(raw)
		if err != nil {
			// Not a request; the host end only ever sends requests, so
			// anything else is noise to skip.
			continue
		}
		if err := d.handleRequest(req); err != nil {
			return err
		}
	}
}

// feedLoop emits the description followed by periodic feed samples.
func (d *Device) feedLoop(ctx context.Context) {
	keys := []string{"rpm", "map", "ego"}
	desc, err := wire.EncodeDescription(keys)
	if err != nil {
		return
	}
	if err := d.send(desc); err != nil {
		return
	}

	ticker := time.NewTicker(d.config.FeedInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.feedCount++
			rpm := 800 + (d.feedCount*50)%7000
			manifold := float32(0.3) + float32(d.feedCount%40)/100
			ego := float32(0.95) + float32(d.feedCount%10)/200

			sample, err := wire.EncodeFeed([]any{rpm, manifold, ego})
			if err != nil {
				return
			}
			if err := d.send(sample); err != nil {
				return
			}
		}
	}
}

func (d *Device) handleRequest(req *wire.Request) error {
	switch req.Method {
	case wire.MethodStructure:
		return d.respond(req.ID, schemaDoc(d.tree))

	case wire.MethodGet:
		d.mu.Lock()
		leaf, ok := d.resolve(req.Path)
		var value any
		if ok {
			value = leaf.Value
		}
		d.mu.Unlock()
		if !ok {
			// Unknown path: no response, the host times out. Matches a
			// firmware that ignores requests it cannot serve.
			return nil
		}
		return d.respond(req.ID, value)

	case wire.MethodSet:
		d.mu.Lock()
		leaf, ok := d.resolve(req.Path)
		if ok {
			leaf.Value = req.Value
		}
		var value any
		if ok {
			value = leaf.Value
		}
		d.mu.Unlock()
		if !ok {
			return nil
		}
		return d.respond(req.ID, value)

	default:
		return nil
	}
}

// resolve walks the tree along a wire path. Callers hold d.mu.
func (d *Device) resolve(path []any) (*Leaf, bool) {
	node := d.tree
	for _, elem := range path {
		switch key := elem.(type) {
		case string:
			m, ok := node.(map[string]any)
			if !ok {
				return nil, false
			}
			node, ok = m[key]
			if !ok {
				return nil, false
			}
		case uint64:
			list, ok := node.([]any)
			if !ok || key >= uint64(len(list)) {
				return nil, false
			}
			node = list[key]
		case int64:
			list, ok := node.([]any)
			if !ok || key < 0 || key >= int64(len(list)) {
				return nil, false
			}
			node = list[key]
		default:
			return nil, false
		}
	}

	leaf, ok := node.(*Leaf)
	return leaf, ok
}

// schemaDoc converts the tree into the wire schema document.
func schemaDoc(node any) any {
	switch n := node.(type) {
	case *Leaf:
		doc := map[string]any{"_type": n.Type}
		if n.Description != "" {
			doc["description"] = n.Description
		}
		if n.Choices != nil {
			doc["choices"] = n.Choices
		}
		return doc
	case map[string]any:
		doc := make(map[string]any, len(n))
		for name, child := range n {
			doc[name] = schemaDoc(child)
		}
		return doc
	case []any:
		doc := make([]any, len(n))
		for i, child := range n {
			doc[i] = schemaDoc(child)
		}
		return doc
	default:
		return nil
	}
}

func (d *Device) respond(id uint32, payload any) error {
	raw, err := wire.Marshal(payload)
	if err != nil {
		return fmt.Errorf("simdevice failed to encode payload: %w", err)
	}
	data, err := wire.EncodeResponse(&wire.Response{
		Type:     wire.TypeResponse,
		ID:       id,
		Response: raw,
	})
	if err != nil {
		return fmt.Errorf("simdevice failed to encode response: %w", err)
	}
	return d.send(data)
}

func (d *Device) send(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.rw.Write(data)
	return err
}
