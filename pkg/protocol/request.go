package protocol

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/via/viaems-protocol/pkg/log"
	"github.com/via/viaems-protocol/pkg/structure"
	"github.com/via/viaems-protocol/pkg/wire"
)

// requestKind discriminates the pending request variants.
type requestKind uint8

const (
	kindStructure requestKind = iota
	kindGet
	kindSet
)

// StructureCallback receives the result of a structure request. On
// failure root is nil. Runs on the Ingest goroutine, or on the goroutine
// calling Close when Close fails the pending request.
type StructureCallback func(root *structure.Node, err error)

// ValueCallback receives the result of a get or set request. Runs on
// the Ingest goroutine, or on the goroutine calling Close when Close
// fails the pending request.
type ValueCallback func(value structure.Value, err error)

// pendingRequest is the single in-flight request slot.
type pendingRequest struct {
	active bool
	id     uint32
	kind   requestKind
	node   *structure.Node

	structureCB StructureCallback
	valueCB     ValueCallback
}

// fail completes the request's callback with an error.
func (r pendingRequest) fail(err error) {
	switch r.kind {
	case kindStructure:
		if r.structureCB != nil {
			r.structureCB(nil, err)
		}
	default:
		if r.valueCB != nil {
			r.valueCB(structure.Value{}, err)
		}
	}
}

// requestID assigns correlation ids. It is process-wide so ids stay
// unique across instances; the device treats them as opaque tokens.
var requestID atomic.Uint32

func nextRequestID() uint32 {
	return requestID.Add(1)
}

// reserve installs a request in the slot, assigning its id. It fails
// with ErrRequestPending while another request is in flight.
func (p *Protocol) reserve(req pendingRequest) (uint32, Sender, error) {
	p.mu.RLock()
	sender := p.sender
	closed := p.closed
	p.mu.RUnlock()

	if closed {
		return 0, nil, ErrProtocolClosed
	}
	if sender == nil {
		return 0, nil, ErrNoSender
	}

	p.reqMu.Lock()
	defer p.reqMu.Unlock()
	if p.req.active {
		return 0, nil, ErrRequestPending
	}
	req.active = true
	req.id = nextRequestID()
	p.req = req
	return req.id, sender, nil
}

// clearIf clears the slot when it still holds request id. Returns true
// when it did.
func (p *Protocol) clearIf(id uint32) bool {
	p.reqMu.Lock()
	defer p.reqMu.Unlock()
	if p.req.active && p.req.id == id {
		p.req = pendingRequest{}
		return true
	}
	return false
}

// GetStructureAsync requests the device's configuration schema and
// returns immediately. The callback runs on the Ingest goroutine when
// the response arrives, or not at all if none does: the caller owns
// timeout handling (the blocking form does this).
func (p *Protocol) GetStructureAsync(cb StructureCallback) (uint32, error) {
	id, sender, err := p.reserve(pendingRequest{kind: kindStructure, structureCB: cb})
	if err != nil {
		return 0, err
	}

	data, err := wire.EncodeRequest(&wire.Request{
		Type:   wire.TypeRequest,
		Method: wire.MethodStructure,
		ID:     id,
	})
	if err != nil {
		p.clearIf(id)
		return 0, err
	}

	p.logMessage(log.DirectionOut, wire.TypeRequest, wire.MethodStructure.String(), id)
	if err := sender.Send(data); err != nil {
		p.clearIf(id)
		return 0, err
	}
	return id, nil
}

// GetAsync requests the value of a schema leaf and returns immediately.
func (p *Protocol) GetAsync(node *structure.Node, cb ValueCallback) (uint32, error) {
	if node == nil || !node.IsLeaf() {
		return 0, ErrNotLeaf
	}

	id, sender, err := p.reserve(pendingRequest{kind: kindGet, node: node, valueCB: cb})
	if err != nil {
		return 0, err
	}

	data, err := wire.EncodeRequest(&wire.Request{
		Type:   wire.TypeRequest,
		Method: wire.MethodGet,
		ID:     id,
		Path:   node.Path.Wire(),
	})
	if err != nil {
		p.clearIf(id)
		return 0, err
	}

	p.logMessage(log.DirectionOut, wire.TypeRequest, wire.MethodGet.String(), id)
	if err := sender.Send(data); err != nil {
		p.clearIf(id)
		return 0, err
	}
	return id, nil
}

// SetAsync writes the value of a schema leaf and returns immediately.
// The response carries the resulting value, decoded like a get.
func (p *Protocol) SetAsync(node *structure.Node, value structure.Value, cb ValueCallback) (uint32, error) {
	if node == nil || !node.IsLeaf() {
		return 0, ErrNotLeaf
	}

	wireValue, err := value.Wire()
	if err != nil {
		return 0, err
	}

	id, sender, err := p.reserve(pendingRequest{kind: kindSet, node: node, valueCB: cb})
	if err != nil {
		return 0, err
	}

	data, err := wire.EncodeRequest(&wire.Request{
		Type:   wire.TypeRequest,
		Method: wire.MethodSet,
		ID:     id,
		Path:   node.Path.Wire(),
		Value:  wireValue,
	})
	if err != nil {
		p.clearIf(id)
		return 0, err
	}

	p.logMessage(log.DirectionOut, wire.TypeRequest, wire.MethodSet.String(), id)
	if err := sender.Send(data); err != nil {
		p.clearIf(id)
		return 0, err
	}
	return id, nil
}

// handleResponse correlates an inbound response against the pending
// slot. Responses with a stale or unknown id are dropped.
func (p *Protocol) handleResponse(raw []byte) error {
	resp, err := wire.DecodeResponse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	p.reqMu.Lock()
	if !p.req.active || p.req.id != resp.ID {
		p.reqMu.Unlock()
		return nil
	}
	if resp.Response == nil {
		// No payload; leave the request pending so a blocking caller
		// times out rather than seeing a phantom result.
		p.reqMu.Unlock()
		return fmt.Errorf("%w: response %d has no payload", ErrMalformedMessage, resp.ID)
	}
	req := p.req
	p.req = pendingRequest{}
	p.reqMu.Unlock()

	p.logMessage(log.DirectionIn, wire.TypeResponse, "", resp.ID)

	switch req.kind {
	case kindStructure:
		root, err := structure.Build(resp.Response)
		if req.structureCB != nil {
			req.structureCB(root, err)
		}
	case kindGet, kindSet:
		value, err := structure.DecodeValue(req.node.ValueKind, resp.Response)
		if req.valueCB != nil {
			req.valueCB(value, err)
		}
	}
	return nil
}

type structureResult struct {
	root *structure.Node
	err  error
}

type valueResult struct {
	value structure.Value
	err   error
}

// GetStructure requests the schema and blocks until the tree arrives,
// the request times out, or ctx is cancelled. Blocking calls are
// serialized against each other.
func (p *Protocol) GetStructure(ctx context.Context) (*structure.Node, error) {
	p.clientMu.Lock()
	defer p.clientMu.Unlock()

	ch := make(chan structureResult, 1)
	id, err := p.GetStructureAsync(func(root *structure.Node, err error) {
		ch <- structureResult{root: root, err: err}
	})
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(p.requestTimeout())
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.root, res.err
	case <-timer.C:
		p.clearIf(id)
		// The response may have squeaked in before the slot cleared.
		select {
		case res := <-ch:
			return res.root, res.err
		default:
			return nil, ErrRequestTimeout
		}
	case <-ctx.Done():
		p.clearIf(id)
		select {
		case res := <-ch:
			return res.root, res.err
		default:
			return nil, ctx.Err()
		}
	}
}

// Get reads a schema leaf's value, blocking like GetStructure.
func (p *Protocol) Get(ctx context.Context, node *structure.Node) (structure.Value, error) {
	p.clientMu.Lock()
	defer p.clientMu.Unlock()

	ch := make(chan valueResult, 1)
	id, err := p.GetAsync(node, func(value structure.Value, err error) {
		ch <- valueResult{value: value, err: err}
	})
	if err != nil {
		return structure.Value{}, err
	}
	return p.awaitValue(ctx, id, ch)
}

// Set writes a schema leaf's value, blocking like GetStructure. The
// returned value is the device's resulting value, which may differ from
// the requested one.
func (p *Protocol) Set(ctx context.Context, node *structure.Node, value structure.Value) (structure.Value, error) {
	p.clientMu.Lock()
	defer p.clientMu.Unlock()

	ch := make(chan valueResult, 1)
	id, err := p.SetAsync(node, value, func(value structure.Value, err error) {
		ch <- valueResult{value: value, err: err}
	})
	if err != nil {
		return structure.Value{}, err
	}
	return p.awaitValue(ctx, id, ch)
}

func (p *Protocol) awaitValue(ctx context.Context, id uint32, ch <-chan valueResult) (structure.Value, error) {
	timer := time.NewTimer(p.requestTimeout())
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.value, res.err
	case <-timer.C:
		p.clearIf(id)
		select {
		case res := <-ch:
			return res.value, res.err
		default:
			return structure.Value{}, ErrRequestTimeout
		}
	case <-ctx.Done():
		p.clearIf(id)
		select {
		case res := <-ch:
			return res.value, res.err
		default:
			return structure.Value{}, ctx.Err()
		}
	}
}

func (p *Protocol) requestTimeout() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.timeout
}
