package protocol

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/via/viaems-protocol/pkg/feed"
	"github.com/via/viaems-protocol/pkg/log"
	"github.com/via/viaems-protocol/pkg/wire"
)

// Protocol errors.
var (
	// ErrIncomplete indicates Ingest was given a buffer that ends
	// mid-message; retry with more data.
	ErrIncomplete = wire.ErrIncompleteMessage

	// ErrUnknownMessage indicates a message whose type is missing,
	// non-string, or unrecognized. The message is consumed.
	ErrUnknownMessage = errors.New("unknown message type")

	// ErrMalformedMessage indicates a message that decoded as CBOR but
	// does not have the required shape. The message is consumed.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrRequestPending indicates a submission while another request
	// occupies the slot.
	ErrRequestPending = errors.New("request already pending")

	// ErrRequestTimeout indicates a blocking call that saw no response
	// within the request timeout.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrProtocolClosed indicates use of a closed instance.
	ErrProtocolClosed = errors.New("protocol is closed")

	// ErrNoSender indicates a request was submitted before a sender was
	// injected.
	ErrNoSender = errors.New("no sender configured")

	// ErrNotLeaf indicates a get/set against a non-leaf schema node.
	ErrNotLeaf = errors.New("node is not a leaf")
)

// DefaultRequestTimeout bounds blocking request calls.
const DefaultRequestTimeout = 1000 * time.Millisecond

// Sender consumes encoded outbound messages. The protocol never
// retains the buffer beyond the call.
type Sender interface {
	Send(data []byte) error
}

// FeedHandler receives each accepted telemetry sample. keys and values
// are parallel and equal in length; both are snapshots the handler may
// retain. Handlers run on the goroutine that calls Ingest.
type FeedHandler func(keys []feed.FieldKey, values []feed.FieldValue)

// Protocol is one device session's protocol engine.
type Protocol struct {
	mu          sync.RWMutex
	sender      Sender
	feedHandler FeedHandler
	logger      log.Logger
	connID      string
	timeout     time.Duration
	closed      bool

	// keys is only touched from the Ingest goroutine.
	keys feed.KeySet

	// Request slot, see request.go.
	reqMu    sync.Mutex
	req      pendingRequest
	clientMu sync.Mutex
}

// New creates a protocol instance. A Sender must be injected with
// SetSender before requests can be issued.
func New() *Protocol {
	return &Protocol{
		timeout: DefaultRequestTimeout,
	}
}

// SetSender injects the write sink. Set once, before the transport
// starts delivering bytes.
func (p *Protocol) SetSender(s Sender) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sender = s
}

// SetFeedHandler sets the callback invoked for each accepted feed.
func (p *Protocol) SetFeedHandler(h FeedHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feedHandler = h
}

// SetLogger configures protocol event logging. Pass nil to disable.
func (p *Protocol) SetLogger(logger log.Logger, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger = logger
	p.connID = connID
}

// SetRequestTimeout adjusts the blocking request timeout.
func (p *Protocol) SetRequestTimeout(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = d
}

// Close fails any pending request and rejects further use. It must not
// be called concurrently with Ingest.
func (p *Protocol) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.reqMu.Lock()
	req := p.req
	p.req = pendingRequest{}
	p.reqMu.Unlock()

	if req.active {
		req.fail(ErrProtocolClosed)
	}
}

// Ingest parses exactly one CBOR message from data, dispatches it, and
// returns the number of bytes consumed. Callers invoke it repeatedly
// until the buffer is empty or it reports ErrIncomplete.
//
// Errors from a message that decoded as CBOR consume it (the cursor
// advances past it) and leave the instance usable; a dropped message is
// never fatal. A buffer that cannot be decoded as CBOR at all, or a call
// on a closed instance, reports its error with 0 bytes consumed.
func (p *Protocol) Ingest(data []byte) (int, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return 0, ErrProtocolClosed
	}

	raw, consumed, err := wire.DecodeOne(data)
	if err != nil {
		return 0, err
	}

	msgType, err := wire.MessageTypeOf(raw)
	if err != nil || msgType == wire.MessageTypeUnknown {
		p.logError("dispatch", ErrUnknownMessage)
		return consumed, ErrUnknownMessage
	}

	switch msgType {
	case wire.MessageTypeFeed:
		err = p.handleFeed(raw)
	case wire.MessageTypeDescription:
		err = p.handleDescription(raw)
	case wire.MessageTypeResponse:
		err = p.handleResponse(raw)
	default:
		err = ErrUnknownMessage
	}

	if err != nil {
		p.logError("handle "+msgType.String(), err)
	}
	return consumed, err
}

// Keys returns a snapshot of the current field keys. Kinds are learned
// lazily: a key described but not yet observed in a feed reports
// FieldUnknown (a quirk of the device protocol, preserved here).
//
// Keys must only be called from the Ingest goroutine or while no
// ingestion is running.
func (p *Protocol) Keys() []feed.FieldKey {
	return p.keys.Keys()
}

// handleDescription reconciles the field-key set with a description
// message.
func (p *Protocol) handleDescription(raw []byte) error {
	desc, err := wire.DecodeDescription(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if desc.Keys == nil {
		return fmt.Errorf("%w: description has no keys", ErrMalformedMessage)
	}
	if err := p.keys.Apply(desc.Keys); err != nil {
		return err
	}

	p.logMessage(log.DirectionIn, wire.TypeDescription, "", 0)
	return nil
}

// handleFeed decodes one telemetry sample and delivers it. A sample
// whose width does not match the current description, or that carries a
// non-scalar value, is dropped without side effects: kinds are only
// committed once the whole sample has been accepted.
func (p *Protocol) handleFeed(raw []byte) error {
	msg, err := wire.DecodeFeed(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	if msg.Values == nil {
		return fmt.Errorf("%w: feed has no values", ErrMalformedMessage)
	}

	values := make([]feed.FieldValue, len(msg.Values))
	for i, rawValue := range msg.Values {
		v, err := feed.ParseValue(rawValue)
		if err != nil {
			// Dropped silently, matching the device firmware's tolerance
			// for mixed traffic on the stream.
			return nil
		}
		values[i] = v
	}

	if len(values) != p.keys.Len() {
		return nil
	}

	for i, v := range values {
		p.keys.LearnKind(i, v.Kind)
	}

	p.mu.RLock()
	handler := p.feedHandler
	p.mu.RUnlock()

	p.logMessage(log.DirectionIn, wire.TypeFeed, "", 0)
	if handler != nil {
		handler(p.keys.Keys(), values)
	}
	return nil
}

func (p *Protocol) logMessage(dir log.Direction, msgType, method string, id uint32) {
	p.mu.RLock()
	logger := p.logger
	connID := p.connID
	p.mu.RUnlock()
	if logger == nil {
		return
	}

	logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerProtocol,
		Category:     log.CategoryMessage,
		Message:      &log.MessageEvent{Type: msgType, Method: method, ID: id},
	})
}

func (p *Protocol) logError(context string, err error) {
	p.mu.RLock()
	logger := p.logger
	connID := p.connID
	p.mu.RUnlock()
	if logger == nil {
		return
	}

	logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerProtocol,
		Category:     log.CategoryError,
		Error:        &log.ErrorEvent{Message: err.Error(), Context: context},
	})
}
