package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for viaems messages.
// Configured for deterministic encoding.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for viaems messages.
var decMode cbor.DecMode

func init() {
	var err error

	// Configure encoder for deterministic output. ShortestFloat is left
	// disabled so float32 values stay single-precision on the wire, which
	// is the only float encoding the device accepts.
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Configure decoder to be lenient for forward compatibility
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet, // Ignore duplicate keys (last wins)
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Codec errors.
var (
	// ErrIncompleteMessage indicates the buffer ends before the message does.
	ErrIncompleteMessage = errors.New("incomplete CBOR message")

	// ErrNotMap indicates a value that is required to be a CBOR map is not one.
	ErrNotMap = errors.New("value is not a CBOR map")

	// ErrIndefiniteMap indicates an indefinite-length map where a
	// definite-length map is required.
	ErrIndefiniteMap = errors.New("indefinite-length map not supported")
)

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// DecodeOne extracts the first complete CBOR item from data without
// interpreting it. It returns the raw item and the number of bytes it
// occupies. A buffer that ends mid-item returns ErrIncompleteMessage and
// consumed = 0, so the caller can retry once more bytes arrive.
func DecodeOne(data []byte) (raw cbor.RawMessage, consumed int, err error) {
	if len(data) == 0 {
		return nil, 0, ErrIncompleteMessage
	}

	dec := decMode.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, ErrIncompleteMessage
		}
		return nil, 0, fmt.Errorf("failed to decode message: %w", err)
	}
	return raw, dec.NumBytesRead(), nil
}

// DecodeMapEntries splits a CBOR map into its raw key/value pairs,
// preserving wire order. Go maps do not preserve insertion order, so any
// consumer that cares about entry order (the schema tree builder does)
// must go through this instead of unmarshalling into a map.
//
// Only definite-length maps are accepted.
func DecodeMapEntries(data []byte) (keys, values []cbor.RawMessage, err error) {
	n, offset, err := readMapHeader(data)
	if err != nil {
		return nil, nil, err
	}

	keys = make([]cbor.RawMessage, 0, n)
	values = make([]cbor.RawMessage, 0, n)

	dec := decMode.NewDecoder(bytes.NewReader(data[offset:]))
	for i := uint64(0); i < n; i++ {
		var k, v cbor.RawMessage
		if err := dec.Decode(&k); err != nil {
			return nil, nil, fmt.Errorf("failed to decode map key %d: %w", i, err)
		}
		if err := dec.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("failed to decode map value %d: %w", i, err)
		}
		keys = append(keys, k)
		values = append(values, v)
	}
	return keys, values, nil
}

// readMapHeader parses the initial byte(s) of a CBOR map and returns the
// entry count and the offset of the first key.
func readMapHeader(data []byte) (n uint64, offset int, err error) {
	if len(data) == 0 {
		return 0, 0, ErrIncompleteMessage
	}

	const majorMap = 5
	if data[0]>>5 != majorMap {
		return 0, 0, ErrNotMap
	}

	switch ai := data[0] & 0x1f; {
	case ai < 24:
		return uint64(ai), 1, nil
	case ai == 24:
		if len(data) < 2 {
			return 0, 0, ErrIncompleteMessage
		}
		return uint64(data[1]), 2, nil
	case ai == 25:
		if len(data) < 3 {
			return 0, 0, ErrIncompleteMessage
		}
		return uint64(binary.BigEndian.Uint16(data[1:3])), 3, nil
	case ai == 26:
		if len(data) < 5 {
			return 0, 0, ErrIncompleteMessage
		}
		return uint64(binary.BigEndian.Uint32(data[1:5])), 5, nil
	case ai == 27:
		if len(data) < 9 {
			return 0, 0, ErrIncompleteMessage
		}
		return binary.BigEndian.Uint64(data[1:9]), 9, nil
	case ai == 31:
		return 0, 0, ErrIndefiniteMap
	default:
		return 0, 0, fmt.Errorf("malformed map header byte 0x%02x", data[0])
	}
}

// IsMap reports whether the raw item is a CBOR map.
func IsMap(data []byte) bool {
	return len(data) > 0 && data[0]>>5 == 5
}

// IsArray reports whether the raw item is a CBOR array.
func IsArray(data []byte) bool {
	return len(data) > 0 && data[0]>>5 == 4
}

// IsUnsignedInt reports whether the raw item is a CBOR unsigned integer.
func IsUnsignedInt(data []byte) bool {
	return len(data) > 0 && data[0]>>5 == 0
}

// IsFloat32 reports whether the raw item is a single-precision float.
func IsFloat32(data []byte) bool {
	return len(data) > 0 && data[0] == 0xfa
}

// IsTextString reports whether the raw item is a CBOR text string.
func IsTextString(data []byte) bool {
	return len(data) > 0 && data[0]>>5 == 3
}

// Equal compares two values by their CBOR encoding.
func Equal(a, b any) bool {
	dataA, errA := Marshal(a)
	dataB, errB := Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(dataA, dataB)
}
