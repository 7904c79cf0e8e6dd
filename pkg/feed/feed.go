package feed

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"

	"github.com/via/viaems-protocol/pkg/wire"
)

// MaxKeys is the maximum number of telemetry fields a description may
// declare. Descriptions exceeding it are rejected whole.
const MaxKeys = 64

// Errors.
var (
	// ErrTooManyKeys indicates a description with more than MaxKeys entries.
	ErrTooManyKeys = errors.New("description exceeds maximum key count")

	// ErrBadValue indicates a feed value that is neither an unsigned
	// integer nor a single-precision float.
	ErrBadValue = errors.New("feed value is not a uint or float32")
)

// FieldKind is the scalar kind of a telemetry field.
type FieldKind uint8

const (
	// FieldUnknown means no feed has delivered a value for the key yet.
	FieldUnknown FieldKind = iota

	// FieldUint32 is an unsigned 32-bit integer field.
	FieldUint32

	// FieldFloat is an IEEE-754 single-precision float field.
	FieldFloat
)

// String returns the field kind name.
func (k FieldKind) String() string {
	switch k {
	case FieldUint32:
		return "uint32"
	case FieldFloat:
		return "float"
	default:
		return "unknown"
	}
}

// FieldKey is one telemetry column: a name and its learned kind.
type FieldKey struct {
	Name string
	Kind FieldKind
}

// FieldValue is a tagged scalar matching its field's kind.
type FieldValue struct {
	Kind   FieldKind
	Uint32 uint32
	Float  float32
}

// Uint32Field returns a uint32-kinded field value.
func Uint32Field(v uint32) FieldValue {
	return FieldValue{Kind: FieldUint32, Uint32: v}
}

// FloatField returns a float-kinded field value.
func FloatField(v float32) FieldValue {
	return FieldValue{Kind: FieldFloat, Float: v}
}

// Float64 returns the value widened to float64, regardless of kind.
func (v FieldValue) Float64() float64 {
	if v.Kind == FieldFloat {
		return float64(v.Float)
	}
	return float64(v.Uint32)
}

// String renders the value for display.
func (v FieldValue) String() string {
	switch v.Kind {
	case FieldUint32:
		return strconv.FormatUint(uint64(v.Uint32), 10)
	case FieldFloat:
		return strconv.FormatFloat(float64(v.Float), 'g', -1, 32)
	default:
		return "?"
	}
}

// ParseValue decodes one raw feed scalar. Only CBOR unsigned integers
// (narrowed to uint32) and single-precision floats are accepted.
func ParseValue(raw cbor.RawMessage) (FieldValue, error) {
	switch {
	case wire.IsUnsignedInt(raw):
		var v uint64
		if err := wire.Unmarshal(raw, &v); err != nil {
			return FieldValue{}, fmt.Errorf("%w: %w", ErrBadValue, err)
		}
		return Uint32Field(uint32(v)), nil

	case wire.IsFloat32(raw):
		var v float32
		if err := wire.Unmarshal(raw, &v); err != nil {
			return FieldValue{}, fmt.Errorf("%w: %w", ErrBadValue, err)
		}
		return FloatField(v), nil

	default:
		return FieldValue{}, ErrBadValue
	}
}

// KeySet holds the ordered field keys declared by the most recent
// description. It is not safe for concurrent use; the protocol engine
// confines it to the reader goroutine.
type KeySet struct {
	keys []FieldKey
}

// Len returns the current number of keys.
func (s *KeySet) Len() int {
	return len(s.keys)
}

// At returns the i'th key.
func (s *KeySet) At(i int) FieldKey {
	return s.keys[i]
}

// Keys returns a snapshot of the current keys.
func (s *KeySet) Keys() []FieldKey {
	out := make([]FieldKey, len(s.keys))
	copy(out, s.keys)
	return out
}

// Apply reconciles the key set with a new description. Per index, a key
// whose name is unchanged is retained along with its learned kind; a
// renamed key is replaced by a fresh key of unknown kind. A shorter
// description truncates the tail. A description with more than MaxKeys
// entries is rejected without touching existing state.
func (s *KeySet) Apply(names []string) error {
	if len(names) > MaxKeys {
		return ErrTooManyKeys
	}

	for i, name := range names {
		if i < len(s.keys) {
			if s.keys[i].Name != name {
				s.keys[i] = FieldKey{Name: name}
			}
			continue
		}
		s.keys = append(s.keys, FieldKey{Name: name})
	}
	s.keys = s.keys[:len(names)]
	return nil
}

// LearnKind records the kind observed for the i'th key.
func (s *KeySet) LearnKind(i int, kind FieldKind) {
	if i >= 0 && i < len(s.keys) {
		s.keys[i].Kind = kind
	}
}
