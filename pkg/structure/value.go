package structure

import (
	"fmt"
	"strconv"

	"github.com/fxamacker/cbor/v2"

	"github.com/via/viaems-protocol/pkg/wire"
)

// ValueKind enumerates the declared types of schema leaves.
type ValueKind uint8

const (
	ValueInvalid ValueKind = iota
	ValueUint32
	ValueFloat
	ValueBool
	ValueString
	ValueSensor
	ValueTable
	ValueOutput
)

// String returns the kind name as it appears in "_type" on the wire.
func (k ValueKind) String() string {
	switch k {
	case ValueUint32:
		return "uint32"
	case ValueFloat:
		return "float"
	case ValueBool:
		return "bool"
	case ValueString:
		return "string"
	case ValueSensor:
		return "sensor"
	case ValueTable:
		return "table"
	case ValueOutput:
		return "output"
	default:
		return "invalid"
	}
}

// ValueKindFromString maps a "_type" string to its kind. Unknown
// strings yield ValueInvalid.
func ValueKindFromString(s string) ValueKind {
	switch s {
	case "uint32":
		return ValueUint32
	case "float":
		return ValueFloat
	case "bool":
		return ValueBool
	case "string":
		return ValueString
	case "sensor":
		return ValueSensor
	case "table":
		return ValueTable
	case "output":
		return ValueOutput
	default:
		return ValueInvalid
	}
}

// Value is a tagged scalar or sub-object carried by a get/set exchange.
// Exactly the field selected by Kind is meaningful; sub-object kinds
// (sensor, table, output) keep their decoded payload in Raw.
type Value struct {
	Kind   ValueKind
	Uint32 uint32
	Float  float32
	Bool   bool
	Str    string
	Raw    any
}

// Uint32Value returns a uint32-kinded value.
func Uint32Value(v uint32) Value {
	return Value{Kind: ValueUint32, Uint32: v}
}

// FloatValue returns a float-kinded value.
func FloatValue(v float32) Value {
	return Value{Kind: ValueFloat, Float: v}
}

// BoolValue returns a bool-kinded value.
func BoolValue(v bool) Value {
	return Value{Kind: ValueBool, Bool: v}
}

// StringValue returns a string-kinded value.
func StringValue(v string) Value {
	return Value{Kind: ValueString, Str: v}
}

// String renders the value for display.
func (v Value) String() string {
	switch v.Kind {
	case ValueUint32:
		return strconv.FormatUint(uint64(v.Uint32), 10)
	case ValueFloat:
		return strconv.FormatFloat(float64(v.Float), 'g', -1, 32)
	case ValueBool:
		return strconv.FormatBool(v.Bool)
	case ValueString:
		return strconv.Quote(v.Str)
	case ValueSensor, ValueTable, ValueOutput:
		return fmt.Sprintf("<%s>", v.Kind)
	default:
		return "<invalid>"
	}
}

// Wire returns the value in the form expected by a set request.
func (v Value) Wire() (any, error) {
	switch v.Kind {
	case ValueUint32:
		return v.Uint32, nil
	case ValueFloat:
		return v.Float, nil
	case ValueBool:
		return v.Bool, nil
	case ValueString:
		return v.Str, nil
	case ValueSensor, ValueTable, ValueOutput:
		return v.Raw, nil
	default:
		return nil, fmt.Errorf("cannot encode %s value", v.Kind)
	}
}

// DecodeValue decodes a raw response payload according to the declared
// kind of the target leaf.
func DecodeValue(kind ValueKind, raw cbor.RawMessage) (Value, error) {
	switch kind {
	case ValueUint32:
		var v uint64
		if err := wire.Unmarshal(raw, &v); err != nil {
			return Value{}, fmt.Errorf("failed to decode uint32 value: %w", err)
		}
		return Uint32Value(uint32(v)), nil

	case ValueFloat:
		var v float32
		if err := wire.Unmarshal(raw, &v); err != nil {
			return Value{}, fmt.Errorf("failed to decode float value: %w", err)
		}
		return FloatValue(v), nil

	case ValueBool:
		var v bool
		if err := wire.Unmarshal(raw, &v); err != nil {
			return Value{}, fmt.Errorf("failed to decode bool value: %w", err)
		}
		return BoolValue(v), nil

	case ValueString:
		var v string
		if err := wire.Unmarshal(raw, &v); err != nil {
			return Value{}, fmt.Errorf("failed to decode string value: %w", err)
		}
		return StringValue(v), nil

	case ValueSensor, ValueTable, ValueOutput:
		var v any
		if err := wire.Unmarshal(raw, &v); err != nil {
			return Value{}, fmt.Errorf("failed to decode %s value: %w", kind, err)
		}
		return Value{Kind: kind, Raw: v}, nil

	default:
		return Value{}, fmt.Errorf("cannot decode value of kind %s", kind)
	}
}
