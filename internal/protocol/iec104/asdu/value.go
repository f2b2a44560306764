package asdu

import (
	"encoding/json"
	"fmt"
)

// ValueKind tags which field of Value is meaningful.
type ValueKind uint8

const (
	ValueNone ValueKind = iota
	ValueBool
	ValueDoublePoint
	ValueInt
	ValueFloat
	ValueBits
)

// Value is the decoded process value of one information object.
type Value struct {
	Kind  ValueKind
	Bool  bool
	Int   int64
	Float float64
	Bits  uint32
}

func BoolValue(v bool) Value         { return Value{Kind: ValueBool, Bool: v} }
func DoublePointValue(v uint8) Value { return Value{Kind: ValueDoublePoint, Int: int64(v & 0x03)} }
func IntValue(v int64) Value         { return Value{Kind: ValueInt, Int: v} }
func FloatValue(v float64) Value     { return Value{Kind: ValueFloat, Float: v} }
func BitsValue(v uint32) Value       { return Value{Kind: ValueBits, Bits: v} }

// Any returns the Go value for JSON and logging.
func (v Value) Any() any {
	switch v.Kind {
	case ValueBool:
		return v.Bool
	case ValueDoublePoint, ValueInt:
		return v.Int
	case ValueFloat:
		return v.Float
	case ValueBits:
		return v.Bits
	default:
		return nil
	}
}

func (v Value) String() string {
	return fmt.Sprint(v.Any())
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}
