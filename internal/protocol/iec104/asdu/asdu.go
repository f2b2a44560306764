package asdu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	HeaderLen     = 6
	IOALen        = 3
	MaxIOA        = 0xFFFFFF
	MaxNumObjects = 0x7F

	vsqSequence = 0x80
	cotNegative = 0x40
	cotTest     = 0x80
	causeMask   = 0x3F
)

var (
	ErrShortHeader       = errors.New("asdu: short header")
	ErrUnsupportedType   = errors.New("asdu: unsupported type id")
	ErrTooManyObjects    = errors.New("asdu: too many information objects")
	ErrIOAOutOfRange     = errors.New("asdu: information object address out of range")
	ErrValueKindMismatch = errors.New("asdu: value kind does not match type id")
)

// InformationObject is one addressed data point.
type InformationObject struct {
	IOA       uint32
	Value     Value
	Quality   Quality
	Timestamp *Timestamp
}

// ASDU is a decoded application data unit. Truncated is set when the buffer
// ended before NumObjects objects were read; Unknown when TypeID has no
// decoder and the body was skipped.
type ASDU struct {
	TypeID     TypeID
	Sequence   bool
	NumObjects int
	Cause      Cause
	Negative   bool
	Test       bool
	Originator uint8
	CommonAddr uint16
	Objects    []InformationObject
	Truncated  bool
	Unknown    bool
}

func (a ASDU) String() string {
	return fmt.Sprintf("%s cot=%s ca=%d n=%d objs=%d", a.TypeID, a.Cause, a.CommonAddr, a.NumObjects, len(a.Objects))
}

// DecodeHeader reads the six fixed header bytes.
func DecodeHeader(b []byte) (ASDU, error) {
	if len(b) < HeaderLen {
		return ASDU{}, fmt.Errorf("%w: %d bytes", ErrShortHeader, len(b))
	}
	return ASDU{
		TypeID:     TypeID(b[0]),
		Sequence:   b[1]&vsqSequence != 0,
		NumObjects: int(b[1] & MaxNumObjects),
		Cause:      Cause(b[2] & causeMask),
		Negative:   b[2]&cotNegative != 0,
		Test:       b[2]&cotTest != 0,
		Originator: b[3],
		CommonAddr: binary.LittleEndian.Uint16(b[4:6]),
	}, nil
}

// Decode reads a full ASDU. Only a short header is an error; object-level
// problems are reported through Truncated and Unknown.
func Decode(b []byte) (ASDU, error) {
	a, err := DecodeHeader(b)
	if err != nil {
		return ASDU{}, err
	}
	lay, ok := layoutOf(a.TypeID)
	if !ok {
		a.Unknown = true
		return a, nil
	}

	size := lay.size()
	pos := HeaderLen
	var base uint32
	for i := 0; i < a.NumObjects; i++ {
		ioa := base + uint32(i)
		if !a.Sequence || i == 0 {
			if pos+IOALen > len(b) {
				a.Truncated = true
				break
			}
			ioa = decodeIOA(b[pos:])
			base = ioa
			pos += IOALen
		}
		if pos+size > len(b) {
			a.Truncated = true
			break
		}
		obj := lay.decode(b[pos : pos+size])
		obj.IOA = ioa
		a.Objects = append(a.Objects, obj)
		pos += size
	}
	return a, nil
}

// Encode renders a monitoring ASDU. NumObjects is taken from Objects; under
// Sequence only the first IOA is written.
func Encode(a ASDU) ([]byte, error) {
	lay, ok := layoutOf(a.TypeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, a.TypeID)
	}
	if len(a.Objects) > MaxNumObjects {
		return nil, fmt.Errorf("%w: %d", ErrTooManyObjects, len(a.Objects))
	}
	buf := encodeHeader(a, len(a.Objects))
	for i, obj := range a.Objects {
		if !a.Sequence || i == 0 {
			if obj.IOA > MaxIOA {
				return nil, fmt.Errorf("%w: %d", ErrIOAOutOfRange, obj.IOA)
			}
			buf = appendIOA(buf, obj.IOA)
		}
		elem, err := lay.encode(obj)
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}
		buf = append(buf, elem...)
	}
	return buf, nil
}

func encodeHeader(a ASDU, n int) []byte {
	vsq := byte(n) & MaxNumObjects
	if a.Sequence {
		vsq |= vsqSequence
	}
	cot := byte(a.Cause) & causeMask
	if a.Negative {
		cot |= cotNegative
	}
	if a.Test {
		cot |= cotTest
	}
	buf := make([]byte, HeaderLen, HeaderLen+n*16)
	buf[0] = byte(a.TypeID)
	buf[1] = vsq
	buf[2] = cot
	buf[3] = a.Originator
	binary.LittleEndian.PutUint16(buf[4:6], a.CommonAddr)
	return buf
}

func decodeIOA(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func appendIOA(buf []byte, ioa uint32) []byte {
	return append(buf, byte(ioa), byte(ioa>>8), byte(ioa>>16))
}

// element is the value+quality encoding shared by several type ids.
type element uint8

const (
	elemSIQ element = iota + 1
	elemDIQ
	elemVTI
	elemBSI
	elemNVA
	elemSVA
	elemFloat
)

type layout struct {
	element element
	timed   bool
}

func layoutOf(t TypeID) (layout, bool) {
	switch t {
	case MSpNa1:
		return layout{element: elemSIQ}, true
	case MDpNa1:
		return layout{element: elemDIQ}, true
	case MStNa1:
		return layout{element: elemVTI}, true
	case MBoNa1:
		return layout{element: elemBSI}, true
	case MMeNa1:
		return layout{element: elemNVA}, true
	case MMeNb1:
		return layout{element: elemSVA}, true
	case MMeNc1:
		return layout{element: elemFloat}, true
	case MSpTb1:
		return layout{element: elemSIQ, timed: true}, true
	case MDpTb1:
		return layout{element: elemDIQ, timed: true}, true
	case MMeTd1, MMeTf1:
		return layout{element: elemNVA, timed: true}, true
	case MMeTe1, MItTb1:
		return layout{element: elemSVA, timed: true}, true
	case MEpTd1:
		return layout{element: elemFloat, timed: true}, true
	default:
		return layout{}, false
	}
}

func (l layout) elementSize() int {
	switch l.element {
	case elemSIQ, elemDIQ:
		return 1
	case elemVTI:
		return 2
	case elemNVA, elemSVA:
		return 3
	case elemBSI, elemFloat:
		return 5
	default:
		return 0
	}
}

func (l layout) size() int {
	if l.timed {
		return l.elementSize() + CP56Len
	}
	return l.elementSize()
}

func (l layout) decode(b []byte) InformationObject {
	var obj InformationObject
	switch l.element {
	case elemSIQ:
		obj.Value = BoolValue(b[0]&0x01 != 0)
		obj.Quality = Quality(b[0] & 0xF0)
	case elemDIQ:
		obj.Value = DoublePointValue(b[0])
		obj.Quality = Quality(b[0] & 0xF0)
	case elemVTI:
		mag := int64(b[0] & 0x7F)
		if b[0]&0x80 != 0 {
			mag = -mag
		}
		obj.Value = IntValue(mag)
		obj.Quality = Quality(b[1])
	case elemBSI:
		obj.Value = BitsValue(binary.LittleEndian.Uint32(b[0:4]))
		obj.Quality = Quality(b[4])
	case elemNVA:
		raw := int16(binary.LittleEndian.Uint16(b[0:2]))
		obj.Value = FloatValue(float64(raw) / 32768.0)
		obj.Quality = Quality(b[2])
	case elemSVA:
		obj.Value = IntValue(int64(int16(binary.LittleEndian.Uint16(b[0:2]))))
		obj.Quality = Quality(b[2])
	case elemFloat:
		obj.Value = FloatValue(float64(math.Float32frombits(binary.LittleEndian.Uint32(b[0:4]))))
		obj.Quality = Quality(b[4])
	}
	if l.timed {
		ts := DecodeCP56Time2a(b[l.elementSize():])
		obj.Timestamp = &ts
	}
	return obj
}

func (l layout) encode(obj InformationObject) ([]byte, error) {
	out := make([]byte, l.elementSize(), l.size())
	v := obj.Value
	switch l.element {
	case elemSIQ:
		if v.Kind != ValueBool {
			return nil, ErrValueKindMismatch
		}
		out[0] = byte(obj.Quality) & 0xF0
		if v.Bool {
			out[0] |= 0x01
		}
	case elemDIQ:
		if v.Kind != ValueDoublePoint && v.Kind != ValueInt {
			return nil, ErrValueKindMismatch
		}
		out[0] = byte(obj.Quality)&0xF0 | byte(v.Int)&0x03
	case elemVTI:
		if v.Kind != ValueInt {
			return nil, ErrValueKindMismatch
		}
		mag := v.Int
		var sign byte
		if mag < 0 {
			mag = -mag
			sign = 0x80
		}
		if mag > 0x7F {
			mag = 0x7F
		}
		out[0] = sign | byte(mag)
		out[1] = byte(obj.Quality)
	case elemBSI:
		if v.Kind != ValueBits {
			return nil, ErrValueKindMismatch
		}
		binary.LittleEndian.PutUint32(out[0:4], v.Bits)
		out[4] = byte(obj.Quality)
	case elemNVA:
		if v.Kind != ValueFloat {
			return nil, ErrValueKindMismatch
		}
		binary.LittleEndian.PutUint16(out[0:2], uint16(normalize(v.Float)))
		out[2] = byte(obj.Quality)
	case elemSVA:
		if v.Kind != ValueInt {
			return nil, ErrValueKindMismatch
		}
		binary.LittleEndian.PutUint16(out[0:2], uint16(clampInt16(v.Int)))
		out[2] = byte(obj.Quality)
	case elemFloat:
		if v.Kind != ValueFloat {
			return nil, ErrValueKindMismatch
		}
		binary.LittleEndian.PutUint32(out[0:4], math.Float32bits(float32(v.Float)))
		out[4] = byte(obj.Quality)
	}
	if l.timed {
		var ts [CP56Len]byte
		if obj.Timestamp != nil {
			ts = obj.Timestamp.Raw
			if obj.Timestamp.Valid {
				ts = EncodeCP56Time2a(obj.Timestamp.Time)
			}
		}
		out = append(out, ts[:]...)
	}
	return out, nil
}

func normalize(f float64) int16 {
	return clampInt16(int64(math.Round(f * 32768.0)))
}

func clampInt16(v int64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// ValueKind is the kind of Value carried by monitoring type t, or ValueNone
// for types without a layout.
func (t TypeID) ValueKind() ValueKind {
	lay, ok := layoutOf(t)
	if !ok {
		return ValueNone
	}
	switch lay.element {
	case elemSIQ:
		return ValueBool
	case elemDIQ:
		return ValueDoublePoint
	case elemVTI, elemSVA:
		return ValueInt
	case elemBSI:
		return ValueBits
	default:
		return ValueFloat
	}
}
