package apci

import (
	"errors"
	"fmt"
)

const (
	StartByte  byte = 0x68
	HeaderLen       = 6
	ControlLen      = 4

	// MaxLengthField is the largest APDU length byte a station may emit.
	MaxLengthField = 253
	MaxASDULen     = MaxLengthField - ControlLen

	SeqModulo uint16 = 1 << 15
	seqMask   uint16 = SeqModulo - 1
)

var ErrFrameTooLarge = errors.New("apci: frame too large")

// Kind is the link-layer frame format selected by the low bits of control byte 0.
type Kind uint8

const (
	KindI Kind = iota
	KindS
	KindU
)

func (k Kind) String() string {
	switch k {
	case KindI:
		return "I"
	case KindS:
		return "S"
	case KindU:
		return "U"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// UFunction is the unnumbered control function carried in byte 0 of a U-frame.
type UFunction byte

const (
	StartDTAct UFunction = 0x07
	StartDTCon UFunction = 0x0B
	StopDTAct  UFunction = 0x13
	StopDTCon  UFunction = 0x23
	TestFRAct  UFunction = 0x43
	TestFRCon  UFunction = 0x83
)

func (f UFunction) String() string {
	switch f {
	case StartDTAct:
		return "STARTDT_ACT"
	case StartDTCon:
		return "STARTDT_CON"
	case StopDTAct:
		return "STOPDT_ACT"
	case StopDTCon:
		return "STOPDT_CON"
	case TestFRAct:
		return "TESTFR_ACT"
	case TestFRCon:
		return "TESTFR_CON"
	default:
		return fmt.Sprintf("U_0x%02X", byte(f))
	}
}

// Frame is one classified APDU.
type Frame struct {
	Kind     Kind
	SendSeq  uint16
	RecvSeq  uint16
	Function UFunction
	ASDU     []byte
}

func (f Frame) String() string {
	switch f.Kind {
	case KindI:
		return fmt.Sprintf("I(ns=%d nr=%d asdu=%dB)", f.SendSeq, f.RecvSeq, len(f.ASDU))
	case KindS:
		return fmt.Sprintf("S(nr=%d)", f.RecvSeq)
	default:
		return fmt.Sprintf("U(%s)", f.Function)
	}
}

// Classify decodes the four control bytes of an APCI header.
func Classify(control [ControlLen]byte) Frame {
	b0 := control[0]
	switch {
	case b0&0x03 == 0x03:
		return Frame{Kind: KindU, Function: UFunction(b0)}
	case b0&0x01 == 0x01:
		return Frame{Kind: KindS, RecvSeq: decodeSeq(control[2], control[3])}
	default:
		return Frame{
			Kind:    KindI,
			SendSeq: decodeSeq(control[0], control[1]),
			RecvSeq: decodeSeq(control[2], control[3]),
		}
	}
}

// NextSeq advances a sequence number modulo 2^15.
func NextSeq(seq uint16) uint16 {
	return (seq + 1) & seqMask
}

func decodeSeq(lo, hi byte) uint16 {
	return ((uint16(hi)<<8 | uint16(lo)) >> 1) & seqMask
}

func encodeSeq(seq uint16) (byte, byte) {
	v := (seq & seqMask) << 1
	return byte(v), byte(v >> 8)
}

func BuildUFrame(fn UFunction) []byte {
	return []byte{StartByte, ControlLen, byte(fn), 0x00, 0x00, 0x00}
}

func BuildSFrame(recvSeq uint16) []byte {
	r0, r1 := encodeSeq(recvSeq)
	return []byte{StartByte, ControlLen, 0x01, 0x00, r0, r1}
}

func BuildIFrame(sendSeq, recvSeq uint16, asdu []byte) ([]byte, error) {
	if len(asdu) > MaxASDULen {
		return nil, fmt.Errorf("%w: asdu=%d max=%d", ErrFrameTooLarge, len(asdu), MaxASDULen)
	}
	s0, s1 := encodeSeq(sendSeq)
	r0, r1 := encodeSeq(recvSeq)
	buf := make([]byte, 0, HeaderLen+len(asdu))
	buf = append(buf, StartByte, byte(ControlLen+len(asdu)), s0, s1, r0, r1)
	buf = append(buf, asdu...)
	return buf, nil
}
