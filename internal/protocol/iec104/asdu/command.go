package asdu

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// CommandLen is the fixed size of the control-direction ASDUs built here.
const CommandLen = HeaderLen + IOALen + 1

// QOIStation is the qualifier of a station-wide general interrogation.
const QOIStation byte = 20

var ErrInvalidCommandValue = errors.New("asdu: invalid command value")

// Command is a parsed single-object control-direction ASDU.
type Command struct {
	TypeID     TypeID
	Cause      Cause
	Negative   bool
	Originator uint8
	CommonAddr uint16
	IOA        uint32
	Qualifier  byte
}

func GeneralInterrogation(ca uint16) []byte {
	return buildCommand(CIcNa1, ca, 0, QOIStation)
}

// SingleCommand builds C_SC_NA_1 with SCS value 0 (off) or 1 (on).
func SingleCommand(ca uint16, ioa uint32, value int) ([]byte, error) {
	if ioa > MaxIOA {
		return nil, fmt.Errorf("%w: %d", ErrIOAOutOfRange, ioa)
	}
	if value != 0 && value != 1 {
		return nil, fmt.Errorf("%w: single command expects 0 or 1, got %d", ErrInvalidCommandValue, value)
	}
	return buildCommand(CScNa1, ca, ioa, byte(value)), nil
}

// DoubleCommand builds C_DC_NA_1 with DCS value 1 (off) or 2 (on).
func DoubleCommand(ca uint16, ioa uint32, value int) ([]byte, error) {
	if ioa > MaxIOA {
		return nil, fmt.Errorf("%w: %d", ErrIOAOutOfRange, ioa)
	}
	if value != 1 && value != 2 {
		return nil, fmt.Errorf("%w: double command expects 1 or 2, got %d", ErrInvalidCommandValue, value)
	}
	return buildCommand(CDcNa1, ca, ioa, byte(value)), nil
}

func buildCommand(t TypeID, ca uint16, ioa uint32, qualifier byte) []byte {
	buf := make([]byte, 0, CommandLen)
	buf = append(buf, byte(t), 0x01, byte(CauseActivation), 0x00)
	buf = binary.LittleEndian.AppendUint16(buf, ca)
	buf = appendIOA(buf, ioa)
	return append(buf, qualifier)
}

// ParseCommand reads a single-object command ASDU.
func ParseCommand(b []byte) (Command, error) {
	h, err := DecodeHeader(b)
	if err != nil {
		return Command{}, err
	}
	if len(b) < CommandLen {
		return Command{}, fmt.Errorf("%w: command needs %d bytes, got %d", ErrShortHeader, CommandLen, len(b))
	}
	return Command{
		TypeID:     h.TypeID,
		Cause:      h.Cause,
		Negative:   h.Negative,
		Originator: h.Originator,
		CommonAddr: h.CommonAddr,
		IOA:        decodeIOA(b[HeaderLen:]),
		Qualifier:  b[HeaderLen+IOALen],
	}, nil
}

// Reply mirrors the command back with a new cause, as a station does for
// confirmation and termination.
func (c Command) Reply(cause Cause, negative bool) []byte {
	out := buildCommand(c.TypeID, c.CommonAddr, c.IOA, c.Qualifier)
	out[2] = byte(cause) & causeMask
	if negative {
		out[2] |= cotNegative
	}
	out[3] = c.Originator
	return out
}
