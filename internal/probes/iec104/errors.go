package iec104

import (
	"context"
	"errors"

	"github.com/danmuck/wireprobe/internal/protocol/iec104/asdu"
	"github.com/danmuck/wireprobe/internal/protocol/iec104/link"
	"github.com/danmuck/wireprobe/internal/transport"
)

var (
	ErrInputValidation        = errors.New("iec104: invalid input")
	ErrActivationNotConfirmed = errors.New("iec104: activation not confirmed")
)

// Kind groups probe failures for callers and metrics.
type Kind string

const (
	KindNone              Kind = ""
	KindInputValidation   Kind = "input_validation"
	KindConnectionFailure Kind = "connection_failure"
	KindProtocolViolation Kind = "protocol_violation"
	KindDecodeAmbiguity   Kind = "decode_ambiguity"
	KindTimeout           Kind = "timeout"
	KindInternal          Kind = "internal"
)

// Classify maps an error returned by this package onto a Kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInputValidation):
		return KindInputValidation
	case errors.Is(err, transport.ErrConnect), errors.Is(err, transport.ErrConnectTimeout):
		return KindConnectionFailure
	case errors.Is(err, link.ErrLinkActivation), errors.Is(err, ErrActivationNotConfirmed), errors.Is(err, link.ErrNotActive):
		return KindProtocolViolation
	case errors.Is(err, transport.ErrIO), errors.Is(err, transport.ErrClosed):
		return KindConnectionFailure
	case errors.Is(err, asdu.ErrShortHeader):
		return KindDecodeAmbiguity
	case errors.Is(err, link.ErrTimeout), errors.Is(err, transport.ErrTimeout), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return KindTimeout
	default:
		return KindInternal
	}
}

// message is the short user-facing text for err.
func message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, transport.ErrConnectTimeout):
		return "connection timeout"
	case errors.Is(err, transport.ErrConnect):
		return "connection failed"
	case errors.Is(err, link.ErrLinkActivation):
		return "STARTDT not confirmed"
	case errors.Is(err, ErrActivationNotConfirmed):
		return "activation not confirmed"
	default:
		return err.Error()
	}
}
