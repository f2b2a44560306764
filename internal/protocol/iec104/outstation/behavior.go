package outstation

import (
	"time"

	"github.com/danmuck/wireprobe/internal/protocol/iec104/asdu"
)

// Point is one monitored value served in interrogation replies.
type Point struct {
	IOA       uint32
	Type      asdu.TypeID
	Value     asdu.Value
	Quality   asdu.Quality
	Timestamp time.Time
}

// Behavior switches what the simulated station answers.
type Behavior struct {
	CommonAddr uint16

	ConfirmStart bool
	ConfirmTest  bool
	ConfirmStop  bool

	// Interrogation framing around the point data.
	SendActCon  bool
	SendActTerm bool

	// Interrogation, when set, replaces the point-derived replies with raw
	// ASDUs sent verbatim, one per I-frame.
	Interrogation [][]byte
	Points        []Point

	// CommandCause is echoed for single and double commands. Zero means
	// activation confirmation.
	CommandCause    asdu.Cause
	CommandNegative bool
	IgnoreCommands  bool

	// CloseAfterInterrogation drops the connection right after the point
	// data, before any ActTerm.
	CloseAfterInterrogation bool

	ReplyDelay  time.Duration
	IdleTimeout time.Duration
}

// DefaultBehavior answers everything the way a well-behaved station does.
func DefaultBehavior() Behavior {
	return Behavior{
		CommonAddr:   1,
		ConfirmStart: true,
		ConfirmTest:  true,
		ConfirmStop:  true,
		SendActCon:   true,
		SendActTerm:  true,
		CommandCause: asdu.CauseActivationCon,
		IdleTimeout:  30 * time.Second,
	}
}

func (b Behavior) withDefaults() Behavior {
	if b.CommandCause == 0 {
		b.CommandCause = asdu.CauseActivationCon
	}
	if b.IdleTimeout <= 0 {
		b.IdleTimeout = 30 * time.Second
	}
	return b
}

// interrogationASDUs renders the reply body, one ASDU per point unless raw
// replies were configured.
func (b Behavior) interrogationASDUs(ca uint16) ([][]byte, error) {
	if b.Interrogation != nil {
		return b.Interrogation, nil
	}
	out := make([][]byte, 0, len(b.Points))
	for _, p := range b.Points {
		obj := asdu.InformationObject{IOA: p.IOA, Value: p.Value, Quality: p.Quality}
		if !p.Timestamp.IsZero() {
			obj.Timestamp = &asdu.Timestamp{Time: p.Timestamp, Valid: true}
		}
		raw, err := asdu.Encode(asdu.ASDU{
			TypeID:     p.Type,
			Cause:      asdu.CauseInterrogated,
			CommonAddr: ca,
			Objects:    []asdu.InformationObject{obj},
		})
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}
