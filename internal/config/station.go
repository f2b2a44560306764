package config

import (
	"fmt"
	"math"
	"time"

	"github.com/danmuck/wireprobe/internal/protocol/iec104/asdu"
	"github.com/danmuck/wireprobe/internal/protocol/iec104/outstation"
)

// Behavior converts the file into simulator settings. Unset switches keep
// the well-behaved defaults.
func (c StationConfig) Behavior() (outstation.Behavior, error) {
	b := outstation.DefaultBehavior()
	b.CommonAddr = uint16(c.CommonAddress)
	setBool(&b.ConfirmStart, c.ConfirmStart)
	setBool(&b.ConfirmTest, c.ConfirmTest)
	setBool(&b.ConfirmStop, c.ConfirmStop)
	setBool(&b.SendActCon, c.SendActCon)
	setBool(&b.SendActTerm, c.SendActTerm)
	if c.CommandCause != 0 {
		b.CommandCause = asdu.Cause(c.CommandCause)
	}
	b.CommandNegative = c.CommandReject
	b.IgnoreCommands = c.IgnoreCmds
	b.CloseAfterInterrogation = c.HangupAfterGI
	b.ReplyDelay = time.Duration(c.ReplyDelayMS) * time.Millisecond
	if c.IdleTimeoutS > 0 {
		b.IdleTimeout = time.Duration(c.IdleTimeoutS) * time.Second
	}
	for i, pc := range c.Points {
		p, err := pc.point()
		if err != nil {
			return outstation.Behavior{}, fmt.Errorf("points[%d]: %w", i, err)
		}
		b.Points = append(b.Points, p)
	}
	return b, nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func (pc PointConfig) point() (outstation.Point, error) {
	if pc.IOA > asdu.MaxIOA {
		return outstation.Point{}, fmt.Errorf("ioa out of range: %d", pc.IOA)
	}
	t, ok := asdu.ParseTypeID(pc.Type)
	if !ok || !t.Monitoring() || t.ValueKind() == asdu.ValueNone {
		return outstation.Point{}, fmt.Errorf("unsupported type %q", pc.Type)
	}
	q, err := asdu.ParseQuality(pc.Quality)
	if err != nil {
		return outstation.Point{}, err
	}
	v, err := pointValue(t.ValueKind(), pc.Value)
	if err != nil {
		return outstation.Point{}, fmt.Errorf("%s value: %w", t, err)
	}
	p := outstation.Point{IOA: pc.IOA, Type: t, Value: v, Quality: q}
	if pc.Timestamp != nil {
		p.Timestamp = pc.Timestamp.UTC()
	}
	return p, nil
}

func pointValue(kind asdu.ValueKind, raw any) (asdu.Value, error) {
	switch kind {
	case asdu.ValueBool:
		switch v := raw.(type) {
		case bool:
			return asdu.BoolValue(v), nil
		case int64:
			return asdu.BoolValue(v != 0), nil
		}
	case asdu.ValueDoublePoint:
		if v, ok := raw.(int64); ok && v >= 0 && v <= 3 {
			return asdu.DoublePointValue(uint8(v)), nil
		}
	case asdu.ValueInt:
		if v, ok := raw.(int64); ok {
			return asdu.IntValue(v), nil
		}
	case asdu.ValueBits:
		if v, ok := raw.(int64); ok && v >= 0 && v <= math.MaxUint32 {
			return asdu.BitsValue(uint32(v)), nil
		}
	case asdu.ValueFloat:
		switch v := raw.(type) {
		case float64:
			return asdu.FloatValue(v), nil
		case int64:
			return asdu.FloatValue(float64(v)), nil
		}
	}
	return asdu.Value{}, fmt.Errorf("cannot use %v (%T)", raw, raw)
}
