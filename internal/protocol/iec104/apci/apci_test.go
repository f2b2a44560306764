package apci

import (
	"bytes"
	"errors"
	"testing"

	"github.com/danmuck/wireprobe/internal/testutil/testlog"
)

func TestClassifyBuildIFrameRoundTrip(t *testing.T) {
	testlog.Start(t)
	cases := []struct{ s, r uint16 }{
		{0, 0}, {1, 0}, {127, 128}, {255, 256}, {32767, 32767}, {16384, 1},
	}
	for _, tc := range cases {
		raw, err := BuildIFrame(tc.s, tc.r, []byte{0x01, 0x01, 0x14, 0x00, 0x01, 0x00})
		if err != nil {
			t.Fatalf("build s=%d r=%d: %v", tc.s, tc.r, err)
		}
		var ctrl [ControlLen]byte
		copy(ctrl[:], raw[2:HeaderLen])
		f := Classify(ctrl)
		if f.Kind != KindI || f.SendSeq != tc.s || f.RecvSeq != tc.r {
			t.Fatalf("classify mismatch: got=%+v want s=%d r=%d", f, tc.s, tc.r)
		}
	}
}

func TestClassifyUAndSFrames(t *testing.T) {
	testlog.Start(t)
	for _, fn := range []UFunction{StartDTAct, StartDTCon, StopDTAct, StopDTCon, TestFRAct, TestFRCon} {
		raw := BuildUFrame(fn)
		if len(raw) != HeaderLen || raw[0] != StartByte || raw[1] != ControlLen {
			t.Fatalf("unexpected u-frame bytes: % X", raw)
		}
		var ctrl [ControlLen]byte
		copy(ctrl[:], raw[2:])
		f := Classify(ctrl)
		if f.Kind != KindU || f.Function != fn {
			t.Fatalf("classify %s: got %+v", fn, f)
		}
	}

	raw := BuildSFrame(300)
	var ctrl [ControlLen]byte
	copy(ctrl[:], raw[2:])
	f := Classify(ctrl)
	if f.Kind != KindS || f.RecvSeq != 300 {
		t.Fatalf("unexpected s-frame: %+v", f)
	}
}

func TestBuildIFrameTooLarge(t *testing.T) {
	testlog.Start(t)
	if _, err := BuildIFrame(0, 0, make([]byte, MaxASDULen)); err != nil {
		t.Fatalf("max asdu rejected: %v", err)
	}
	_, err := BuildIFrame(0, 0, make([]byte, MaxASDULen+1))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestNextSeqWraps(t *testing.T) {
	testlog.Start(t)
	if got := NextSeq(32767); got != 0 {
		t.Fatalf("expected wrap to 0, got %d", got)
	}
	if got := NextSeq(41); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

func TestScannerSkipsGarbageAndHoldsPartialFrame(t *testing.T) {
	testlog.Start(t)
	iframe, _ := BuildIFrame(5, 2, []byte{1, 2, 3})
	stream := []byte{0x00, 0xFF}
	stream = append(stream, BuildUFrame(StartDTCon)...)
	stream = append(stream, 0x68, 0x02) // impossible length byte
	stream = append(stream, iframe...)
	stream = append(stream, BuildSFrame(9)[:3]...)

	var s Scanner
	frames := s.Feed(stream)
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d: %v", len(frames), frames)
	}
	if frames[0].Kind != KindU || frames[0].Function != StartDTCon {
		t.Fatalf("unexpected first frame: %v", frames[0])
	}
	if frames[1].Kind != KindI || frames[1].SendSeq != 5 || !bytes.Equal(frames[1].ASDU, []byte{1, 2, 3}) {
		t.Fatalf("unexpected second frame: %+v", frames[1])
	}
	if s.Pending() != 3 {
		t.Fatalf("expected 3 pending bytes, got %d", s.Pending())
	}
	if s.Invalid() != 1 {
		t.Fatalf("expected one invalid length byte, got %d", s.Invalid())
	}

	frames = s.Feed(BuildSFrame(9)[3:])
	if len(frames) != 1 || frames[0].Kind != KindS || frames[0].RecvSeq != 9 {
		t.Fatalf("expected completed s-frame, got %v", frames)
	}
	if s.Pending() != 0 {
		t.Fatalf("expected empty buffer, got %d", s.Pending())
	}
}

func TestScannerHoldsLoneStartByte(t *testing.T) {
	testlog.Start(t)
	var s Scanner
	frames := s.Feed(append(BuildUFrame(TestFRAct), 0x68))
	if len(frames) != 1 || frames[0].Function != TestFRAct {
		t.Fatalf("unexpected frames: %v", frames)
	}
	if s.Pending() != 1 || s.Dropped() != 0 {
		t.Fatalf("expected one held start byte, pending=%d dropped=%d", s.Pending(), s.Dropped())
	}
}

func TestFrameString(t *testing.T) {
	testlog.Start(t)
	if got := (Frame{Kind: KindU, Function: StartDTCon}).String(); got != "U(STARTDT_CON)" {
		t.Fatalf("unexpected u string: %q", got)
	}
	if got := (Frame{Kind: KindS, RecvSeq: 4}).String(); got != "S(nr=4)" {
		t.Fatalf("unexpected s string: %q", got)
	}
	if got := (Frame{Kind: KindI, SendSeq: 3, RecvSeq: 1, ASDU: make([]byte, 14)}).String(); got != "I(ns=3 nr=1 asdu=14B)" {
		t.Fatalf("unexpected i string: %q", got)
	}
}
