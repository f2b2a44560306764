package iec104

import (
	"context"
	"errors"
	"net"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/wireprobe/internal/protocol/iec104/asdu"
	"github.com/danmuck/wireprobe/internal/protocol/iec104/link"
	"github.com/danmuck/wireprobe/internal/protocol/iec104/outstation"
	"github.com/danmuck/wireprobe/internal/testutil/testlog"
)

func testConfig() Config {
	return Config{
		Link: link.Config{
			StartTimeout: 300 * time.Millisecond,
			TestTimeout:  200 * time.Millisecond,
			StopTimeout:  200 * time.Millisecond,
			ReadTimeout:  50 * time.Millisecond,
		},
		ConnectTimeout: time.Second,
		CollectWindow:  400 * time.Millisecond,
		CleanupTimeout: 300 * time.Millisecond,
	}
}

func startStation(t *testing.T, b outstation.Behavior) (*outstation.Server, Target) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	srv, err := outstation.Start(ctx, "127.0.0.1:0", b, zerolog.Nop())
	if err != nil {
		cancel()
		t.Fatalf("start station: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		_ = srv.Close()
	})
	host, portText, _ := net.SplitHostPort(srv.Addr())
	port, _ := strconv.Atoi(portText)
	return srv, Target{Host: host, Port: port, Timeout: 3000}
}

func singlePoint(ioa uint32, siq byte) []byte {
	return []byte{byte(asdu.MSpNa1), 0x01, byte(asdu.CauseInterrogated), 0x00, 0x01, 0x00,
		byte(ioa), byte(ioa >> 8), byte(ioa >> 16), siq}
}

func TestReadDataTwoSinglePoints(t *testing.T) {
	testlog.Start(t)
	b := outstation.DefaultBehavior()
	b.SendActCon = false
	b.SendActTerm = false
	b.Interrogation = [][]byte{singlePoint(1001, 0x01), singlePoint(1002, 0x80)}
	_, target := startStation(t, b)

	p := NewProber(testConfig(), zerolog.Nop())
	res, err := p.ReadData(context.Background(), ReadDataRequest{Target: target})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !res.Success || res.Count != 2 {
		t.Fatalf("expected 2 objects, got %+v", res)
	}
	if res.ASDUs[0].IOA != 1001 || res.ASDUs[0].Value != asdu.BoolValue(true) || len(res.ASDUs[0].QualityFlags) != 0 {
		t.Fatalf("unexpected first object: %+v", res.ASDUs[0])
	}
	if res.ASDUs[1].IOA != 1002 || res.ASDUs[1].Value != asdu.BoolValue(false) || !reflect.DeepEqual(res.ASDUs[1].QualityFlags, []string{"IV"}) {
		t.Fatalf("unexpected second object: %+v", res.ASDUs[1])
	}
	if res.ASDUs[0].TypeName != "M_SP_NA_1" || res.ASDUs[0].CA != 1 {
		t.Fatalf("unexpected record context: %+v", res.ASDUs[0])
	}
	testlog.Logf("probes/iec104: read-data count=%d rtt=%dms", res.Count, res.RTT)
}

func TestStartDTNotConfirmed(t *testing.T) {
	testlog.Start(t)
	b := outstation.DefaultBehavior()
	b.ConfirmStart = false
	srv, target := startStation(t, b)
	p := NewProber(testConfig(), zerolog.Nop())

	probe, err := p.Connectivity(context.Background(), ProbeRequest{Target: target})
	if !errors.Is(err, link.ErrLinkActivation) {
		t.Fatalf("expected link activation error, got %v", err)
	}
	if probe.Success || probe.StartDTConfirmed || !strings.Contains(probe.Error, "STARTDT not confirmed") {
		t.Fatalf("unexpected connectivity result: %+v", probe)
	}
	if probe.ErrorKind != KindProtocolViolation {
		t.Fatalf("expected protocol violation, got %q", probe.ErrorKind)
	}

	read, err := p.ReadData(context.Background(), ReadDataRequest{Target: target})
	if err == nil || read.Success || !strings.Contains(read.Error, "STARTDT not confirmed") {
		t.Fatalf("unexpected read result: %+v err=%v", read, err)
	}
	if types := srv.ReceivedTypes(); len(types) != 0 {
		t.Fatalf("no interrogation may be sent, station saw %v", types)
	}
}

func TestWriteSingleCommandConfirmed(t *testing.T) {
	testlog.Start(t)
	srv, target := startStation(t, outstation.DefaultBehavior())
	p := NewProber(testConfig(), zerolog.Nop())

	ioa := int64(100)
	res, err := p.WriteCommand(context.Background(), WriteRequest{
		Target:      target,
		IOA:         &ioa,
		CommandType: CommandSingle,
		Value:       1,
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !res.Success || !res.ActivationConfirmed || res.AckCOT != 7 || res.AckTypeID != uint8(asdu.CScNa1) || res.AckNegative {
		t.Fatalf("unexpected write result: %+v", res)
	}

	var sent []byte
	for _, f := range srv.Received() {
		if len(f.ASDU) > 0 && asdu.TypeID(f.ASDU[0]) == asdu.CScNa1 {
			sent = f.ASDU
		}
	}
	cmd, err := asdu.ParseCommand(sent)
	if err != nil || cmd.IOA != 100 || cmd.Qualifier != 1 || cmd.CommonAddr != 1 {
		t.Fatalf("unexpected command on the wire: %+v err=%v", cmd, err)
	}
}

func TestWriteCommandRejected(t *testing.T) {
	testlog.Start(t)
	b := outstation.DefaultBehavior()
	b.CommandCause = asdu.CauseUnknownIOA
	b.CommandNegative = true
	_, target := startStation(t, b)
	p := NewProber(testConfig(), zerolog.Nop())

	ioa := int64(5)
	res, err := p.WriteCommand(context.Background(), WriteRequest{Target: target, IOA: &ioa, CommandType: CommandDouble, Value: 2})
	if !errors.Is(err, ErrActivationNotConfirmed) {
		t.Fatalf("expected activation not confirmed, got %v", err)
	}
	if res.Success || res.ActivationConfirmed || res.AckCOT != uint8(asdu.CauseUnknownIOA) || !res.AckNegative {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Error != "activation not confirmed" || res.ErrorKind != KindProtocolViolation {
		t.Fatalf("unexpected failure fields: %+v", res.Failure)
	}
}

func TestWriteCommandWithoutReply(t *testing.T) {
	testlog.Start(t)
	b := outstation.DefaultBehavior()
	b.IgnoreCommands = true
	_, target := startStation(t, b)
	target.Timeout = 600
	p := NewProber(testConfig(), zerolog.Nop())

	ioa := int64(5)
	start := time.Now()
	res, err := p.WriteCommand(context.Background(), WriteRequest{Target: target, IOA: &ioa, Value: 0})
	if !errors.Is(err, ErrActivationNotConfirmed) || res.Success || res.AckTypeID != 0 {
		t.Fatalf("expected unconfirmed write, got %+v err=%v", res, err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("write exceeded its deadline: %s", time.Since(start))
	}
}

func TestReadDataSkipsUnknownType(t *testing.T) {
	testlog.Start(t)
	unknown := []byte{200, 0x02, byte(asdu.CauseSpontaneous), 0x00, 0x01, 0x00, 0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x11}
	b := outstation.DefaultBehavior()
	b.SendActCon = false
	b.SendActTerm = false
	b.Interrogation = [][]byte{singlePoint(1, 0x01), unknown, singlePoint(2, 0x00)}
	_, target := startStation(t, b)
	p := NewProber(testConfig(), zerolog.Nop())

	res, err := p.ReadData(context.Background(), ReadDataRequest{Target: target})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.Count != 2 || res.UnknownASDUs != 1 {
		t.Fatalf("expected 2 objects and 1 unknown asdu, got %+v", res)
	}
	if res.ASDUs[0].IOA != 1 || res.ASDUs[1].IOA != 2 {
		t.Fatalf("unexpected objects: %+v", res.ASDUs)
	}
}

func TestReadDataStopsOnTermination(t *testing.T) {
	testlog.Start(t)
	b := outstation.DefaultBehavior()
	b.Points = []outstation.Point{
		{IOA: 1, Type: asdu.MMeNc1, Value: asdu.FloatValue(49.98)},
		{IOA: 2, Type: asdu.MDpTb1, Value: asdu.DoublePointValue(2), Timestamp: time.Date(2024, 3, 15, 10, 30, 45, 0, time.UTC)},
	}
	_, target := startStation(t, b)
	cfg := testConfig()
	cfg.CollectWindow = 5 * time.Second
	p := NewProber(cfg, zerolog.Nop())

	start := time.Now()
	res, err := p.ReadData(context.Background(), ReadDataRequest{Target: target})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !res.InterrogationConfirmed || !res.InterrogationTerminated || res.Count != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("collection did not stop at termination: %s", time.Since(start))
	}
	ts := res.ASDUs[1].Timestamp
	if ts == nil || !ts.Valid || ts.Time.Hour() != 10 || ts.Time.Second() != 45 {
		t.Fatalf("unexpected timestamp: %+v", ts)
	}
}

func TestReadDataObjectCap(t *testing.T) {
	testlog.Start(t)
	b := outstation.DefaultBehavior()
	for i := 0; i < 6; i++ {
		b.Points = append(b.Points, outstation.Point{IOA: uint32(i + 1), Type: asdu.MMeNb1, Value: asdu.IntValue(int64(i))})
	}
	_, target := startStation(t, b)
	cfg := testConfig()
	cfg.MaxObjects = 4
	p := NewProber(cfg, zerolog.Nop())

	res, err := p.ReadData(context.Background(), ReadDataRequest{Target: target})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if res.Count != 4 || res.InterrogationTerminated {
		t.Fatalf("expected cap of 4 before termination, got %+v", res)
	}
}

func TestConnectivityConfirmed(t *testing.T) {
	testlog.Start(t)
	_, target := startStation(t, outstation.DefaultBehavior())
	p := NewProber(testConfig(), zerolog.Nop())

	res, err := p.Connectivity(context.Background(), ProbeRequest{Target: target})
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if !res.Success || !res.StartDTConfirmed || !res.TestFRConfirmed || !res.StopDTConfirmed {
		t.Fatalf("unexpected result: %+v", res)
	}
	var descs []string
	for _, f := range res.FramesReceived {
		descs = append(descs, f.Description)
	}
	want := []string{"U(STARTDT_CON)", "U(TESTFR_CON)", "U(STOPDT_CON)"}
	if !reflect.DeepEqual(descs, want) {
		t.Fatalf("unexpected frames: %v", descs)
	}
}

func TestConnectivityRefused(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	_ = ln.Close()

	p := NewProber(testConfig(), zerolog.Nop())
	res, err := p.Connectivity(context.Background(), ProbeRequest{Target: Target{Host: "127.0.0.1", Port: port, Timeout: 1000}})
	if err == nil || res.Success || res.ErrorKind != KindConnectionFailure {
		t.Fatalf("expected connection failure, got %+v err=%v", res, err)
	}
}

func TestRequestValidation(t *testing.T) {
	testlog.Start(t)
	p := NewProber(testConfig(), zerolog.Nop())
	ctx := context.Background()

	res, err := p.Connectivity(ctx, ProbeRequest{})
	if Classify(err) != KindInputValidation || !strings.Contains(res.Error, "missing host") {
		t.Fatalf("expected missing host, got %+v err=%v", res, err)
	}
	_, err = p.WriteCommand(ctx, WriteRequest{Target: Target{Host: "127.0.0.1"}})
	if Classify(err) != KindInputValidation || !strings.Contains(err.Error(), "missing ioa") {
		t.Fatalf("expected missing ioa, got %v", err)
	}
	ioa := int64(1)
	_, err = p.WriteCommand(ctx, WriteRequest{Target: Target{Host: "127.0.0.1"}, IOA: &ioa, CommandType: CommandDouble, Value: 0})
	if Classify(err) != KindInputValidation || !errors.Is(err, asdu.ErrInvalidCommandValue) {
		t.Fatalf("expected invalid double value, got %v", err)
	}
	_, err = p.WriteCommand(ctx, WriteRequest{Target: Target{Host: "127.0.0.1"}, IOA: &ioa, CommandType: "pulse"})
	if Classify(err) != KindInputValidation {
		t.Fatalf("expected unknown command type rejection, got %v", err)
	}
	_, err = p.ReadData(ctx, ReadDataRequest{Target: Target{Host: "127.0.0.1", Port: 70000}})
	if Classify(err) != KindInputValidation {
		t.Fatalf("expected port rejection, got %v", err)
	}
}

func TestRequestDefaults(t *testing.T) {
	testlog.Start(t)
	probe := ProbeRequest{Target: Target{Host: " plc.local "}}
	if err := probe.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if probe.Host != "plc.local" || probe.Port != 2404 || probe.Timeout != 10000 {
		t.Fatalf("unexpected probe defaults: %+v", probe)
	}
	read := ReadDataRequest{Target: Target{Host: "plc.local"}}
	if err := read.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if read.Timeout != 15000 || read.CommonAddress != 1 {
		t.Fatalf("unexpected read defaults: %+v", read)
	}
	ioa := int64(3)
	write := WriteRequest{Target: Target{Host: "plc.local"}, IOA: &ioa, Value: 1}
	if err := write.Normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if write.CommandType != CommandSingle || write.Timeout != 15000 {
		t.Fatalf("unexpected write defaults: %+v", write)
	}
}

func TestReadDataPartialOnDisconnect(t *testing.T) {
	testlog.Start(t)
	b := outstation.DefaultBehavior()
	b.Interrogation = [][]byte{singlePoint(2001, 0x01), singlePoint(2002, 0x00)}
	b.CloseAfterInterrogation = true
	_, target := startStation(t, b)

	p := NewProber(testConfig(), zerolog.Nop())
	res, err := p.ReadData(context.Background(), ReadDataRequest{Target: target})
	if err != nil {
		t.Fatalf("interrupted collection must not fail the read: %v", err)
	}
	if !res.Success || res.Count != 2 || res.Error != "" {
		t.Fatalf("expected partial success with 2 objects, got %+v", res)
	}
	if !res.InterrogationConfirmed || res.InterrogationTerminated {
		t.Fatalf("expected confirmed but unterminated interrogation, got %+v", res)
	}
	if res.ASDUs[0].IOA != 2001 || res.ASDUs[1].IOA != 2002 {
		t.Fatalf("unexpected objects: %+v", res.ASDUs)
	}
}

func TestConnectivityReportsForeignProtocol(t *testing.T) {
	testlog.Start(t)
	greeting := []byte("SSH-2.0-OpenSSH_9.6\r\n")
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = c.Write(greeting)
		buf := make([]byte, 64)
		for {
			if _, err := c.Read(buf); err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
	})
	port := ln.Addr().(*net.TCPAddr).Port

	p := NewProber(testConfig(), zerolog.Nop())
	res, err := p.Connectivity(context.Background(), ProbeRequest{Target: Target{Host: "127.0.0.1", Port: port, Timeout: 2000}})
	if !errors.Is(err, link.ErrLinkActivation) || res.StartDTConfirmed {
		t.Fatalf("expected activation failure, got %+v err=%v", res, err)
	}
	if res.BytesReceived != len(greeting) || res.BytesDropped != len(greeting) || len(res.FramesReceived) != 0 {
		t.Fatalf("expected greeting counted as dropped bytes, got %+v", res.LinkStats)
	}

	_, target := startStation(t, func() outstation.Behavior {
		b := outstation.DefaultBehavior()
		b.ConfirmStart = false
		return b
	}())
	silent, _ := p.Connectivity(context.Background(), ProbeRequest{Target: target})
	if silent.BytesReceived != 0 || silent.BytesDropped != 0 {
		t.Fatalf("silent station must report no bytes, got %+v", silent.LinkStats)
	}
}
