package iec104

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/wireprobe/internal/observability"
	"github.com/danmuck/wireprobe/internal/protocol/iec104/apci"
	"github.com/danmuck/wireprobe/internal/protocol/iec104/asdu"
	"github.com/danmuck/wireprobe/internal/protocol/iec104/link"
	"github.com/danmuck/wireprobe/internal/transport"
)

const ModuleName = "iec104"

const (
	OpProbe    = "probe"
	OpReadData = "read-data"
	OpWrite    = "write"
)

// Prober runs one-shot IEC-104 probes. Each call owns its own connection
// and link, so a Prober is safe for concurrent use.
type Prober struct {
	cfg Config
	log zerolog.Logger
}

func NewProber(cfg Config, logger zerolog.Logger) *Prober {
	return &Prober{
		cfg: cfg.WithDefaults(),
		log: logger.With().Str("module", ModuleName).Logger(),
	}
}

// session is the per-call connection and link.
type session struct {
	conn *transport.Conn
	link *link.Link
	log  zerolog.Logger
}

func (p *Prober) open(ctx context.Context, t Target) (*session, error) {
	logger := p.log.With().Str("host", t.Host).Int("port", t.Port).Logger()
	conn, err := transport.Dial(ctx, t.Host, t.Port, p.cfg.ConnectTimeout)
	if err != nil {
		logger.Warn().Err(err).Msg("connect failed")
		return nil, err
	}
	logger = logger.With().Str("remote", conn.RemoteAddr()).Logger()
	return &session{
		conn: conn,
		link: link.New(conn, p.cfg.Link, logger),
		log:  logger,
	}, nil
}

// close sends STOPDT best effort and releases the socket. It runs on its
// own short deadline so an expired request context still gets a clean stop.
func (p *Prober) close(s *session) bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.CleanupTimeout)
	defer cancel()
	stopped := s.link.Deactivate(ctx)
	if err := s.conn.Close(); err != nil {
		s.log.Debug().Err(err).Msg("close")
	}
	return stopped
}

func (s *session) stats() LinkStats {
	return LinkStats{BytesReceived: s.link.BytesReceived(), BytesDropped: s.link.Dropped()}
}

func (p *Prober) ack(s *session) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.CleanupTimeout)
	defer cancel()
	if err := s.link.SendAck(ctx); err != nil {
		s.log.Debug().Err(err).Msg("ack failed")
	}
}

func elapsedMS(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}

func outcome(success bool, err error) string {
	if success {
		return "success"
	}
	if kind := Classify(err); kind != KindNone {
		return string(kind)
	}
	return "failure"
}

// Connectivity activates the link, runs one keepalive and stops the link.
func (p *Prober) Connectivity(ctx context.Context, req ProbeRequest) (res ConnectivityResult, err error) {
	start := time.Now()
	res.FramesReceived = []FrameInfo{}
	defer func() {
		res.RTT = elapsedMS(start)
		res.Failure = failure(err)
		observability.RecordProbe(ModuleName, OpProbe, outcome(res.Success, err), time.Since(start), 0)
	}()
	if err = req.Normalize(); err != nil {
		return res, err
	}
	ctx, cancel := context.WithTimeout(ctx, req.deadline())
	defer cancel()

	s, err := p.open(ctx, req.Target)
	if err != nil {
		return res, err
	}
	defer func() {
		res.StopDTConfirmed = p.close(s)
		res.LinkStats = s.stats()
	}()
	s.link.OnFrame = func(f apci.Frame) {
		if len(res.FramesReceived) < p.cfg.MaxFrames {
			res.FramesReceived = append(res.FramesReceived, describeFrame(f))
		}
	}

	if err = s.link.Activate(ctx); err != nil {
		if s.link.Dropped() > 0 {
			s.log.Warn().Int("dropped", s.link.Dropped()).Msg("peer sent non-IEC-104 bytes")
		}
		return res, err
	}
	res.StartDTConfirmed = true
	res.Success = true

	confirmed, kerr := s.link.Keepalive(ctx)
	if kerr != nil {
		s.log.Warn().Err(kerr).Msg("keepalive failed")
	}
	res.TestFRConfirmed = confirmed
	s.log.Info().Bool("testfr", confirmed).Int("frames", len(res.FramesReceived)).Msg("connectivity probe done")
	return res, nil
}

// ReadData sends a station interrogation and collects monitoring objects
// until the collection window closes, the object cap is reached or the
// station terminates the interrogation.
func (p *Prober) ReadData(ctx context.Context, req ReadDataRequest) (res ReadResult, err error) {
	start := time.Now()
	res.ASDUs = []ObjectRecord{}
	defer func() {
		res.Count = len(res.ASDUs)
		res.RTT = elapsedMS(start)
		res.Failure = failure(err)
		observability.RecordProbe(ModuleName, OpReadData, outcome(res.Success, err), time.Since(start), res.Count)
	}()
	if err = req.Normalize(); err != nil {
		return res, err
	}
	ctx, cancel := context.WithTimeout(ctx, req.deadline())
	defer cancel()

	s, err := p.open(ctx, req.Target)
	if err != nil {
		return res, err
	}
	defer func() {
		p.close(s)
		res.LinkStats = s.stats()
	}()

	if err = s.link.Activate(ctx); err != nil {
		return res, err
	}
	if err = s.link.SendASDU(ctx, asdu.GeneralInterrogation(uint16(req.CommonAddress))); err != nil {
		return res, err
	}
	res.Success = true
	p.collect(ctx, s, &res)
	p.ack(s)
	s.log.Info().Int("objects", len(res.ASDUs)).Bool("terminated", res.InterrogationTerminated).Msg("read probe done")
	return res, nil
}

func (p *Prober) collect(ctx context.Context, s *session, res *ReadResult) {
	windowEnd := time.Now().Add(p.cfg.CollectWindow)
	for len(res.ASDUs) < p.cfg.MaxObjects {
		remaining := time.Until(windowEnd)
		if remaining <= 0 {
			return
		}
		f, err := s.link.Next(ctx, remaining)
		if err != nil {
			if !errors.Is(err, link.ErrTimeout) {
				s.log.Warn().Err(err).Msg("collection interrupted")
			}
			return
		}
		if f.Kind != apci.KindI {
			continue
		}
		a, err := asdu.Decode(f.ASDU)
		if err != nil {
			res.TruncatedASDUs++
			continue
		}
		if a.TypeID == asdu.CIcNa1 {
			switch {
			case a.Cause == asdu.CauseActivationCon && !a.Negative:
				res.InterrogationConfirmed = true
			case a.Cause == asdu.CauseActivationTerm:
				res.InterrogationTerminated = true
				return
			}
			continue
		}
		if a.Truncated {
			res.TruncatedASDUs++
		}
		if a.Unknown {
			res.UnknownASDUs++
			s.log.Debug().Stringer("type", a.TypeID).Msg("unknown type skipped")
		}
		recs := recordsOf(a)
		if room := p.cfg.MaxObjects - len(res.ASDUs); len(recs) > room {
			recs = recs[:room]
		}
		res.ASDUs = append(res.ASDUs, recs...)
	}
}

// WriteCommand sends one single or double command and waits for the first
// reply I-frame. Only an activation confirmation counts as success.
func (p *Prober) WriteCommand(ctx context.Context, req WriteRequest) (res WriteResult, err error) {
	start := time.Now()
	defer func() {
		res.RTT = elapsedMS(start)
		res.Failure = failure(err)
		observability.RecordProbe(ModuleName, OpWrite, outcome(res.Success, err), time.Since(start), 0)
	}()
	if err = req.Normalize(); err != nil {
		return res, err
	}
	cmd, err := req.command()
	if err != nil {
		return res, err
	}
	ctx, cancel := context.WithTimeout(ctx, req.deadline())
	defer cancel()

	s, err := p.open(ctx, req.Target)
	if err != nil {
		return res, err
	}
	defer func() {
		p.close(s)
		res.LinkStats = s.stats()
	}()

	if err = s.link.Activate(ctx); err != nil {
		return res, err
	}
	if err = s.link.SendASDU(ctx, cmd); err != nil {
		return res, err
	}
	defer p.ack(s)

	reply, err := p.awaitReply(ctx, s)
	if err != nil {
		s.log.Warn().Err(err).Msg("no command reply")
		return res, errors.Join(ErrActivationNotConfirmed, err)
	}
	res.AckTypeID = uint8(reply.TypeID)
	res.AckCOT = uint8(reply.Cause)
	res.AckNegative = reply.Negative
	res.ActivationConfirmed = reply.Cause == asdu.CauseActivationCon && !reply.Negative
	res.Success = res.ActivationConfirmed
	s.log.Info().
		Stringer("ack_type", reply.TypeID).
		Stringer("ack_cot", reply.Cause).
		Bool("negative", reply.Negative).
		Msg("write probe done")
	if !res.ActivationConfirmed {
		return res, ErrActivationNotConfirmed
	}
	return res, nil
}

func (p *Prober) awaitReply(ctx context.Context, s *session) (asdu.ASDU, error) {
	for {
		deadline, _ := ctx.Deadline()
		f, err := s.link.Next(ctx, time.Until(deadline))
		if err != nil {
			return asdu.ASDU{}, err
		}
		if f.Kind != apci.KindI {
			continue
		}
		return asdu.DecodeHeader(f.ASDU)
	}
}
