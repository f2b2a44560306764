package outstation

import (
	"errors"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/wireprobe/internal/protocol/iec104/apci"
	"github.com/danmuck/wireprobe/internal/protocol/iec104/asdu"
)

var errHangup = errors.New("outstation: hangup after interrogation")

// session is the per-connection station state.
type session struct {
	srv     *Server
	conn    net.Conn
	log     zerolog.Logger
	scanner apci.Scanner
	sendSeq uint16
	recvSeq uint16
	started bool
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	defer s.untrack(conn)
	s.connections.Inc()
	s.active.Inc()
	defer s.active.Dec()

	sess := &session{
		srv:  s,
		conn: conn,
		log:  s.log.With().Str("remote", conn.RemoteAddr().String()).Logger(),
	}
	sess.log.Debug().Msg("client connected")
	defer sess.log.Debug().Msg("client disconnected")

	buf := make([]byte, 1024)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.behavior.IdleTimeout))
		n, err := conn.Read(buf)
		if n > 0 {
			for _, f := range sess.scanner.Feed(buf[:n]) {
				s.record(f)
				if err := sess.handle(f); err != nil {
					if errors.Is(err, errHangup) {
						sess.log.Debug().Msg("closing after interrogation")
					} else {
						sess.log.Debug().Err(err).Msg("write failed")
					}
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func (ss *session) handle(f apci.Frame) error {
	b := ss.srv.behavior
	ss.log.Trace().Stringer("frame", f).Msg("rx")
	switch f.Kind {
	case apci.KindU:
		switch f.Function {
		case apci.StartDTAct:
			if !b.ConfirmStart {
				return nil
			}
			ss.started = true
			return ss.write(apci.BuildUFrame(apci.StartDTCon))
		case apci.TestFRAct:
			if !b.ConfirmTest {
				return nil
			}
			return ss.write(apci.BuildUFrame(apci.TestFRCon))
		case apci.StopDTAct:
			ss.started = false
			if !b.ConfirmStop {
				return nil
			}
			return ss.write(apci.BuildUFrame(apci.StopDTCon))
		}
	case apci.KindI:
		ss.recvSeq = apci.NextSeq(f.SendSeq)
		if !ss.started {
			return nil
		}
		return ss.handleASDU(f.ASDU)
	}
	return nil
}

func (ss *session) handleASDU(raw []byte) error {
	b := ss.srv.behavior
	cmd, err := asdu.ParseCommand(raw)
	if err != nil {
		ss.log.Debug().Err(err).Msg("ignoring unparseable asdu")
		return nil
	}
	if b.ReplyDelay > 0 {
		time.Sleep(b.ReplyDelay)
	}
	switch cmd.TypeID {
	case asdu.CIcNa1:
		if b.SendActCon {
			if err := ss.sendASDU(cmd.Reply(asdu.CauseActivationCon, false)); err != nil {
				return err
			}
		}
		replies, err := b.interrogationASDUs(cmd.CommonAddr)
		if err != nil {
			ss.log.Warn().Err(err).Msg("interrogation reply build failed")
			return nil
		}
		for _, r := range replies {
			if err := ss.sendASDU(r); err != nil {
				return err
			}
		}
		if b.CloseAfterInterrogation {
			return errHangup
		}
		if b.SendActTerm {
			return ss.sendASDU(cmd.Reply(asdu.CauseActivationTerm, false))
		}
	case asdu.CScNa1, asdu.CDcNa1:
		if b.IgnoreCommands {
			return nil
		}
		return ss.sendASDU(cmd.Reply(b.CommandCause, b.CommandNegative))
	default:
		ss.log.Debug().Stringer("type", cmd.TypeID).Msg("unsupported control type")
	}
	return nil
}

func (ss *session) sendASDU(payload []byte) error {
	raw, err := apci.BuildIFrame(ss.sendSeq, ss.recvSeq, payload)
	if err != nil {
		return err
	}
	if err := ss.write(raw); err != nil {
		return err
	}
	ss.sendSeq = apci.NextSeq(ss.sendSeq)
	return nil
}

func (ss *session) write(raw []byte) error {
	ss.srv.framesOut.Inc()
	_ = ss.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	_, err := ss.conn.Write(raw)
	return err
}
