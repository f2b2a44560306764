package link

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"

	"github.com/danmuck/wireprobe/internal/protocol/iec104/apci"
	"github.com/danmuck/wireprobe/internal/transport"
)

var (
	ErrLinkActivation = errors.New("link: STARTDT not confirmed")
	ErrNotActive      = errors.New("link: data transfer not active")
	ErrTimeout        = errors.New("link: no frame before deadline")
	ErrUnexpectedU    = errors.New("link: unexpected U-frame")
)

// Transport is the byte stream the link drives.
type Transport interface {
	Send(ctx context.Context, p []byte) error
	Receive(ctx context.Context, max time.Duration) ([]byte, error)
	Close() error
}

// Link runs the APCI handshake and sequence bookkeeping for one connection.
// It is not safe for concurrent use.
type Link struct {
	tr      Transport
	cfg     Config
	log     zerolog.Logger
	machine *fsm.FSM
	scanner apci.Scanner
	pending []apci.Frame
	held    []apci.Frame
	seq     SessionState
	rxBytes int

	// OnFrame sees every inbound frame once, in arrival order.
	OnFrame func(apci.Frame)
}

func New(tr Transport, cfg Config, logger zerolog.Logger) *Link {
	l := &Link{
		tr:  tr,
		cfg: cfg.WithDefaults(),
		log: logger.With().Str("component", "iec104.link").Logger(),
	}
	l.machine = newStateMachine(fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			l.log.Debug().Str("from", e.Src).Str("to", e.Dst).Str("event", e.Event).Msg("link state")
		},
	})
	return l
}

// Phase is the current link state name.
func (l *Link) Phase() string {
	return l.machine.Current()
}

func (l *Link) Active() bool {
	switch l.machine.Current() {
	case StateDataTransfer, StateAwaitingTestCon:
		return true
	default:
		return false
	}
}

func (l *Link) State() SessionState {
	s := l.seq
	s.DataTransferActive = l.Active()
	return s
}

// Dropped reports bytes discarded while resynchronising on start bytes.
// A peer speaking another protocol shows up here rather than as frames.
func (l *Link) Dropped() int {
	return l.scanner.Dropped()
}

// BytesReceived counts raw bytes read from the transport.
func (l *Link) BytesReceived() int {
	return l.rxBytes
}

// Activate sends STARTDT_ACT and waits for STARTDT_CON. Any failure leaves
// the link closed and wraps ErrLinkActivation.
func (l *Link) Activate(ctx context.Context) error {
	if err := l.fire(eventStartAct); err != nil {
		return fmt.Errorf("%w: %v", ErrLinkActivation, err)
	}
	if err := l.tr.Send(ctx, apci.BuildUFrame(apci.StartDTAct)); err != nil {
		_ = l.fire(eventStartFailed)
		return fmt.Errorf("%w: %w", ErrLinkActivation, err)
	}
	if err := l.awaitU(ctx, apci.StartDTCon, l.cfg.StartTimeout, true); err != nil {
		_ = l.fire(eventStartFailed)
		l.log.Warn().Err(err).
			Int("rx_bytes", l.rxBytes).
			Int("dropped", l.scanner.Dropped()).
			Int("bad_length", l.scanner.Invalid()).
			Int("partial", l.scanner.Pending()).
			Msg("startdt not confirmed")
		return fmt.Errorf("%w: %w", ErrLinkActivation, err)
	}
	return l.fire(eventStartCon)
}

// Keepalive sends TESTFR_ACT and waits for TESTFR_CON. A missing
// confirmation returns false with a nil error.
func (l *Link) Keepalive(ctx context.Context) (bool, error) {
	if l.machine.Current() != StateDataTransfer {
		return false, ErrNotActive
	}
	if err := l.fire(eventTestAct); err != nil {
		return false, err
	}
	defer func() { _ = l.fire(eventTestDone) }()

	if err := l.tr.Send(ctx, apci.BuildUFrame(apci.TestFRAct)); err != nil {
		return false, err
	}
	err := l.awaitU(ctx, apci.TestFRCon, l.cfg.TestTimeout, false)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrTimeout):
		l.log.Warn().Msg("testfr not confirmed")
		return false, nil
	default:
		return false, err
	}
}

// SendASDU wraps asdu in an I-frame and advances N(S).
func (l *Link) SendASDU(ctx context.Context, asdu []byte) error {
	if !l.Active() {
		return ErrNotActive
	}
	raw, err := apci.BuildIFrame(l.seq.SendSeq, l.seq.RecvSeq, asdu)
	if err != nil {
		return err
	}
	if err := l.tr.Send(ctx, raw); err != nil {
		return err
	}
	l.seq.SendSeq = apci.NextSeq(l.seq.SendSeq)
	return nil
}

// OnIFrameReceived moves N(R) past the frame's N(S).
func (l *Link) OnIFrameReceived(f apci.Frame) {
	l.seq.RecvSeq = apci.NextSeq(f.SendSeq)
}

// SendAck acknowledges everything received so far with an S-frame.
func (l *Link) SendAck(ctx context.Context) error {
	return l.tr.Send(ctx, apci.BuildSFrame(l.seq.RecvSeq))
}

// Deactivate sends STOPDT_ACT and briefly waits for STOPDT_CON. Errors are
// logged, never returned; the link always ends closed.
func (l *Link) Deactivate(ctx context.Context) bool {
	if l.machine.Current() == StateClosed {
		return false
	}
	defer func() { _ = l.fire(eventStop) }()
	if err := l.tr.Send(ctx, apci.BuildUFrame(apci.StopDTAct)); err != nil {
		l.log.Debug().Err(err).Msg("stopdt send failed")
		return false
	}
	if err := l.awaitU(ctx, apci.StopDTCon, l.cfg.StopTimeout, false); err != nil {
		l.log.Debug().Err(err).Msg("stopdt not confirmed")
		return false
	}
	return true
}

// Next returns the next inbound frame within wait. I-frames advance N(R)
// and an inbound TESTFR_ACT is answered before the frame is returned.
func (l *Link) Next(ctx context.Context, wait time.Duration) (apci.Frame, error) {
	if len(l.held) > 0 {
		f := l.held[0]
		l.held = l.held[1:]
		return f, nil
	}
	f, err := l.read(ctx, wait)
	if err != nil {
		return apci.Frame{}, err
	}
	l.accept(ctx, f)
	return f, nil
}

// awaitU waits for one U function. I-frames seen meanwhile are held for
// Next; other frames are only observed. In strict mode any other U-frame
// except an inbound TESTFR_ACT ends the wait with ErrUnexpectedU.
func (l *Link) awaitU(ctx context.Context, fn apci.UFunction, wait time.Duration, strict bool) error {
	deadline := time.Now().Add(wait)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%w: waiting for %s", ErrTimeout, fn)
		}
		f, err := l.read(ctx, remaining)
		if err != nil {
			return err
		}
		l.accept(ctx, f)
		if f.Kind == apci.KindU && f.Function == fn {
			return nil
		}
		if strict && f.Kind == apci.KindU && f.Function != apci.TestFRAct {
			return fmt.Errorf("%w: got %s waiting for %s", ErrUnexpectedU, f.Function, fn)
		}
		if f.Kind == apci.KindI {
			l.held = append(l.held, f)
		}
	}
}

func (l *Link) read(ctx context.Context, wait time.Duration) (apci.Frame, error) {
	deadline := time.Now().Add(wait)
	for len(l.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return apci.Frame{}, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return apci.Frame{}, ErrTimeout
		}
		slice := min(remaining, l.cfg.ReadTimeout)
		p, err := l.tr.Receive(ctx, slice)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				continue
			}
			return apci.Frame{}, err
		}
		l.rxBytes += len(p)
		l.pending = append(l.pending, l.scanner.Feed(p)...)
	}
	f := l.pending[0]
	l.pending = l.pending[1:]
	return f, nil
}

// fire runs a transition detached from the caller's context so cleanup
// transitions still apply after a deadline.
func (l *Link) fire(event string) error {
	return l.machine.Event(context.Background(), event)
}

func (l *Link) accept(ctx context.Context, f apci.Frame) {
	l.log.Trace().Stringer("frame", f).Msg("rx")
	switch f.Kind {
	case apci.KindI:
		l.OnIFrameReceived(f)
	case apci.KindU:
		if f.Function == apci.TestFRAct {
			if err := l.tr.Send(ctx, apci.BuildUFrame(apci.TestFRCon)); err != nil {
				l.log.Debug().Err(err).Msg("testfr_con reply failed")
			}
		}
	}
	if l.OnFrame != nil {
		l.OnFrame(f)
	}
}
