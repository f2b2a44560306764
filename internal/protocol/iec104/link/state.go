package link

import "github.com/looplab/fsm"

// Link phases.
const (
	StateClosed          = "closed"
	StateAwaitingStart   = "awaiting_start_confirm"
	StateDataTransfer    = "data_transfer_active"
	StateAwaitingTestCon = "awaiting_test_confirm"
)

const (
	eventStartAct    = "startdt_act"
	eventStartCon    = "startdt_con"
	eventStartFailed = "startdt_failed"
	eventTestAct     = "testfr_act"
	eventTestDone    = "testfr_done"
	eventStop        = "stop"
)

func newStateMachine(callbacks fsm.Callbacks) *fsm.FSM {
	return fsm.NewFSM(
		StateClosed,
		fsm.Events{
			{Name: eventStartAct, Src: []string{StateClosed}, Dst: StateAwaitingStart},
			{Name: eventStartCon, Src: []string{StateAwaitingStart}, Dst: StateDataTransfer},
			{Name: eventStartFailed, Src: []string{StateAwaitingStart}, Dst: StateClosed},
			{Name: eventTestAct, Src: []string{StateDataTransfer}, Dst: StateAwaitingTestCon},
			{Name: eventTestDone, Src: []string{StateAwaitingTestCon}, Dst: StateDataTransfer},
			{Name: eventStop, Src: []string{StateAwaitingStart, StateDataTransfer, StateAwaitingTestCon}, Dst: StateClosed},
		},
		callbacks,
	)
}

// SessionState is the per-connection sequence bookkeeping.
type SessionState struct {
	SendSeq            uint16
	RecvSeq            uint16
	DataTransferActive bool
}
