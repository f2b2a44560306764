package iec104

import (
	"github.com/danmuck/wireprobe/internal/protocol/iec104/apci"
	"github.com/danmuck/wireprobe/internal/protocol/iec104/asdu"
)

// Failure is embedded in every result.
type Failure struct {
	Error     string `json:"error,omitempty"`
	ErrorKind Kind   `json:"errorKind,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

func failure(err error) Failure {
	if err == nil {
		return Failure{}
	}
	return Failure{Error: message(err), ErrorKind: Classify(err), Detail: err.Error()}
}

// FrameInfo is a diagnostic view of one inbound frame.
type FrameInfo struct {
	Kind        string `json:"kind"`
	Description string `json:"description"`
	TypeID      uint8  `json:"typeId,omitempty"`
	TypeName    string `json:"typeName,omitempty"`
}

func describeFrame(f apci.Frame) FrameInfo {
	info := FrameInfo{Kind: f.Kind.String(), Description: f.String()}
	if f.Kind == apci.KindI && len(f.ASDU) > 0 {
		t := asdu.TypeID(f.ASDU[0])
		info.TypeID = uint8(t)
		info.TypeName = t.String()
	}
	return info
}

// LinkStats tells a silent peer (nothing received) apart from one speaking
// another protocol (bytes received but dropped before any frame).
type LinkStats struct {
	BytesReceived int `json:"bytesReceived"`
	BytesDropped  int `json:"bytesDropped"`
}

type ConnectivityResult struct {
	Success          bool        `json:"success"`
	StartDTConfirmed bool        `json:"startdtConfirmed"`
	TestFRConfirmed  bool        `json:"testfrConfirmed"`
	StopDTConfirmed  bool        `json:"stopdtConfirmed"`
	FramesReceived   []FrameInfo `json:"framesReceived"`
	RTT              int64       `json:"rtt"`
	LinkStats
	Failure
}

// ObjectRecord is one decoded information object with its ASDU context.
type ObjectRecord struct {
	TypeID       uint8           `json:"typeId"`
	TypeName     string          `json:"typeName"`
	CA           uint16          `json:"ca"`
	IOA          uint32          `json:"ioa"`
	Cause        uint8           `json:"cot"`
	Value        asdu.Value      `json:"value"`
	Quality      uint8           `json:"quality"`
	QualityFlags []string        `json:"qualityFlags"`
	Timestamp    *asdu.Timestamp `json:"timestamp,omitempty"`
}

func recordsOf(a asdu.ASDU) []ObjectRecord {
	out := make([]ObjectRecord, 0, len(a.Objects))
	for _, obj := range a.Objects {
		out = append(out, ObjectRecord{
			TypeID:       uint8(a.TypeID),
			TypeName:     a.TypeID.String(),
			CA:           a.CommonAddr,
			IOA:          obj.IOA,
			Cause:        uint8(a.Cause),
			Value:        obj.Value,
			Quality:      uint8(obj.Quality),
			QualityFlags: obj.Quality.Flags(),
			Timestamp:    obj.Timestamp,
		})
	}
	return out
}

type ReadResult struct {
	Success                 bool           `json:"success"`
	ASDUs                   []ObjectRecord `json:"asdus"`
	Count                   int            `json:"count"`
	RTT                     int64          `json:"rtt"`
	InterrogationConfirmed  bool           `json:"interrogationConfirmed"`
	InterrogationTerminated bool           `json:"interrogationTerminated"`
	TruncatedASDUs          int            `json:"truncatedAsdus"`
	UnknownASDUs            int            `json:"unknownAsdus"`
	LinkStats
	Failure
}

type WriteResult struct {
	Success             bool  `json:"success"`
	ActivationConfirmed bool  `json:"activationConfirmed"`
	AckTypeID           uint8 `json:"ackTypeId"`
	AckCOT              uint8 `json:"ackCot"`
	AckNegative         bool  `json:"ackNegative"`
	RTT                 int64 `json:"rtt"`
	LinkStats
	Failure
}
