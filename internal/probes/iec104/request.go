package iec104

import (
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/wireprobe/internal/protocol/iec104/asdu"
)

const (
	DefaultPort          = 2404
	DefaultCommonAddress = 1

	defaultProbeTimeoutMS = 10000
	defaultDataTimeoutMS  = 15000
)

const (
	CommandSingle = "single"
	CommandDouble = "double"
)

// Target is the endpoint shared by every request.
type Target struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	Timeout int    `json:"timeout"`
}

func (t *Target) normalize(defaultTimeout int) error {
	t.Host = strings.TrimSpace(t.Host)
	if t.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInputValidation)
	}
	if t.Port == 0 {
		t.Port = DefaultPort
	}
	if t.Port < 1 || t.Port > 65535 {
		return fmt.Errorf("%w: port out of range: %d", ErrInputValidation, t.Port)
	}
	if t.Timeout == 0 {
		t.Timeout = defaultTimeout
	}
	if t.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInputValidation)
	}
	return nil
}

func (t Target) deadline() time.Duration {
	return time.Duration(t.Timeout) * time.Millisecond
}

type ProbeRequest struct {
	Target
}

func (r *ProbeRequest) Normalize() error {
	return r.Target.normalize(defaultProbeTimeoutMS)
}

type ReadDataRequest struct {
	Target
	CommonAddress int `json:"commonAddress"`
}

func (r *ReadDataRequest) Normalize() error {
	if err := r.Target.normalize(defaultDataTimeoutMS); err != nil {
		return err
	}
	return normalizeCommonAddress(&r.CommonAddress)
}

type WriteRequest struct {
	Target
	CommonAddress int    `json:"commonAddress"`
	IOA           *int64 `json:"ioa"`
	CommandType   string `json:"commandType"`
	Value         int    `json:"value"`
}

func (r *WriteRequest) Normalize() error {
	if err := r.Target.normalize(defaultDataTimeoutMS); err != nil {
		return err
	}
	if err := normalizeCommonAddress(&r.CommonAddress); err != nil {
		return err
	}
	if r.IOA == nil {
		return fmt.Errorf("%w: missing ioa", ErrInputValidation)
	}
	if *r.IOA < 0 || *r.IOA > asdu.MaxIOA {
		return fmt.Errorf("%w: ioa out of range: %d", ErrInputValidation, *r.IOA)
	}
	r.CommandType = strings.ToLower(strings.TrimSpace(r.CommandType))
	if r.CommandType == "" {
		r.CommandType = CommandSingle
	}
	_, err := r.command()
	return err
}

// command renders the control ASDU; invalid values are input errors.
func (r WriteRequest) command() ([]byte, error) {
	ca := uint16(r.CommonAddress)
	ioa := uint32(*r.IOA)
	var (
		out []byte
		err error
	)
	switch r.CommandType {
	case CommandSingle:
		out, err = asdu.SingleCommand(ca, ioa, r.Value)
	case CommandDouble:
		out, err = asdu.DoubleCommand(ca, ioa, r.Value)
	default:
		return nil, fmt.Errorf("%w: unknown commandType %q", ErrInputValidation, r.CommandType)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInputValidation, err)
	}
	return out, nil
}

func normalizeCommonAddress(ca *int) error {
	if *ca == 0 {
		*ca = DefaultCommonAddress
	}
	if *ca < 1 || *ca > 0xFFFF {
		return fmt.Errorf("%w: commonAddress out of range: %d", ErrInputValidation, *ca)
	}
	return nil
}
