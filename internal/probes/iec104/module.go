package iec104

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/danmuck/wireprobe/internal/probes"
)

// Module exposes a Prober over HTTP.
type Module struct {
	prober *Prober
}

var _ probes.Module = (*Module)(nil)

func NewModule(p *Prober) *Module {
	return &Module{prober: p}
}

func (m *Module) Name() string {
	return ModuleName
}

func (m *Module) Operations() []string {
	return []string{OpProbe, OpReadData, OpWrite}
}

func (m *Module) RegisterRoutes(r gin.IRoutes) {
	r.POST("/"+OpProbe, m.handleProbe)
	r.POST("/"+OpReadData, m.handleReadData)
	r.POST("/"+OpWrite, m.handleWrite)
}

func (m *Module) handleProbe(c *gin.Context) {
	var req ProbeRequest
	if !bindRequest(c, &req) {
		return
	}
	res, err := m.prober.Connectivity(c.Request.Context(), req)
	respond(c, res, err)
}

func (m *Module) handleReadData(c *gin.Context) {
	var req ReadDataRequest
	if !bindRequest(c, &req) {
		return
	}
	res, err := m.prober.ReadData(c.Request.Context(), req)
	respond(c, res, err)
}

func (m *Module) handleWrite(c *gin.Context) {
	var req WriteRequest
	if !bindRequest(c, &req) {
		return
	}
	res, err := m.prober.WriteCommand(c.Request.Context(), req)
	respond(c, res, err)
}

// bindRequest decodes the body into req. An empty body binds as an empty
// request so field validation reports what is missing.
func bindRequest(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":   false,
			"error":     "invalid request body",
			"errorKind": KindInputValidation,
			"detail":    err.Error(),
		})
		return false
	}
	return true
}

// respond maps validation failures to 400 and unexpected failures to 500.
// Protocol-level failures are a 200 with success false.
func respond(c *gin.Context, res any, err error) {
	switch Classify(err) {
	case KindInputValidation:
		c.JSON(http.StatusBadRequest, res)
	case KindInternal:
		c.JSON(http.StatusInternalServerError, res)
	default:
		c.JSON(http.StatusOK, res)
	}
}
