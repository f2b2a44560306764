package observability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/danmuck/wireprobe/internal/testutil/testlog"
)

func TestRequestLoggerAndMetricsMiddleware(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestLogger(zerolog.New(&buf)))
	r.Use(RequestMetricsMiddleware("mw-node"))
	r.POST("/api/x/:id", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	req := httptest.NewRequest(http.MethodPost, "/api/x/7", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["level"] != "warn" || line["path"] != "/api/x/:id" || line["status"] != float64(400) || line["module"] != "x" {
		t.Fatalf("unexpected log line: %#v", line)
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("mw-node", "POST", "/api/x/:id", "400")); got != 1 {
		t.Fatalf("expected one recorded request, got %v", got)
	}
}

func TestModuleOf(t *testing.T) {
	cases := map[string]string{
		"/api/iec104/read-data": "iec104",
		"/api/iec104":           "iec104",
		"/metrics":              "",
		"/apiary":               "",
	}
	for route, want := range cases {
		if got := moduleOf(route); got != want {
			t.Fatalf("moduleOf(%q) = %q, want %q", route, got, want)
		}
	}
}
