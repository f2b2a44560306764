package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/danmuck/wireprobe/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("probe-a", "GET", "/health", 200, 12*time.Millisecond)
	before := testutil.ToFloat64(probeRuns.WithLabelValues("iec104", "read-data", "success"))
	RecordProbe("iec104", "read-data", "success", 40*time.Millisecond, 3)
	RecordProbe("iec104", "read-data", "success", 10*time.Millisecond, 0)

	if got := testutil.ToFloat64(probeRuns.WithLabelValues("iec104", "read-data", "success")); got != before+2 {
		t.Fatalf("expected runs to grow by 2, got %v -> %v", before, got)
	}
	if got := testutil.ToFloat64(probeObjects.WithLabelValues("iec104", "read-data")); got < 3 {
		t.Fatalf("expected at least 3 objects, got %v", got)
	}
	testlog.Logf("observability/metrics: registration idempotent and recording paths executed")
}
