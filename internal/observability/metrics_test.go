package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/viewctl/viewctl/internal/testutil/testlog"
)

func TestRegisterMetricsIsIdempotent(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()
}

func TestRecordersCoverEveryInstrument(t *testing.T) {
	testlog.Start(t)
	RecordHTTPRequest("host-a", "GET", "/health", 200, 12*time.Millisecond)
	RecordCommandEnqueued("immediate")
	RecordCommandOutcome("success", 24*time.Millisecond)
	RecordSweep(2)
	RecordBridgeConnect()

	SetQueueDepth(3)
	if got := testutil.ToFloat64(queueDepth); got != 3 {
		t.Fatalf("queue depth gauge = %v, want 3", got)
	}
	SetBridgeUp(true)
	if got := testutil.ToFloat64(bridgeUp); got != 1 {
		t.Fatalf("bridge up gauge = %v, want 1", got)
	}
	SetBridgeUp(false)
	if got := testutil.ToFloat64(bridgeUp); got != 0 {
		t.Fatalf("bridge up gauge = %v, want 0", got)
	}
}
