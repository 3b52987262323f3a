package observability

import (
	"testing"
	"time"

	"github.com/neuroforge/trainlink/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
	RecordCommand("train", "completed", 24*time.Millisecond)
	RecordTrainingJob("completed")
	ConnectionOpened()
	ConnectionClosed()
}
