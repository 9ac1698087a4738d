package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, vec *prometheus.CounterVec, labels prometheus.Labels) float64 {
	t.Helper()
	c, err := vec.GetMetricWith(labels)
	if err != nil {
		t.Fatalf("GetMetricWith: %v", err)
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestObserveStageRecordsOkOutcome(t *testing.T) {
	before := counterValue(t, StageRuns, prometheus.Labels{"stage": "import", "outcome": "ok"})

	err := ObserveStage("import", func() error { return nil })
	if err != nil {
		t.Fatalf("ObserveStage: %v", err)
	}

	after := counterValue(t, StageRuns, prometheus.Labels{"stage": "import", "outcome": "ok"})
	if after != before+1 {
		t.Fatalf("expected ok counter to increment by 1, got %v -> %v", before, after)
	}
}

func TestObserveStageRecordsErrorOutcomeAndPropagates(t *testing.T) {
	before := counterValue(t, StageRuns, prometheus.Labels{"stage": "export", "outcome": "error"})
	boom := errors.New("boom")

	err := ObserveStage("export", func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected ObserveStage to propagate the error, got %v", err)
	}

	after := counterValue(t, StageRuns, prometheus.Labels{"stage": "export", "outcome": "error"})
	if after != before+1 {
		t.Fatalf("expected error counter to increment by 1, got %v -> %v", before, after)
	}
}
