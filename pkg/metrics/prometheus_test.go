package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordIteration(0.01)
	r.RecordIteration(0.02)
	r.RecordState(60.1, 49.9, -300)
	r.RecordError("sink")
	r.RecordHalt("out_of_phase")
	r.RecordSent("kafka")

	if got := testutil.ToFloat64(r.iterations); got != 2 {
		t.Fatalf("iterations %v", got)
	}
	if got := testutil.ToFloat64(r.frequency); got != 60.1 {
		t.Fatalf("frequency %v", got)
	}
	if got := testutil.ToFloat64(r.errorsTotal.WithLabelValues("sink")); got != 1 {
		t.Fatalf("errors %v", got)
	}
	if got := testutil.ToFloat64(r.haltsTotal.WithLabelValues("out_of_phase")); got != 1 {
		t.Fatalf("halts %v", got)
	}
}

func TestRecordersOnSeparateRegistries(t *testing.T) {
	NewWithRegisterer(prometheus.NewRegistry())
	NewWithRegisterer(prometheus.NewRegistry())
}
