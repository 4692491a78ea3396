package metrics

import (
	"strings"
	"testing"
)

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	var b strings.Builder
	snap := h.Snapshot()
	var cumulative uint64
	for i := range snap.buckets {
		cumulative += snap.counts[i]
		b.WriteString(formatFloat(snap.buckets[i]))
		b.WriteString("=")
		b.WriteString(formatFloat(float64(cumulative)))
		b.WriteString(" ")
	}
	if got := b.String(); got != "10=1 100=2 " {
		t.Fatalf("cumulative buckets = %q", got)
	}
	if snap.count != 3 || snap.sum != 555 {
		t.Fatalf("count=%d sum=%v", snap.count, snap.sum)
	}
}

func TestRenderIncludesCounters(t *testing.T) {
	IncSessionStarted()
	IncTrackingFallback()
	ObserveRemoteCallMs(120)

	out := Render()
	for _, want := range []string{
		"# TYPE intake_sessions_started_total counter",
		"intake_tracking_fallback_total ",
		"intake_remote_call_ms_bucket{le=\"250\"}",
		"intake_remote_call_ms_bucket{le=\"+Inf\"}",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Render missing %q", want)
		}
	}
}
