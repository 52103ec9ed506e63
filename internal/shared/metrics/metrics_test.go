package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderIncludesChatCounters(t *testing.T) {
	before := fallbackTotal.Load()
	IncFallback()
	ObserveStreamDurationMs(120)
	ObserveStreamDurationMs(-5)

	out := Render()
	for _, name := range []string{
		"chat_turns_total",
		"chat_stream_failure_total",
		"chat_fallback_failure_total",
		"uploads_failed_total",
		"chat_stream_duration_ms_bucket{le=\"+Inf\"}",
	} {
		if !strings.Contains(out, name) {
			t.Fatalf("missing %s in:\n%s", name, out)
		}
	}
	if fallbackTotal.Load() != before+1 {
		t.Fatalf("expected fallback counter to advance")
	}
}

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	snap := h.Snapshot()
	if snap.count != 3 || snap.sum != 555 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	var buf bytes.Buffer
	writeHistogram(&buf, "h", "help", snap)
	out := buf.String()
	for _, line := range []string{`h_bucket{le="10"} 1`, `h_bucket{le="100"} 2`, `h_bucket{le="+Inf"} 3`, "h_sum 555"} {
		if !strings.Contains(out, line) {
			t.Fatalf("missing %q in:\n%s", line, out)
		}
	}
}
