package internaldefs

import (
	"strings"
	"testing"

	goVerify "github.com/MrEthical07/goVerify"
)

func TestCounterDefsCoverEveryCounter(t *testing.T) {
	seen := map[goVerify.MetricID]bool{}
	for _, def := range CounterDefs {
		if seen[def.ID] {
			t.Fatalf("duplicate counter id %d", def.ID)
		}
		seen[def.ID] = true
		if !strings.HasPrefix(def.Name, "goverify_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("unexpected counter name %q", def.Name)
		}
	}

	m := goVerify.NewMetrics(goVerify.MetricsConfig{Enabled: true})
	for id := range m.Snapshot().Counters {
		if !seen[id] {
			t.Fatalf("counter %d has no export definition", id)
		}
	}
}

func TestBucketLayoutMatchesEngine(t *testing.T) {
	labels := BucketLabels()
	if got, want := len(labels), len(NormalizeBuckets(nil)); got != want {
		t.Fatalf("labels %d != buckets %d", got, want)
	}
	if labels[0] != "0.005" || labels[len(labels)-1] != "+Inf" {
		t.Fatalf("unexpected labels %v", labels)
	}
	if HistogramBounds()[0] != 0.005 {
		t.Fatalf("unexpected first bound %v", HistogramBounds()[0])
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}
