package otel

import (
	"context"
	"sync"
	"testing"

	goVerify "github.com/MrEthical07/goVerify"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goVerify.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goVerify.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goVerify.MetricsSnapshot{
		Counters:   make(map[goVerify.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goVerify.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: goVerify.MetricsSnapshot{
			Counters: map[goVerify.MetricID]uint64{
				goVerify.MetricCodeVerifySuccess: 3,
			},
			Histograms: map[goVerify.MetricID][]uint64{
				goVerify.MetricSubmitLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(provider.Meter("goverify-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	metrics := collect(t, reader)

	sum, ok := metrics["goverify_code_verify_success_total"].Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 3 {
		t.Fatalf("unexpected verify success data %+v", metrics["goverify_code_verify_success_total"].Data)
	}

	count, ok := metrics["goverify_submit_latency_seconds_count"].Data.(metricdata.Gauge[int64])
	if !ok || count.DataPoints[0].Value != 8 {
		t.Fatalf("unexpected histogram count %+v", metrics["goverify_submit_latency_seconds_count"].Data)
	}
	buckets, ok := metrics["goverify_submit_latency_seconds_bucket"].Data.(metricdata.Gauge[int64])
	if !ok || len(buckets.DataPoints) != 8 {
		t.Fatalf("unexpected buckets %+v", metrics["goverify_submit_latency_seconds_bucket"].Data)
	}
	byBound := map[string]int64{}
	for _, dp := range buckets.DataPoints {
		le, _ := dp.Attributes.Value("le")
		byBound[le.AsString()] = dp.Value
	}
	if byBound["0.005"] != 1 || byBound["0.1"] != 5 || byBound["+Inf"] != 8 {
		t.Fatalf("unexpected cumulative buckets %v", byBound)
	}

	dropped, ok := metrics["goverify_audit_dropped_total"].Data.(metricdata.Sum[int64])
	if !ok || dropped.DataPoints[0].Value != 1 {
		t.Fatalf("unexpected audit dropped %+v", metrics["goverify_audit_dropped_total"].Data)
	}
}

func TestExporterRejectsNil(t *testing.T) {
	_, provider := newReader()
	meter := provider.Meter("goverify-test")

	if _, err := NewExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: goVerify.MetricsSnapshot{
			Counters: map[goVerify.MetricID]uint64{
				goVerify.MetricCodeRequest: 1,
			},
			Histograms: map[goVerify.MetricID][]uint64{},
		},
	}

	exp, err := NewExporterFromSource(provider.Meter("goverify-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() { _ = exp.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goVerify.MetricCodeRequest] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
