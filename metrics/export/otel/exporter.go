package otel

import (
	"context"
	"errors"
	"fmt"

	goVerify "github.com/MrEthical07/goVerify"
	"github.com/MrEthical07/goVerify/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goVerify.MetricsSnapshot
	AuditDropped() uint64
}

// observeFunc reports one instrument from a snapshot taken once per
// collection.
type observeFunc func(metric.Observer, goVerify.MetricsSnapshot)

// Exporter publishes engine metrics as observable instruments on a
// caller-supplied meter. Counters map one to one. A latency histogram
// becomes a "<name>_bucket" gauge carrying cumulative counts under an "le"
// attribute, plus a "<name>_count" gauge.
type Exporter struct {
	registration metric.Registration
}

// NewExporter registers instruments on meter that read from engine.
func NewExporter(meter metric.Meter, engine *goVerify.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	var (
		instruments []metric.Observable
		observers   []observeFunc
	)

	for _, def := range internaldefs.CounterDefs {
		counter, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		id := def.ID
		instruments = append(instruments, counter)
		observers = append(observers, func(o metric.Observer, s goVerify.MetricsSnapshot) {
			o.ObserveInt64(counter, int64(s.Counters[id]))
		})
	}

	buckets := bucketOptions()
	for _, def := range internaldefs.HistogramDefs {
		bucket, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."),
			metric.WithUnit("s"),
		)
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help+" Sample count."))
		if err != nil {
			return nil, fmt.Errorf("histogram %s: %w", def.Name, err)
		}
		id := def.ID
		instruments = append(instruments, bucket, count)
		observers = append(observers, func(o metric.Observer, s goVerify.MetricsSnapshot) {
			raw, ok := s.Histograms[id]
			if !ok {
				return
			}
			cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
			for i, opt := range buckets {
				o.ObserveInt64(bucket, int64(cumulative[i]), opt)
			}
			o.ObserveInt64(count, int64(cumulative[len(cumulative)-1]))
		})
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	instruments = append(instruments, dropped)
	observers = append(observers, func(o metric.Observer, _ goVerify.MetricsSnapshot) {
		o.ObserveInt64(dropped, int64(source.AuditDropped()))
	})

	registration, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		snapshot := source.MetricsSnapshot()
		for _, observe := range observers {
			observe(o, snapshot)
		}
		return nil
	}, instruments...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return &Exporter{registration: registration}, nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

func bucketOptions() []metric.ObserveOption {
	labels := internaldefs.BucketLabels()
	out := make([]metric.ObserveOption, len(labels))
	for i, le := range labels {
		out[i] = metric.WithAttributeSet(attribute.NewSet(attribute.String("le", le)))
	}
	return out
}
