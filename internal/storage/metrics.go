package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer captures telemetry for blob operations.
type Observer interface {
	RecordUpload(duration time.Duration, sizeBytes uint64, err error)
	RecordDelete(duration time.Duration, err error)
	RecordOpen(duration time.Duration, err error)
}

// PrometheusObserver exports blob store metrics to Prometheus.
type PrometheusObserver struct {
	opDuration      *prometheus.HistogramVec
	operationErrors *prometheus.CounterVec
	uploadBytes     prometheus.Counter
}

// NewPrometheusObserver registers upload/delete/open metrics.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "storefront_media"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	observer := &PrometheusObserver{
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency for blob store operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"driver", "operation"}),
		operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Count of blob store failures.",
		}, []string{"driver", "operation"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploaded_bytes_total",
			Help:      "Cumulative payload size successfully written to the blob store.",
		}),
	}
	if err := reg.Register(observer.opDuration); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register storage histogram: %w", err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("register storage histogram: %w", err)
		}
		observer.opDuration = existing
	}
	if err := reg.Register(observer.operationErrors); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register storage counter: %w", err)
		}
		existing, ok := are.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("register storage counter: %w", err)
		}
		observer.operationErrors = existing
	}
	if err := reg.Register(observer.uploadBytes); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, fmt.Errorf("register uploaded bytes counter: %w", err)
		}
		existing, ok := are.ExistingCollector.(prometheus.Counter)
		if !ok {
			return nil, fmt.Errorf("register uploaded bytes counter: %w", err)
		}
		observer.uploadBytes = existing
	}
	return observer, nil
}

// ForDriver labels every observation with the backing driver.
func (o *PrometheusObserver) ForDriver(d Driver) Observer {
	return driverObserver{o: o, driver: string(d)}
}

type driverObserver struct {
	o      *PrometheusObserver
	driver string
}

func (d driverObserver) RecordUpload(duration time.Duration, sizeBytes uint64, err error) {
	if d.o == nil {
		return
	}
	d.o.opDuration.WithLabelValues(d.driver, "upload").Observe(duration.Seconds())
	if err != nil {
		d.o.operationErrors.WithLabelValues(d.driver, "upload").Inc()
		return
	}
	d.o.uploadBytes.Add(float64(sizeBytes))
}

func (d driverObserver) RecordDelete(duration time.Duration, err error) {
	d.record("delete", duration, err)
}

func (d driverObserver) RecordOpen(duration time.Duration, err error) {
	// a miss is a normal outcome for open, not a failure
	if errors.Is(err, ErrObjectNotFound) {
		err = nil
	}
	d.record("open", duration, err)
}

func (d driverObserver) record(op string, duration time.Duration, err error) {
	if d.o == nil {
		return
	}
	d.o.opDuration.WithLabelValues(d.driver, op).Observe(duration.Seconds())
	if err != nil {
		d.o.operationErrors.WithLabelValues(d.driver, op).Inc()
	}
}

type nopObserver struct{}

func (nopObserver) RecordUpload(time.Duration, uint64, error) {}

func (nopObserver) RecordDelete(time.Duration, error) {}

func (nopObserver) RecordOpen(time.Duration, error) {}

// Instrument wraps store so every call is reported to observer.
func Instrument(store Store, observer Observer) Store {
	if observer == nil {
		observer = nopObserver{}
	}
	return &instrumentedStore{next: store, observer: observer}
}

type instrumentedStore struct {
	next     Store
	observer Observer
}

func (s *instrumentedStore) Driver() Driver { return s.next.Driver() }

func (s *instrumentedStore) Put(ctx context.Context, r io.Reader, opts PutOptions) (MediaReference, error) {
	start := time.Now()
	ref, err := s.next.Put(ctx, r, opts)
	var size uint64
	if ref.SizeBytes > 0 {
		size = uint64(ref.SizeBytes)
	}
	s.observer.RecordUpload(time.Since(start), size, err)
	return ref, err
}

func (s *instrumentedStore) Remove(ctx context.Context, publicRef string) (bool, error) {
	start := time.Now()
	removed, err := s.next.Remove(ctx, publicRef)
	s.observer.RecordDelete(time.Since(start), err)
	return removed, err
}

func (s *instrumentedStore) Open(ctx context.Context, publicRef string) (*Object, error) {
	start := time.Now()
	obj, err := s.next.Open(ctx, publicRef)
	s.observer.RecordOpen(time.Since(start), err)
	return obj, err
}
