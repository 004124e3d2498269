package metrics

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "geometry_"

	resultSuccess = "success"
	resultError   = "error"
	resultInvalid = "invalid"
	resultDenied  = "denied"

	conversionValue = "value"
	conversionNone  = "none"
)

var (
	registerOnce sync.Once

	uploadTotal    *prometheus.CounterVec
	uploadLatency  *prometheus.HistogramVec
	uploadStations prometheus.Histogram

	deleteTotal *prometheus.CounterVec

	conversionTotal *prometheus.CounterVec
)

// StationCounter reports how many stations are stored.
type StationCounter interface {
	CountAll(ctx context.Context) (int64, error)
}

// Init registers geometry metrics and the store-backed gauge.
func Init(counter StationCounter, logger *log.Logger) {
	registerOnce.Do(func() {
		uploadTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "upload_total",
				Help: "Total geometry uploads by format and result",
			},
			[]string{"format", "result"},
		)
		uploadLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "upload_latency_seconds",
				Help:    "Geometry upload latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)
		uploadStations = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "upload_stations",
				Help:    "Stations written per successful upload",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		)
		deleteTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "delete_total",
				Help: "Total geometry deletes by result",
			},
			[]string{"result"},
		)
		conversionTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "conversion_total",
				Help: "Total depth conversions by kind and result",
			},
			[]string{"kind", "result"},
		)

		prometheus.MustRegister(
			uploadTotal,
			uploadLatency,
			uploadStations,
			deleteTotal,
			conversionTotal,
		)

		if counter != nil {
			registerStoreMetrics(counter, logger)
		}
	})
}

// ObserveUpload records upload duration, result and station count.
func ObserveUpload(format, result string, stations int, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if uploadTotal != nil {
		uploadTotal.WithLabelValues(format, result).Inc()
	}
	if uploadLatency != nil {
		uploadLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
	if uploadStations != nil && result == resultSuccess {
		uploadStations.Observe(float64(stations))
	}
}

// IncDelete increments the delete counter.
func IncDelete(result string) {
	if result == "" {
		result = resultSuccess
	}
	if deleteTotal != nil {
		deleteTotal.WithLabelValues(result).Inc()
	}
}

// IncConversion increments the conversion counter.
func IncConversion(kind, result string) {
	if kind == "" {
		kind = "unknown"
	}
	if conversionTotal != nil {
		conversionTotal.WithLabelValues(kind, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultInvalid = resultInvalid
	ResultDenied  = resultDenied

	ConversionValue = conversionValue
	ConversionNone  = conversionNone
)
