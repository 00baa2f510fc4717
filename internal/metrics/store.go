package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mesh-intelligence/stockroom/pkg/types"
)

// Store mutation metrics.
var (
	StoreMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stockroom",
			Name:      "store_mutations_total",
			Help:      "Total number of store mutations by operation and result",
		},
		[]string{"op", "result"},
	)

	StoreMutationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stockroom",
			Name:      "store_mutation_duration_seconds",
			Help:      "Store mutation duration in seconds, persistence included",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"op"},
	)

	StoreRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "stockroom",
			Name:      "store_records",
			Help:      "Number of records currently held by the store",
		},
	)
)

func init() {
	prometheus.MustRegister(StoreMutationsTotal)
	prometheus.MustRegister(StoreMutationDuration)
	prometheus.MustRegister(StoreRecords)
}

// Result labels.
const (
	ResultOK          = "ok"
	ResultValidation  = "validation"
	ResultNotFound    = "not_found"
	ResultConflict    = "conflict"
	ResultPersistence = "persistence"
	ResultError       = "error"
)

// ObserveMutation records one store mutation that started at start.
func ObserveMutation(op string, start time.Time, err error) {
	StoreMutationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	StoreMutationsTotal.WithLabelValues(op, Result(err)).Inc()
}

// Result maps a store error to its metric label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, types.ErrValidation), errors.Is(err, types.ErrInvalidDefinition),
		errors.Is(err, types.ErrInvalidName), errors.Is(err, types.ErrUnknownCharacteristic):
		return ResultValidation
	case errors.Is(err, types.ErrNotFound), errors.Is(err, types.ErrUnknownGroup),
		errors.Is(err, types.ErrNothingToUndo):
		return ResultNotFound
	case errors.Is(err, types.ErrDuplicateName), errors.Is(err, types.ErrDuplicateGroup),
		errors.Is(err, types.ErrInUse):
		return ResultConflict
	case errors.Is(err, types.ErrPersistence):
		return ResultPersistence
	default:
		return ResultError
	}
}
