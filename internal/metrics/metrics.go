// Package metrics collects and exposes Prometheus metrics for the board.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vonshlovens/roomboard/internal/canvas"
)

// Outcome labels of board operations
const (
	OutcomeOK                = "ok"
	OutcomeNotFound          = "not_found"
	OutcomeCycle             = "cycle"
	OutcomeInvalidTransition = "invalid_transition"
	OutcomeOutOfScope        = "out_of_scope"
	OutcomeInvalid           = "invalid"
	OutcomeError             = "error"
)

// Collector records board, sync and HTTP metrics.
type Collector struct {
	operations     *prometheus.CounterVec
	changes        *prometheus.CounterVec
	entities       *prometheus.GaugeVec
	layoutDuration prometheus.Histogram
	layoutSize     prometheus.Histogram
	pushes         *prometheus.CounterVec
	imports        *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomboard_operations_total",
			Help: "Board operations by name and outcome",
		}, []string{"op", "outcome"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomboard_changes_total",
			Help: "Committed board changes by kind",
		}, []string{"kind"}),
		entities: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "roomboard_entities",
			Help: "Entities held by the board",
		}, []string{"kind"}),
		layoutDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "roomboard_layout_duration_seconds",
			Help:    "Time spent in auto-layout",
			Buckets: prometheus.DefBuckets,
		}),
		layoutSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "roomboard_layout_entities",
			Help:    "Entities positioned per auto-layout run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomboard_sync_pushes_total",
			Help: "Entity pushes to the store by kind and result",
		}, []string{"kind", "result"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomboard_inbox_imports_total",
			Help: "Inbox files processed by result",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roomboard_http_status_total",
			Help: "HTTP responses by status code",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.operations,
		c.changes,
		c.entities,
		c.layoutDuration,
		c.layoutSize,
		c.pushes,
		c.imports,
		c.httpStatus,
	)

	return c
}

// Outcome classifies an operation error into a metric label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, canvas.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, canvas.ErrCycle):
		return OutcomeCycle
	case errors.Is(err, canvas.ErrInvalidTransition):
		return OutcomeInvalidTransition
	case errors.Is(err, canvas.ErrOutOfScope):
		return OutcomeOutOfScope
	case errors.Is(err, canvas.ErrInvalidDraft):
		return OutcomeInvalid
	default:
		return OutcomeError
	}
}

// RecordOp records the outcome of a board operation.
func (c *Collector) RecordOp(op string, err error) {
	c.operations.WithLabelValues(op, Outcome(err)).Inc()
}

// ObserveLayout records one auto-layout run.
func (c *Collector) ObserveLayout(entities int, d time.Duration) {
	c.layoutDuration.Observe(d.Seconds())
	c.layoutSize.Observe(float64(entities))
}

// ObservePush records the result of a push to the store.
func (c *Collector) ObservePush(kind, result string) {
	c.pushes.WithLabelValues(kind, result).Inc()
}

// RecordImport records one processed inbox file.
func (c *Collector) RecordImport(result string) {
	c.imports.WithLabelValues(result).Inc()
}

// RecordHTTPStatus records an HTTP response status.
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// WatchBoard counts changes of b and keeps the entity gauges current until
// the returned function is called.
func (c *Collector) WatchBoard(b *canvas.Board) (cancel func()) {
	c.setSize(b)
	return b.Subscribe(func(ch canvas.Change) {
		c.changes.WithLabelValues(string(ch.Kind)).Inc()
		switch ch.Kind {
		case canvas.ChangeLoad, canvas.ChangeReconcile, canvas.ChangeCreate, canvas.ChangeForget:
			c.setSize(b)
		}
	})
}

func (c *Collector) setSize(b *canvas.Board) {
	items, folders := b.Len()
	c.entities.WithLabelValues("item").Set(float64(items))
	c.entities.WithLabelValues("folder").Set(float64(folders))
}

// Handler returns the HTTP handler Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
