package apistore

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of one store. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	CacheHits        *prometheus.CounterVec
	Requests         *prometheus.CounterVec
	DedupJoins       prometheus.Counter
	RecordsTypeified prometheus.Counter
	MissingNotified  prometheus.Counter
	Waiters          prometheus.GaugeFunc
}

func newMetrics(reg prometheus.Registerer, store string, waiters func() int) (*Metrics, error) {
	labels := prometheus.Labels{"store": store}
	m := &Metrics{
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "apistore",
			Name:        "cache_hits_total",
			Help:        "Fetches answered from the cache without network access, by kind (all, id).",
			ConstLabels: labels,
		}, []string{"kind"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "apistore",
			Name:        "requests_total",
			Help:        "Requests sent through the backend, by method and outcome.",
			ConstLabels: labels,
		}, []string{"method", "outcome"}),
		DedupJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "apistore",
			Name:        "dedup_joins_total",
			Help:        "Fetches that attached to an identical in-flight request.",
			ConstLabels: labels,
		}),
		RecordsTypeified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "apistore",
			Name:        "records_typeified_total",
			Help:        "Records hydrated from response bodies.",
			ConstLabels: labels,
		}),
		MissingNotified: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "apistore",
			Name:        "missing_notifications_total",
			Help:        "Dependents notified that a referenced record arrived.",
			ConstLabels: labels,
		}),
		Waiters: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   "apistore",
			Name:        "inflight_waiters",
			Help:        "Callers currently attached to in-flight fetches.",
			ConstLabels: labels,
		}, func() float64 { return float64(waiters()) }),
	}
	var err error
	if m.CacheHits, err = register(reg, m.CacheHits); err != nil {
		return nil, err
	}
	if m.Requests, err = register(reg, m.Requests); err != nil {
		return nil, err
	}
	if m.DedupJoins, err = register(reg, m.DedupJoins); err != nil {
		return nil, err
	}
	if m.RecordsTypeified, err = register(reg, m.RecordsTypeified); err != nil {
		return nil, err
	}
	if m.MissingNotified, err = register(reg, m.MissingNotified); err != nil {
		return nil, err
	}
	if m.Waiters, err = register(reg, m.Waiters); err != nil {
		return nil, err
	}
	return m, nil
}

// register returns the already-registered collector when an identical one
// exists, so two stores sharing a name share their series.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) cacheHit(kind string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(kind).Inc()
}

func (m *Metrics) request(method, outcome string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) dedupJoin() {
	if m == nil {
		return
	}
	m.DedupJoins.Inc()
}

func (m *Metrics) typeified() {
	if m == nil {
		return
	}
	m.RecordsTypeified.Inc()
}

func (m *Metrics) missingNotified(n int) {
	if m == nil || n == 0 {
		return
	}
	m.MissingNotified.Add(float64(n))
}
