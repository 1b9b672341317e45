package apistore

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultPageSize is the page limit used when listing without an id.
	DefaultPageSize = 1000
	tracerName      = "github.com/Ratio1/apistore_sdk_go/pkg/apistore"
)

// Option configures a Store.
type Option func(*Store)

// WithName sets the store name used in logs and metric labels.
func WithName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.name = name
		}
	}
}

// WithBackend sets the backend used for all requests.
func WithBackend(b Backend) Option {
	return func(s *Store) {
		s.backend = b
	}
}

// WithHeaders sets store-level default headers. They take precedence over
// per-type and per-call headers.
func WithHeaders(h http.Header) Option {
	return func(s *Store) {
		for k, values := range h {
			for _, v := range values {
				s.headers.Add(k, v)
			}
		}
	}
}

// WithDefaultPageSize overrides DefaultPageSize.
func WithDefaultPageSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.defaultPageSize = n
		}
	}
}

// WithRemoveAfterDelete evicts records from the cache after a successful
// delete.
func WithRemoveAfterDelete(enabled bool) Option {
	return func(s *Store) {
		s.removeAfterDelete = enabled
	}
}

// WithNeverMissing replaces the set of types whose arrival never triggers
// missing-reference notifications. The default is {"error"}.
func WithNeverMissing(types ...string) Option {
	return func(s *Store) {
		s.neverMissing = make(map[string]struct{}, len(types))
		for _, t := range types {
			s.neverMissing[NormalizeType(t)] = struct{}{}
		}
	}
}

// WithMungeRequest installs a hook that may rewrite every request before it
// is sent.
func WithMungeRequest(fn func(*RequestOptions) *RequestOptions) Option {
	return func(s *Store) {
		s.mungeRequest = fn
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics registers the store's collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Store) {
		s.registerer = reg
	}
}

// WithTracer overrides the tracer used for request spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) {
		if t != nil {
			s.tracer = t
		}
	}
}

// Store is the caching and request-coordination engine. A Store is safe for
// concurrent use.
type Store struct {
	name              string
	backend           Backend
	headers           http.Header
	defaultPageSize   int
	removeAfterDelete bool
	neverMissing      map[string]struct{}
	mungeRequest      func(*RequestOptions) *RequestOptions

	logger     *slog.Logger
	registerer prometheus.Registerer
	metrics    *Metrics
	tracer     trace.Tracer

	modelMu   sync.RWMutex
	models    map[string]*TypeConfig
	fallbacks map[string]*TypeConfig

	mu    sync.Mutex
	state cacheState

	queue *findQueue
}

// New constructs a Store. Most callers obtain stores through a Registry so
// that each name maps to one instance.
func New(opts ...Option) *Store {
	s := &Store{
		name:            "store",
		headers:         make(http.Header),
		defaultPageSize: DefaultPageSize,
		neverMissing:    map[string]struct{}{TypeError: {}},
		logger:          slog.Default(),
		tracer:          otel.Tracer(tracerName),
		models:          builtinModels(),
		fallbacks:       make(map[string]*TypeConfig),
		state:           newCacheState(),
		queue:           newFindQueue(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("store", s.name)
	if s.registerer != nil {
		m, err := newMetrics(s.registerer, s.name, s.queue.Waiters)
		if err != nil {
			s.logger.Warn("apistore: metrics disabled", "error", err)
		} else {
			s.metrics = m
		}
	}
	return s
}

// Name returns the store name.
func (s *Store) Name() string {
	return s.name
}

// Backend returns the configured backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Metrics returns the store's collectors, or nil when metrics are disabled.
func (s *Store) Metrics() *Metrics {
	return s.metrics
}

func (s *Store) isNeverMissing(t string) bool {
	_, ok := s.neverMissing[t]
	return ok
}

// PendingFinds returns the number of callers waiting on in-flight fetches.
func (s *Store) PendingFinds() int {
	return s.queue.Waiters()
}
