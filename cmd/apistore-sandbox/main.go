package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Ratio1/apistore_sdk_go/internal/config"
	"github.com/Ratio1/apistore_sdk_go/internal/devseed"
	"github.com/Ratio1/apistore_sdk_go/pkg/apistore/mock"
)

type failConfig struct {
	rate float64
	code int
}

func main() {
	addr := flag.String("addr", ":8787", "listen address")
	seedPath := flag.String("seed", "", "path to YAML/JSON seed with types and routes")
	pageSize := flag.Int("page-size", 100, "records per emulated collection page")
	latency := flag.Duration("latency", 0, "artificial latency to inject per request")
	fail := flag.String("fail", "", "failure injection (rate=<float>,code=<httpStatus>)")
	flag.Parse()

	m := mock.New(mock.WithPageSize(*pageSize))
	if *seedPath != "" {
		seed, err := devseed.Load(*seedPath)
		if err != nil {
			log.Fatalf("load seed: %v", err)
		}
		if err := m.Seed(seed); err != nil {
			log.Fatalf("apply seed: %v", err)
		}
	}

	failCfg, err := parseFailConfig(*fail)
	if err != nil {
		log.Fatalf("parse fail flag: %v", err)
	}

	reg := prometheus.NewRegistry()
	server := &http.Server{
		Addr:    *addr,
		Handler: newHandler(m, *latency, failCfg, reg),
	}

	log.Printf("apistore-sandbox listening on %s", *addr)
	fmt.Println()
	fmt.Printf("export %s=%s\n", config.EnvMode, config.ModeHTTP)
	host := *addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	fmt.Printf("export %s=http://%s\n", config.EnvBaseURL, host)
	fmt.Println()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server failed: %v", err)
	}
}

// newHandler serves the mock behind the latency and failure middleware and
// exposes request counters on /metrics.
func newHandler(m *mock.Mock, delay time.Duration, failCfg failConfig, reg *prometheus.Registry) http.Handler {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "apistore_sandbox_requests_total",
		Help: "Requests served by the sandbox by method and status class.",
	}, []string{"method", "outcome"})
	reg.MustRegister(requests)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/", withMiddleware(delay, failCfg, requests, func(w http.ResponseWriter, r *http.Request) {
		log.Printf("exec request %s %s", r.Method, r.URL.RequestURI())
		m.ServeHTTP(w, r)
	}))
	return mux
}

func withMiddleware(delay time.Duration, failCfg failConfig, requests *prometheus.CounterVec, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if delay > 0 {
			time.Sleep(delay)
		}
		if failCfg.rate > 0 && rand.Float64() < failCfg.rate {
			status := failCfg.code
			if status == 0 {
				status = http.StatusInternalServerError
			}
			requests.WithLabelValues(r.Method, "injected").Inc()
			http.Error(w, "failure injected", status)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		requests.WithLabelValues(r.Method, outcome(rec.status)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func outcome(status int) string {
	if status >= 200 && status < 400 {
		return "ok"
	}
	return "error"
}

func parseFailConfig(raw string) (failConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return failConfig{}, nil
	}
	cfg := failConfig{code: http.StatusInternalServerError}
	parts := strings.Split(raw, ",")
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		keyVal := strings.SplitN(part, "=", 2)
		if len(keyVal) != 2 {
			return failConfig{}, fmt.Errorf("invalid fail segment %q", part)
		}
		switch strings.TrimSpace(keyVal[0]) {
		case "rate":
			val, err := strconv.ParseFloat(strings.TrimSpace(keyVal[1]), 64)
			if err != nil {
				return failConfig{}, err
			}
			if val < 0 || val > 1 {
				return failConfig{}, fmt.Errorf("fail rate %v outside [0,1]", val)
			}
			cfg.rate = val
		case "code":
			val, err := strconv.Atoi(strings.TrimSpace(keyVal[1]))
			if err != nil {
				return failConfig{}, err
			}
			cfg.code = val
		default:
			return failConfig{}, fmt.Errorf("unknown fail key %q", keyVal[0])
		}
	}
	return cfg, nil
}
