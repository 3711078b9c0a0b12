// Package metrics exposes prometheus instrumentation for the auth flow: operation
// outcomes, identity provider latency and, for the example app, HTTP requests.
//
// A nil *Collector is valid and records nothing.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/jrsteele09/go-orbit-auth/autherrors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "orbit_auth"

// Operation names used as the "operation" label.
const (
	OpSignIn        = "sign_in"
	OpCallback      = "callback"
	OpExchange      = "exchange"
	OpRefresh       = "refresh"
	OpUserInfo      = "userinfo"
	OpRevoke        = "revoke"
	OpRestore       = "restore"
	OpHandlerLogin  = "handler_sign_in"
	OpHandlerCB     = "handler_callback"
	OpHandlerLogout = "handler_sign_out"
	OpHandlerRenew  = "handler_refresh"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeNone    = "none"
)

type Collector struct {
	operations      *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg (the default registerer if nil).
// Collectors that are already registered are reused.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Auth flow operations by outcome; failures are labelled with their error kind",
		}, []string{"operation", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of identity provider requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency of HTTP requests served",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	var err error
	if c.operations, err = register(reg, c.operations); err != nil {
		return nil, err
	}
	if c.providerLatency, err = register(reg, c.providerLatency); err != nil {
		return nil, err
	}
	if c.httpRequests, err = register(reg, c.httpRequests); err != nil {
		return nil, err
	}
	if c.httpDuration, err = register(reg, c.httpDuration); err != nil {
		return nil, err
	}
	return c, nil
}

// register registers collector, returning the existing instance on a duplicate.
func register[T prometheus.Collector](reg prometheus.Registerer, collector T) (T, error) {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return collector, err
	}
	return collector, nil
}

// Observe records one operation. A nil err is a success; otherwise the outcome is the
// error's kind, or "error" for untyped errors.
func (c *Collector) Observe(operation string, err error) {
	if c == nil {
		return
	}
	c.operations.WithLabelValues(operation, outcome(err)).Inc()
}

// ObserveOutcome records one operation with an explicit outcome label.
func (c *Collector) ObserveOutcome(operation, outcome string) {
	if c == nil {
		return
	}
	c.operations.WithLabelValues(operation, outcome).Inc()
}

// ObserveProvider records the latency of a provider call started at start. A status of
// zero means the request failed before a response was received.
func (c *Collector) ObserveProvider(endpoint string, status int, start time.Time) {
	if c == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	c.providerLatency.WithLabelValues(endpoint, label).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	if kind := autherrors.KindOf(err); kind != "" {
		return strings.ToLower(string(kind))
	}
	return "error"
}

// Middleware counts requests and their latency. Paths are labelled by the route pattern
// returned by pathLabel, so high-cardinality paths can be collapsed.
func (c *Collector) Middleware(pathLabel func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if c == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			path := r.URL.Path
			if pathLabel != nil {
				path = pathLabel(r)
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			method := strings.ToUpper(r.Method)
			c.httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			c.httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		})
	}
}
