package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "localdir"

func counter(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func histogram(name, help string, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: name, Help: help, Buckets: prometheus.DefBuckets,
	}, labels)
}

var (
	HTTPRequests = counter("http_requests_total", "HTTP requests.", "route", "method", "status")
	HTTPLatency  = histogram("http_request_duration_seconds", "HTTP request duration seconds.", "route", "method")

	// status 0 means the request never got a response
	GeocodeRequests = counter("geocode_requests_total", "Upstream geocoder calls.", "provider", "status")
	GeocodeLatency  = histogram("geocode_request_duration_seconds", "Upstream geocoder latency.", "provider")

	CacheEvents = counter("cache_events_total", "Cache hit|miss|set|del|error.", "cache", "event")

	Searches      = counter("searches_total", "Listing searches by outcome (ok|degraded|failed).", "outcome")
	SearchLatency = histogram("search_duration_seconds", "Search pipeline duration seconds.")

	LiveEvents   = counter("live_events_total", "Change events reconciled into live result lists.", "table", "kind", "action")
	LiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "live_sessions", Help: "Mounted search sessions."})
)

func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		HTTPRequests, HTTPLatency,
		GeocodeRequests, GeocodeLatency,
		CacheEvents,
		Searches, SearchLatency,
		LiveEvents, LiveSessions,
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Serve exposes reg on its own listener in the background. An empty addr
// disables it.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", addr).Msg("metrics listener up")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics listener stopped")
		}
	}()
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPLatency.WithLabelValues(route, method).Observe(dur.Seconds())
}

func ObserveGeocode(provider string, status int, dur time.Duration) {
	GeocodeRequests.WithLabelValues(provider, strconv.Itoa(status)).Inc()
	GeocodeLatency.WithLabelValues(provider).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) {
	CacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveSearch(outcome string, dur time.Duration) {
	Searches.WithLabelValues(outcome).Inc()
	SearchLatency.WithLabelValues().Observe(dur.Seconds())
}

func ObserveLive(table, kind, action string) {
	LiveEvents.WithLabelValues(table, kind, action).Inc()
}
