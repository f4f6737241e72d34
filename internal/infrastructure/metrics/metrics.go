package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pluginrelay_http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"method", "route"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pluginrelay_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	HTTPErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pluginrelay_http_errors_total",
			Help: "Total number of HTTP responses with status >= 400.",
		},
		[]string{"method", "route", "status"},
	)

	// Generations
	Generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pluginrelay_generations_total",
			Help: "Relay calls by provider, model and outcome",
		},
		[]string{"provider", "model", "status"}, // status: ok|failed
	)
	GenerationsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pluginrelay_generations_in_flight",
			Help: "Generations currently waiting on the external API",
		},
	)

	// LLM
	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pluginrelay_llm_requests_total",
			Help: "Number of LLM requests by provider/model",
		},
		[]string{"provider", "model"},
	)
	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pluginrelay_llm_request_duration_seconds",
			Help:    "Duration of LLM requests",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 9), // 0.5s..128s
		},
		[]string{"provider", "model"},
	)

	// Sanitizer
	SanitizeChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pluginrelay_sanitize_changes_total",
			Help: "Number of times a cleanup step changed the completion text",
		},
		[]string{"step"},
	)

	// Validation
	ValidationFindings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pluginrelay_validation_findings_total",
			Help: "Static analysis findings by rule and severity",
		},
		[]string{"rule", "severity"},
	)

	// History store
	StoreOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pluginrelay_store_ops_total",
			Help: "History store operations performed",
		},
		[]string{"backend", "op"}, // op: get|put|delete|list
	)

	// Websockets
	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pluginrelay_ws_connections",
			Help: "Current number of open websocket connections",
		},
	)

	// Errors
	Errors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pluginrelay_errors_total",
			Help: "Errors encountered in components",
		},
		[]string{"component", "type"},
	)
)

func init() {
	prometheus.MustRegister(
		// HTTP
		HTTPRequests,
		HTTPRequestDuration,
		HTTPErrors,
		// Generations
		Generations,
		GenerationsInFlight,
		// LLM
		LLMRequests,
		LLMRequestDuration,
		// Sanitizer / validation
		SanitizeChanges,
		ValidationFindings,
		// Store
		StoreOps,
		// WS
		WebsocketConnections,
		// Errors
		Errors,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer returns a server exposing only /metrics on addr.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// HTTP
func ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	statusStr := strconv.Itoa(status)
	HTTPRequests.WithLabelValues(method, route).Inc()
	HTTPRequestDuration.WithLabelValues(method, route, statusStr).Observe(d.Seconds())
	if status >= 400 {
		HTTPErrors.WithLabelValues(method, route, statusStr).Inc()
	}
}

// Generations
func IncGeneration(provider, model, status string) {
	Generations.WithLabelValues(provider, model, status).Inc()
}

func IncInFlight() {
	GenerationsInFlight.Inc()
}

func DecInFlight() {
	GenerationsInFlight.Dec()
}

// LLM
func IncLLMRequest(provider, model string) {
	LLMRequests.WithLabelValues(provider, model).Inc()
}

func ObserveLLMDuration(provider, model string, d time.Duration) {
	LLMRequestDuration.WithLabelValues(provider, model).Observe(d.Seconds())
}

// Sanitizer
func IncSanitizeChange(step string) {
	SanitizeChanges.WithLabelValues(step).Inc()
}

// Validation
func IncValidationFinding(rule, severity string) {
	ValidationFindings.WithLabelValues(rule, severity).Inc()
}

// Store
func IncStoreOp(backend, op string) {
	StoreOps.WithLabelValues(backend, op).Inc()
}

// Websocket
func IncWSConnections() {
	WebsocketConnections.Inc()
}

func DecWSConnections() {
	WebsocketConnections.Dec()
}

// Errors
func IncError(component, typ string) {
	Errors.WithLabelValues(component, typ).Inc()
}
