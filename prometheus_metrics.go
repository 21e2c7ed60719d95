package ocrlens

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	inFlightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ocrlens_in_flight_requests",
		Help: "Number of currently pending and processed requests.",
	})
	counter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocrlens_api_requests_total",
			Help: "A counter for requests to the wrapped handler.",
		},
		[]string{"handler", "code", "method"},
	)

	// duration is partitioned by the HTTP method and handler. It uses custom
	// buckets based on the expected request duration.
	duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocrlens_request_duration_seconds",
			Help:    "A histogram of latencies for requests.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"handler", "method"},
	)

	requestSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocrlens_request_size_bytes",
			Help:    "A histogram of request sizes.",
			Buckets: []float64{100, 1500, 5000000, 10000000, 25000000, 50000000},
		},
		[]string{"handler"},
	)

	stageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocrlens_stage_duration_seconds",
			Help:    "Time spent in a single preprocessing stage.",
			Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"stage"},
	)
	stageFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocrlens_stage_failures_total",
			Help: "Preprocessing stages that returned an error.",
		},
		[]string{"stage"},
	)
	ocrPages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocrlens_ocr_pages_total",
			Help: "Pages handed to an OCR engine.",
		},
		[]string{"engine"},
	)
)

func init() {
	prometheus.MustRegister(inFlightGauge, counter, duration, requestSize, stageDuration, stageFailures, ocrPages)
}

// InstrumentHandler wraps handler to provide prometheus metrics under the
// given handler label.
func InstrumentHandler(name string, handler http.Handler) http.Handler {
	labels := prometheus.Labels{"handler": name}
	return promhttp.InstrumentHandlerInFlight(inFlightGauge,
		promhttp.InstrumentHandlerDuration(duration.MustCurryWith(labels),
			promhttp.InstrumentHandlerCounter(counter.MustCurryWith(labels),
				promhttp.InstrumentHandlerRequestSize(requestSize.MustCurryWith(labels), handler),
			),
		),
	)
}
