package ocrlens

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewServeMux routes every endpoint of the http daemon.
func NewServeMux(s *OcrService) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/", InstrumentHandler("landing", LandingPageHandler()))
	mux.Handle("/ocr", InstrumentHandler("ocr", NewOcrHttpHandler(s)))
	mux.Handle("/ocr-file-upload", InstrumentHandler("ocr-file-upload", NewOcrHttpMultipartHandler(s)))
	mux.Handle("/preprocess", InstrumentHandler("preprocess", NewPreprocessHttpHandler(s)))
	mux.Handle("/translate", InstrumentHandler("translate", NewTranslateHttpHandler(s)))
	mux.Handle("/status", InstrumentHandler("status", NewOcrHttpStatusHandler(s)))
	// expose metrics for prometheus
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
