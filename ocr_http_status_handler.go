package ocrlens

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

type serviceStatus struct {
	ResStatus
	InplaceDecode bool     `json:"inplace_decode"`
	Languages     []string `json:"languages"`
	Stages        []string `json:"stages"`
	Tesseract     string   `json:"tesseract,omitempty"`
}

// OcrHttpStatusHandler serves GET /status.
type OcrHttpStatusHandler struct {
	service          *OcrService
	tesseractVersion string
}

func NewOcrHttpStatusHandler(s *OcrService) *OcrHttpStatusHandler {
	h := &OcrHttpStatusHandler{service: s}
	if s.Engine != nil && s.InplaceDecode {
		version, err := TesseractVersion(s.Engine.TesseractPath)
		if err != nil {
			log.Warn().Err(err).Str("component", "OCR_STATUS").Msg("tesseract version unknown")
		}
		h.tesseractVersion = version
	}
	return h
}

func (h *OcrHttpStatusHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {

	log.Debug().Str("component", "OCR_STATUS").Msg("serveHttp called")

	status := serviceStatus{
		InplaceDecode: h.service.InplaceDecode,
		Languages:     SupportedLanguages(),
		Tesseract:     h.tesseractVersion,
	}
	if h.service.ResManager != nil {
		status.ResStatus = h.service.ResManager.Status()
	} else {
		status.CanAccept = true
	}
	for _, stage := range AllStages {
		status.Stages = append(status.Stages, stage.String())
	}
	writeJSON(w, status)
}
