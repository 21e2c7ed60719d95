package ocrlens

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	FormatJSON = "json"
	FormatPDF  = "pdf"
)

// PreprocessHttpHandler serves POST /preprocess: the selected stages are run
// on the uploaded image and returned as JSON or bundled into a PDF.
type PreprocessHttpHandler struct {
	service *OcrService
}

func NewPreprocessHttpHandler(s *OcrService) *PreprocessHttpHandler {
	return &PreprocessHttpHandler{service: s}
}

func (h *PreprocessHttpHandler) pipeline() *Pipeline {
	if h.service.Engine != nil && h.service.Engine.Pipeline != nil {
		return h.service.Engine.Pipeline
	}
	return NewPipeline()
}

func (h *PreprocessHttpHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()

	release, ok := h.service.admit(w)
	if !ok {
		return
	}
	defer release()

	upload, err := readUpload(w, req, h.service.maxUploadBytes())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error reading upload", err)
		return
	}

	var stages []StageType
	for _, value := range req.MultipartForm.Value["stages"] {
		parsed, err := ParseStageList(value)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Error parsing stages", err)
			return
		}
		stages = append(stages, parsed...)
	}

	format := strings.ToLower(strings.TrimSpace(req.FormValue("format")))
	if format == "" {
		format = FormatJSON
	}
	if format != FormatJSON && format != FormatPDF {
		writeError(w, http.StatusBadRequest, "Error parsing format", errors.Errorf("unknown format %q", format))
		return
	}

	result, err := h.pipeline().Process(upload, stages)
	if err != nil {
		writeError(w, httpStatusFor(err), "Unable to load upload", err)
		return
	}

	if format == FormatJSON {
		writeJSON(w, result)
		return
	}

	pdf, err := BuildPDF(resultImages(result))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Unable to build pdf", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="preprocessed.pdf"`)
	if _, err := w.Write(pdf); err != nil {
		log.Error().Err(err).Str("component", "OCR_HTTP").Msg("http write() failed")
	}
}

// resultImages lists the preview followed by every stage output in stage
// order. Failed stages are skipped.
func resultImages(result PipelineResult) [][]byte {
	images := [][]byte{result.Preview}
	for _, stage := range result.Stages {
		if stage.Err() != nil {
			continue
		}
		for _, name := range []string{OutputImage, OutputThin, OutputThick} {
			if img, ok := stage.Images[name]; ok {
				images = append(images, img)
			}
		}
	}
	return images
}
