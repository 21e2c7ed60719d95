package ocrlens

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// OcrHttpMultipartHandler serves POST /ocr-file-upload, the form posted by
// the landing page.
type OcrHttpMultipartHandler struct {
	service *OcrService
}

func NewOcrHttpMultipartHandler(s *OcrService) *OcrHttpMultipartHandler {
	return &OcrHttpMultipartHandler{
		service: s,
	}
}

// readUpload returns the bytes of the "file" field of a multipart/form-data
// request.
func readUpload(w http.ResponseWriter, req *http.Request, maxBytes int64) ([]byte, error) {
	if req.Method != http.MethodPost {
		return nil, errors.New("this endpoint only accepts POST requests")
	}
	req.Body = http.MaxBytesReader(w, req.Body, maxBytes)
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		return nil, errors.Wrap(err, "expected multipart/form-data")
	}
	file, header, err := req.FormFile("file")
	if err != nil {
		return nil, errors.Wrap(err, "missing file field")
	}
	defer file.Close()
	log.Info().Str("component", "OCR_HTTP").Str("file_name", header.Filename).
		Int64("size", header.Size).Msg("got upload")

	return io.ReadAll(file)
}

func (*OcrHttpMultipartHandler) extractParts(req *http.Request, upload []byte) (OcrRequest, error) {
	ocrReq := OcrRequest{ImgBytes: upload}

	ocrReq.EngineType = ParseOcrEngineType(req.FormValue("engine"))
	if languages := req.MultipartForm.Value["languages"]; len(languages) > 0 {
		// the form sends one value per checkbox, scripts may send a comma list
		for _, value := range languages {
			ocrReq.Languages = append(ocrReq.Languages, splitList(value)...)
		}
	}
	if translate := req.FormValue("translate"); translate != "" {
		on, err := strconv.ParseBool(translate)
		if err != nil && translate != "on" {
			return ocrReq, errors.Errorf("translate: %q is not a boolean", translate)
		}
		ocrReq.Translate = on || translate == "on"
	}
	if stageName := strings.TrimSpace(req.FormValue("stage")); stageName != "" {
		stage, err := ParseStageType(stageName)
		if err != nil {
			return ocrReq, err
		}
		ocrReq.Stage = &stage
	}
	return ocrReq, nil
}

func (s *OcrHttpMultipartHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {

	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			log.Warn().Err(err).Caller().Str("component", "OCR_HTTP").Msg(req.RequestURI + " request Body could not be removed")
		}
	}(req.Body)

	release, ok := s.service.admit(w)
	if !ok {
		return
	}
	defer release()

	upload, err := readUpload(w, req, s.service.maxUploadBytes())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error reading upload", err)
		return
	}
	ocrRequest, err := s.extractParts(req, upload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Error extracting form fields", err)
		return
	}

	ocrResult, httpStatus, err := s.service.HandleOcrRequest(req.Context(), &ocrRequest)
	if err != nil {
		writeError(w, httpStatus, "Unable to perform OCR decode", err)
		return
	}
	writeJSON(w, ocrResult)

}
