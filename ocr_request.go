package ocrlens

import (
	"encoding/base64"
	"fmt"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

type OcrRequest struct {
	ImgUrl     string                 `json:"img_url"`
	ImgBase64  string                 `json:"img_base64"`
	ImgBytes   []byte                 `json:"img_bytes,omitempty"`
	EngineType OcrEngineType          `json:"engine"`
	EngineArgs map[string]interface{} `json:"engine_args"`
	// Languages holds language names as shown to users, eg "English".
	Languages []string `json:"languages"`
	Translate bool     `json:"translate"`
	// Stage optionally cleans the image before recognition.
	Stage         *StageType `json:"stage,omitempty"`
	InplaceDecode bool       `json:"inplace_decode"`
	RequestID     string     `json:"request_id,omitempty"`
	TimeOut       uint       `json:"timeout"`
	// DocType selects the message priority in distributed mode.
	DocType string `json:"doc_type,omitempty"`
	// set by the preprocessor worker once Stage has been applied
	Preprocessed bool `json:"preprocessed,omitempty"`
}

type OcrResult struct {
	ID          string `json:"id,omitempty"`
	Text        string `json:"text"`
	Status      string `json:"status"`
	Pages       int    `json:"pages,omitempty"`
	Detected    string `json:"detected_language,omitempty"`
	Translation string `json:"translation,omitempty"`
	// ErrorKind names the failure when Status is "error".
	ErrorKind string `json:"error_kind,omitempty"`
}

// errorResult is the reply a worker sends when a request failed.
func errorResult(id string, err error) OcrResult {
	return OcrResult{ID: id, Status: "error", Text: err.Error(), ErrorKind: errorKind(err)}
}

func (r *OcrRequest) hasBase64() bool {
	return r.ImgBase64 != ""
}

func (r *OcrRequest) decodeBase64() error {
	decoded, err := base64.StdEncoding.DecodeString(r.ImgBase64)
	if err != nil {
		return errors.Wrapf(ErrImageLoad, "base64: %v", err)
	}
	r.ImgBytes = decoded
	r.ImgBase64 = ""
	return nil
}

func (r *OcrRequest) downloadImgUrl() error {
	data, err := url2bytes(r.ImgUrl)
	if err != nil {
		return errors.Wrapf(ErrImageLoad, "download %s: %v", r.ImgUrl, err)
	}
	r.ImgBytes = data
	r.ImgUrl = ""
	return nil
}

// loadImage makes sure ImgBytes holds the image, whatever way it was sent.
func (r *OcrRequest) loadImage() error {
	if len(r.ImgBytes) > 0 {
		return nil
	}
	switch {
	case r.hasBase64():
		return r.decodeBase64()
	case r.ImgUrl != "":
		return r.downloadImgUrl()
	}
	return errors.Wrap(ErrImageLoad, "request has no image")
}

// nextPreprocessor returns the routing key the request should be published
// to next: the queue of its stage while it has not been applied yet,
// otherwise the OCR queue.
func (r *OcrRequest) nextPreprocessor(ocrRoutingKey string) string {
	if r.Stage == nil || r.Preprocessed {
		return ocrRoutingKey
	}
	return r.Stage.String()
}

// validate checks the parts of a request that do not need the image.
func (r *OcrRequest) validate() error {
	if r.Stage != nil && !r.Stage.SingleOutput() {
		return errors.Wrapf(ErrUnknownStage, "%s can not run in front of an OCR engine", r.Stage)
	}
	if _, err := LanguageCodes(r.Languages); err != nil {
		return err
	}
	return nil
}

func (r OcrRequest) String() string {
	return fmt.Sprintf("OcrRequest{id: %s, engine: %s, languages: %v, stage: %v, bytes: %d, url: %q}",
		r.RequestID, r.EngineType, r.Languages, r.Stage, len(r.ImgBytes), r.ImgUrl)
}

// preprocess applies the request's stage, if any and not yet done.
func (r *OcrRequest) preprocess(pipeline *Pipeline) error {
	if r.Stage == nil || r.Preprocessed {
		return nil
	}
	if err := (StagePreprocessor{Stage: *r.Stage, Pipeline: pipeline}).preprocess(r); err != nil {
		return err
	}
	log.Info().Str("component", "OCR_PREPROCESS").Str("RequestID", r.RequestID).
		Str("stage", r.Stage.String()).Msg("applied stage before recognition")
	return nil
}
