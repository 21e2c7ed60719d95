package ocrlens

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const PreprocessorIdentity = "identity"

// Preprocessor cleans the image of a request before it reaches an engine.
type Preprocessor interface {
	preprocess(ocrRequest *OcrRequest) error
}

type IdentityPreprocessor struct{}

func (IdentityPreprocessor) preprocess(ocrRequest *OcrRequest) error {
	ocrRequest.Preprocessed = true
	return nil
}

// StagePreprocessor applies one single output pipeline stage.
type StagePreprocessor struct {
	Stage    StageType
	Pipeline *Pipeline
}

func (s StagePreprocessor) preprocess(ocrRequest *OcrRequest) error {
	if err := ocrRequest.loadImage(); err != nil {
		return err
	}
	src, pages, err := previewImage(ocrRequest.ImgBytes)
	if err != nil {
		return err
	}
	if pages > 1 {
		log.Info().Str("component", "OCR_PREPROCESS").Str("RequestID", ocrRequest.RequestID).
			Str("stage", s.Stage.String()).Int("pages", pages).
			Msg("stage runs on the first page only, the other pages are not recognised")
	}
	cleaned, err := s.Pipeline.ApplySingle(src, s.Stage)
	if err != nil {
		return err
	}
	ocrRequest.ImgBytes = cleaned
	ocrRequest.Preprocessed = true
	return nil
}

// NewPreprocessor returns the preprocessor registered under name: identity
// or the name of a single output stage.
func NewPreprocessor(name string, pipeline *Pipeline) (Preprocessor, error) {
	if name == PreprocessorIdentity {
		return IdentityPreprocessor{}, nil
	}
	stage, err := ParseStageType(name)
	if err != nil {
		return nil, err
	}
	if !stage.SingleOutput() {
		return nil, errors.Wrapf(ErrUnknownStage, "%s can not run in front of an OCR engine", stage)
	}
	if pipeline == nil {
		pipeline = NewPipeline()
	}
	return StagePreprocessor{Stage: stage, Pipeline: pipeline}, nil
}
