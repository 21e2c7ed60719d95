package ocrlens

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

const (
	OutputImage = "image"
	OutputThin  = "thin"
	OutputThick = "thick"
)

// StageResult is the outcome of one stage applied to the original upload.
// Images are PNG encoded and keyed by output name.
type StageResult struct {
	Stage     StageType         `json:"stage"`
	Images    map[string][]byte `json:"images,omitempty"`
	Angle     *float64          `json:"angle,omitempty"`
	Threshold *int              `json:"threshold,omitempty"`
	Error     string            `json:"error,omitempty"`

	err error
}

// Err returns the error the stage failed with, if any.
func (r StageResult) Err() error {
	return r.err
}

type PipelineResult struct {
	FileType string        `json:"file_type"`
	Preview  []byte        `json:"preview"`
	Stages   []StageResult `json:"stages"`
}

// Pipeline applies independently selected preprocessing stages. Every stage
// starts from the original image, never from another stage's output.
type Pipeline struct {
	Deskewer *Deskewer
}

func NewPipeline() *Pipeline {
	return &Pipeline{Deskewer: NewDeskewer()}
}

// Process loads the upload once and runs each selected stage on it. A failing
// stage is reported in its StageResult and does not stop the others; only an
// unreadable upload fails the whole call.
func (p *Pipeline) Process(upload []byte, stages []StageType) (PipelineResult, error) {
	fileType := detectFileType(upload)
	preview, err := PreviewImage(upload)
	if err != nil {
		return PipelineResult{FileType: fileType}, err
	}

	// fail once for an undecodable upload instead of once per stage
	probe, err := DecodeImage(preview, LayoutColor)
	if err != nil {
		return PipelineResult{FileType: fileType}, err
	}
	probe.Close()

	result := PipelineResult{FileType: fileType, Preview: preview}
	for _, stage := range dedupStages(stages) {
		result.Stages = append(result.Stages, p.RunStage(preview, stage))
	}
	return result, nil
}

// RunStage decodes src in the layout the stage needs and applies it.
func (p *Pipeline) RunStage(src []byte, stage StageType) (res StageResult) {
	start := time.Now()
	res.Stage = stage
	defer func() {
		stageDuration.WithLabelValues(stage.String()).Observe(time.Since(start).Seconds())
		if res.err != nil {
			stageFailures.WithLabelValues(stage.String()).Inc()
			res.Error = res.err.Error()
			log.Warn().Str("component", "PREPROCESS").Str("stage", stage.String()).Err(res.err).Msg("stage failed")
			return
		}
		log.Info().Str("component", "PREPROCESS").Str("stage", stage.String()).
			Dur("took", time.Since(start)).Msg("stage done")
	}()

	if !stage.valid() {
		res.err = errors.Wrapf(ErrUnknownStage, "%d", int(stage))
		return res
	}

	img, err := DecodeImage(src, stage.Layout())
	if err != nil {
		res.err = err
		return res
	}
	defer img.Close()

	outputs, err := p.apply(img, stage, &res)
	if err != nil {
		res.err = err
		return res
	}
	res.Images = make(map[string][]byte, len(outputs))
	for name, mat := range outputs {
		encoded, err := EncodePNG(mat)
		mat.Close()
		if err != nil && res.err == nil {
			res.err = err
		}
		res.Images[name] = encoded
	}
	if res.err != nil {
		res.Images = nil
	}
	return res
}

// ApplySingle runs a single output stage on src and returns the PNG result.
// It is used to clean a page before it is handed to an OCR engine.
func (p *Pipeline) ApplySingle(src []byte, stage StageType) ([]byte, error) {
	if !stage.SingleOutput() {
		return nil, errors.Wrapf(ErrUnknownStage, "%s has more than one output", stage)
	}
	res := p.RunStage(src, stage)
	if res.err != nil {
		return nil, res.err
	}
	return res.Images[OutputImage], nil
}

func (p *Pipeline) apply(img gocv.Mat, stage StageType, res *StageResult) (map[string]gocv.Mat, error) {
	switch stage {
	case StageInvert:
		out, err := Invert(img)
		if err != nil {
			return nil, err
		}
		return map[string]gocv.Mat{OutputImage: out}, nil
	case StageBinarize:
		level, out, err := Binarize(img)
		if err != nil {
			return nil, err
		}
		threshold := int(level)
		res.Threshold = &threshold
		return map[string]gocv.Mat{OutputImage: out}, nil
	case StageDeskew:
		angle, out, err := p.deskewer().Deskew(img)
		if err != nil {
			return nil, err
		}
		res.Angle = &angle
		return map[string]gocv.Mat{OutputImage: out}, nil
	case StageRemoveLines:
		out, err := RemoveLines(img)
		if err != nil {
			return nil, err
		}
		return map[string]gocv.Mat{OutputImage: out}, nil
	case StageThickness:
		out, err := AdjustThickness(img)
		if err != nil {
			return nil, err
		}
		return map[string]gocv.Mat{OutputThin: out.Thin, OutputThick: out.Thick}, nil
	}
	return nil, errors.Wrapf(ErrUnknownStage, "%d", int(stage))
}

func (p *Pipeline) deskewer() *Deskewer {
	if p.Deskewer == nil {
		return NewDeskewer()
	}
	return p.Deskewer
}
