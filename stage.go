package ocrlens

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

type StageType int

const (
	StageInvert = StageType(iota)
	StageBinarize
	StageDeskew
	StageRemoveLines
	StageThickness
)

// AllStages lists every stage in display order.
var AllStages = []StageType{StageInvert, StageBinarize, StageDeskew, StageRemoveLines, StageThickness}

func (s StageType) String() string {
	switch s {
	case StageInvert:
		return "invert"
	case StageBinarize:
		return "binarize"
	case StageDeskew:
		return "deskew"
	case StageRemoveLines:
		return "remove-lines"
	case StageThickness:
		return "thickness"
	}
	return ""
}

// Layout returns the image layout the stage expects as input.
func (s StageType) Layout() Layout {
	switch s {
	case StageBinarize, StageThickness:
		return LayoutGray
	}
	return LayoutColor
}

// SingleOutput reports whether the stage produces exactly one image, which
// is required when it runs in front of an OCR engine.
func (s StageType) SingleOutput() bool {
	return s != StageThickness
}

func (s StageType) valid() bool {
	return s >= StageInvert && s <= StageThickness
}

// ParseStageType accepts the stage name case-insensitively.
func ParseStageType(name string) (StageType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "invert":
		return StageInvert, nil
	case "binarize", "binary":
		return StageBinarize, nil
	case "deskew":
		return StageDeskew, nil
	case "remove-lines", "remove_lines", "borders":
		return StageRemoveLines, nil
	case "thickness":
		return StageThickness, nil
	}
	return 0, errors.Wrapf(ErrUnknownStage, "%q", name)
}

// ParseStageList parses a comma separated list, dropping duplicates and
// keeping first-seen order.
func ParseStageList(list string) ([]StageType, error) {
	var stages []StageType
	for _, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		stage, err := ParseStageType(name)
		if err != nil {
			return nil, err
		}
		stages = append(stages, stage)
	}
	return dedupStages(stages), nil
}

func dedupStages(stages []StageType) []StageType {
	seen := make(map[StageType]bool, len(stages))
	result := stages[:0:0]
	for _, s := range stages {
		if seen[s] {
			continue
		}
		seen[s] = true
		result = append(result, s)
	}
	return result
}

func (s StageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *StageType) UnmarshalJSON(b []byte) (err error) {

	var stageStr string

	if err := json.Unmarshal(b, &stageStr); err == nil {
		stage, err := ParseStageType(stageStr)
		if err != nil {
			return err
		}
		*s = stage
		return nil
	}

	// not a string .. maybe it's an int

	var stageInt int
	if err := json.Unmarshal(b, &stageInt); err != nil {
		return err
	}
	stage := StageType(stageInt)
	if !stage.valid() {
		return errors.Wrapf(ErrUnknownStage, "%d", stageInt)
	}
	*s = stage
	return nil

}
