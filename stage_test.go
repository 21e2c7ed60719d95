package ocrlens

import (
	"encoding/json"
	"testing"

	"github.com/couchbaselabs/go.assert"
	"github.com/pkg/errors"
)

func TestStageTypeJson(t *testing.T) {
	for _, stage := range AllStages {
		out, err := json.Marshal(stage)
		assert.True(t, err == nil)

		var byName StageType
		assert.True(t, json.Unmarshal(out, &byName) == nil)
		assert.Equals(t, byName, stage)

		var byInt StageType
		intJson, _ := json.Marshal(int(stage))
		assert.True(t, json.Unmarshal(intJson, &byInt) == nil)
		assert.Equals(t, byInt, stage)
	}

	var stage StageType
	err := json.Unmarshal([]byte(`"sharpen"`), &stage)
	assert.True(t, errors.Is(err, ErrUnknownStage))
	err = json.Unmarshal([]byte(`17`), &stage)
	assert.True(t, errors.Is(err, ErrUnknownStage))

	ocrRequest := OcrRequest{}
	assert.True(t, json.Unmarshal([]byte(`{"stage":"remove_lines"}`), &ocrRequest) == nil)
	assert.Equals(t, *ocrRequest.Stage, StageRemoveLines)
}

func TestParseStageList(t *testing.T) {
	stages, err := ParseStageList("deskew, binarize,deskew,,Invert")
	assert.True(t, err == nil)
	assert.Equals(t, len(stages), 3)
	assert.Equals(t, stages[0], StageDeskew)
	assert.Equals(t, stages[1], StageBinarize)
	assert.Equals(t, stages[2], StageInvert)

	stages, err = ParseStageList("")
	assert.True(t, err == nil)
	assert.Equals(t, len(stages), 0)

	_, err = ParseStageList("deskew,blur")
	assert.True(t, errors.Is(err, ErrUnknownStage))
}

func TestStageProperties(t *testing.T) {
	assert.Equals(t, StageBinarize.Layout(), LayoutGray)
	assert.Equals(t, StageThickness.Layout(), LayoutGray)
	assert.Equals(t, StageDeskew.Layout(), LayoutColor)
	assert.True(t, !StageThickness.SingleOutput())
	assert.True(t, StageRemoveLines.SingleOutput())
	assert.Equals(t, StageRemoveLines.String(), "remove-lines")
	assert.Equals(t, StageType(42).String(), "")
}
