package ocrlens

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
)

type OcrEngineType int

const (
	EngineTesseract = OcrEngineType(iota)
	EngineGoTesseract
	EngineMock
)

type OcrEngine interface {
	ProcessRequest(ocrRequest *OcrRequest, engineConfig *EngineConfig) (OcrResult, error)
}

func NewOcrEngine(engineType OcrEngineType) OcrEngine {
	switch engineType {
	case EngineMock:
		return &MockEngine{}
	case EngineTesseract:
		return &TesseractEngine{}
	case EngineGoTesseract:
		return &GoTesseractEngine{}
	}
	return nil
}

func (e OcrEngineType) String() string {
	switch e {
	case EngineMock:
		return "ENGINE_MOCK"
	case EngineTesseract:
		return "ENGINE_TESSERACT"
	case EngineGoTesseract:
		return "ENGINE_GO_TESSERACT"

	}
	return ""
}

// ParseOcrEngineType accepts the engine names used in requests and forms.
func ParseOcrEngineType(name string) OcrEngineType {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "TESSERACT":
		return EngineTesseract
	case "GO_TESSERACT", "GOSSERACT":
		return EngineGoTesseract
	case "MOCK":
		return EngineMock
	}
	log.Warn().Str("engineString", name).Msg("Unexpected OcrEngineType, using mock")
	return EngineMock
}

func (e OcrEngineType) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.TrimPrefix(strings.ToLower(e.String()), "engine_"))
}

func (e *OcrEngineType) UnmarshalJSON(b []byte) (err error) {

	var engineTypeStr string

	if err := json.Unmarshal(b, &engineTypeStr); err == nil {
		*e = ParseOcrEngineType(engineTypeStr)
		return nil
	}

	// not a string .. maybe it's an int

	var engineTypeInt int
	if err := json.Unmarshal(b, &engineTypeInt); err == nil {
		*e = OcrEngineType(engineTypeInt)
		return nil
	} else {
		return err
	}

}
