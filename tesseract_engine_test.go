package ocrlens

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/couchbaselabs/go.assert"
	"github.com/rs/zerolog/log"
)

func testEngineConfig(t *testing.T) EngineConfig {
	engineConfig := DefaultEngineConfig()
	path, err := ResolveTesseractPath("")
	if err != nil {
		t.Skip("tesseract is not installed")
	}
	engineConfig.TesseractPath = path
	return engineConfig
}

func TestTesseractEngineWithRequest(t *testing.T) {

	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}
	engineConfig := testEngineConfig(t)

	engine := TesseractEngine{}
	cFlags := make(map[string]interface{})
	cFlags["config_vars"] = map[string]interface{}{"tessedit_char_whitelist": "0123456789"}

	ocrRequest := OcrRequest{
		ImgBytes:   textPage(t, "4711 0815"),
		EngineType: EngineTesseract,
		EngineArgs: cFlags,
	}

	result, err := engine.ProcessRequest(&ocrRequest, &engineConfig)
	assert.True(t, err == nil)
	assert.Equals(t, result.Status, "done")
	assert.True(t, strings.Contains(result.Text, "4711"))
	log.Info().Str("component", "TEST").Interface("result", result).Msg("")

}

func TestTesseractEngineWithJson(t *testing.T) {

	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}
	engineConfig := testEngineConfig(t)

	testJsons := []string{}
	testJsons = append(testJsons, `{"engine":"tesseract"}`)
	testJsons = append(testJsons, `{"engine":"tesseract", "engine_args":{}}`)
	testJsons = append(testJsons, `{"engine":"tesseract", "engine_args":null}`)
	testJsons = append(testJsons, `{"engine":"tesseract", "languages":["English"], "stage":"binarize"}`)
	testJsons = append(testJsons, `{"engine":"tesseract", "engine_args":{"config_vars":{"tessedit_create_hocr":"1", "tessedit_pageseg_mode":"1"}, "psm":"3"}}`)

	img := textPage(t, "HELLO LENS")
	for _, testJson := range testJsons {
		ocrRequest := OcrRequest{}
		err := json.Unmarshal([]byte(testJson), &ocrRequest)
		assert.True(t, err == nil)
		ocrRequest.ImgBytes = img
		engine := NewOcrEngine(ocrRequest.EngineType)
		result, err := engine.ProcessRequest(&ocrRequest, &engineConfig)
		assert.True(t, err == nil)
		assert.Equals(t, result.Pages, 1)
		log.Info().Str("component", "TEST").Str("testJson", testJson).Interface("result", result).Msg("")
	}

}

func TestNewTesseractEngineArgs(t *testing.T) {
	testJson := `{"engine":"tesseract", "engine_args":{"config_vars":{"tessedit_char_whitelist":"0123456789"}, "psm":"0", "lang":"jpn"}}`
	ocrRequest := OcrRequest{}
	err := json.Unmarshal([]byte(testJson), &ocrRequest)
	assert.True(t, err == nil)
	engineConfig := DefaultEngineConfig()
	engineArgs, err := NewTesseractEngineArgs(&ocrRequest, &engineConfig)
	assert.True(t, err == nil)
	assert.Equals(t, len(engineArgs.configVars), 1)
	assert.Equals(t, engineArgs.configVars["tessedit_char_whitelist"], "0123456789")
	assert.Equals(t, engineArgs.pageSegMode, "0")
	assert.Equals(t, engineArgs.lang, "jpn")

	exported := engineArgs.Export()
	assert.Equals(t, strings.Join(exported, " "), "-c tessedit_char_whitelist=0123456789 --psm 0 -l jpn")

}

func TestTesseractEngineArgsFromLanguages(t *testing.T) {
	ocrRequest := OcrRequest{Languages: []string{"Hindi", "English"}}
	engineConfig := DefaultEngineConfig()
	engineArgs, err := NewTesseractEngineArgs(&ocrRequest, &engineConfig)
	assert.True(t, err == nil)
	assert.Equals(t, engineArgs.lang, "hin+eng")

	ocrRequest = OcrRequest{}
	engineArgs, err = NewTesseractEngineArgs(&ocrRequest, &engineConfig)
	assert.True(t, err == nil)
	assert.Equals(t, engineArgs.lang, "eng")

	ocrRequest = OcrRequest{Languages: []string{"Klingon"}}
	_, err = NewTesseractEngineArgs(&ocrRequest, &engineConfig)
	assert.True(t, err != nil)
}

func TestNewTesseractEngineArgsRejectsBadTypes(t *testing.T) {
	engineConfig := DefaultEngineConfig()
	for _, engineArgs := range []map[string]interface{}{
		{"config_vars": "tessedit_char_whitelist=1"},
		{"config_vars": map[string]interface{}{"x": 1}},
		{"psm": 3},
		{"lang": []string{"eng"}},
	} {
		ocrRequest := OcrRequest{EngineArgs: engineArgs}
		_, err := NewTesseractEngineArgs(&ocrRequest, &engineConfig)
		assert.True(t, err != nil)
	}
}

func TestRecognizePagesKeepsOrder(t *testing.T) {
	pages := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	texts, err := recognizePages(pages, 2, func(page []byte) (string, error) {
		return strings.ToUpper(string(page)) + "\n", nil
	})
	assert.True(t, err == nil)
	assert.Equals(t, joinPages(texts), "A\n\fB\n\fC\n\fD")
}

func TestSplitLangArg(t *testing.T) {
	assert.True(t, reflect.DeepEqual(splitLangArg("hin+eng"), []string{"hin", "eng"}))
	assert.Equals(t, len(splitLangArg("")), 0)
}

func TestTesseractEngineWithFile(t *testing.T) {

	if testing.Short() {
		t.Skip("skipping test in short mode.")
	}
	engineConfig := testEngineConfig(t)

	tmpFileName := createTempFileName("")
	assert.True(t, saveBytesToFileName(textPage(t, "OPEN"), tmpFileName) == nil)
	defer removeTempFile(tmpFileName, false)

	engine := TesseractEngine{}
	engineArgs := TesseractEngineArgs{lang: "eng"}
	result, err := engine.processImageFile(tmpFileName, engineConfig.TesseractPath, engineArgs)
	assert.True(t, err == nil)
	assert.True(t, strings.Contains(result, "OPEN"))

}
