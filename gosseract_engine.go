package ocrlens

import (
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// GoTesseractEngine recognises text through the tesseract C API instead of
// spawning the binary. Each page gets its own client since a client is not
// safe for concurrent use.
type GoTesseractEngine struct {
}

func (g GoTesseractEngine) ProcessRequest(ocrRequest *OcrRequest, engineConfig *EngineConfig) (OcrResult, error) {

	engineArgs, err := NewTesseractEngineArgs(ocrRequest, engineConfig)
	if err != nil {
		log.Error().Err(err).Str("component", "OCR_GOTESSERACT").Caller().Msg("error getting engineArgs")
		return OcrResult{Status: "error"}, err
	}

	pages, err := prepareRequestPages(ocrRequest, engineConfig)
	if err != nil {
		return OcrResult{Status: "error"}, err
	}

	texts, err := recognizePages(pages, engineConfig.PageWorkers, func(page []byte) (string, error) {
		return g.recognize(page, engineArgs)
	})
	if err != nil {
		return OcrResult{Status: "error"}, err
	}
	ocrPages.WithLabelValues(EngineGoTesseract.String()).Add(float64(len(pages)))

	return OcrResult{
		Text:   joinPages(texts),
		Status: "done",
		Pages:  len(pages),
	}, nil
}

func (g GoTesseractEngine) recognize(img []byte, engineArgs *TesseractEngineArgs) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if engineArgs.lang != "" {
		if err := client.SetLanguage(splitLangArg(engineArgs.lang)...); err != nil {
			return "", err
		}
	}
	if engineArgs.pageSegMode != "" {
		psm, err := strconv.Atoi(engineArgs.pageSegMode)
		if err != nil {
			return "", errors.Wrapf(err, "psm %q", engineArgs.pageSegMode)
		}
		if err := client.SetPageSegMode(gosseract.PageSegMode(psm)); err != nil {
			return "", err
		}
	}
	for k, v := range engineArgs.configVars {
		if err := client.SetVariable(gosseract.SettableVariable(k), v); err != nil {
			return "", errors.Wrapf(err, "config var %s", k)
		}
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return "", err
	}
	return client.Text()
}

func splitLangArg(lang string) []string {
	return strings.FieldsFunc(lang, func(r rune) bool { return r == '+' })
}
