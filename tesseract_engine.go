package ocrlens

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// This variant of the TesseractEngine calls tesseract via exec
type TesseractEngine struct {
}

type TesseractEngineArgs struct {
	configVars  map[string]string
	pageSegMode string
	lang        string
	saveFiles   bool
}

func NewTesseractEngineArgs(ocrRequest *OcrRequest, engineConfig *EngineConfig) (*TesseractEngineArgs, error) {

	engineArgs := &TesseractEngineArgs{saveFiles: engineConfig.SaveFiles}

	lang, err := TesseractLanguageArg(ocrRequest.Languages)
	if err != nil {
		return nil, err
	}
	engineArgs.lang = lang

	if ocrRequest.EngineArgs == nil {
		return engineArgs, nil
	}

	// config vars
	configVarsMapInterfaceOrig := ocrRequest.EngineArgs["config_vars"]

	if configVarsMapInterfaceOrig != nil {

		log.Debug().Str("component", "OCR_TESSERACT").
			Interface("configVarsMapInterfaceOrig", configVarsMapInterfaceOrig).Msg("got configVarsMap")

		configVarsMapInterface, ok := configVarsMapInterfaceOrig.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("config_vars must be an object, got %T", configVarsMapInterfaceOrig)
		}

		configVarsMap := make(map[string]string)
		for k, v := range configVarsMapInterface {
			v, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("could not convert configVar into string: %v", v)
			}
			configVarsMap[k] = v
		}

		engineArgs.configVars = configVarsMap

	}

	// page seg mode
	pageSegMode := ocrRequest.EngineArgs["psm"]
	if pageSegMode != nil {
		pageSegModeStr, ok := pageSegMode.(string)
		if !ok {
			return nil, fmt.Errorf("could not convert psm into string: %v", pageSegMode)
		}
		engineArgs.pageSegMode = pageSegModeStr
	}

	// explicit tesseract language codes win over the language names
	lang = ""
	if langArg := ocrRequest.EngineArgs["lang"]; langArg != nil {
		langStr, ok := langArg.(string)
		if !ok {
			return nil, fmt.Errorf("could not convert lang into string: %v", langArg)
		}
		lang = langStr
	}
	if lang != "" {
		engineArgs.lang = lang
	}

	return engineArgs, nil

}

// return a slice that can be passed to tesseract binary as command line
// args, eg, ["-c", "tessedit_char_whitelist=0123456789", "-c", "foo=bar"]
func (t TesseractEngineArgs) Export() []string {
	var result []string
	for k, v := range t.configVars {
		result = append(result, "-c")
		keyValArg := fmt.Sprintf("%s=%s", k, v)
		result = append(result, keyValArg)
	}
	if t.pageSegMode != "" {
		result = append(result, "--psm", t.pageSegMode)
	}
	if t.lang != "" {
		result = append(result, "-l", t.lang)
	}

	return result
}

// ProcessRequest will process incoming OCR request by routing it through the whole process chain
func (t TesseractEngine) ProcessRequest(ocrRequest *OcrRequest, engineConfig *EngineConfig) (OcrResult, error) {

	engineArgs, err := NewTesseractEngineArgs(ocrRequest, engineConfig)
	if err != nil {
		log.Error().Err(err).Str("component", "OCR_TESSERACT").Caller().Msg("error getting engineArgs")
		return OcrResult{Status: "error"}, err
	}

	pages, err := prepareRequestPages(ocrRequest, engineConfig)
	if err != nil {
		return OcrResult{Status: "error"}, err
	}

	texts, err := recognizePages(pages, engineConfig.PageWorkers, func(page []byte) (string, error) {
		return t.processImageBytes(page, engineConfig.TesseractPath, *engineArgs)
	})
	if err != nil {
		return OcrResult{Status: "error"}, err
	}
	ocrPages.WithLabelValues(EngineTesseract.String()).Add(float64(len(pages)))

	return OcrResult{
		Text:   joinPages(texts),
		Status: "done",
		Pages:  len(pages),
	}, nil

}

func (t TesseractEngine) processImageBytes(img []byte, binary string, engineArgs TesseractEngineArgs) (string, error) {

	tmpFileName := createTempFileName("")
	if err := saveBytesToFileName(img, tmpFileName); err != nil {
		return "", err
	}
	defer removeTempFile(tmpFileName, engineArgs.saveFiles)

	return t.processImageFile(tmpFileName, binary, engineArgs)
}

func (t TesseractEngine) processImageFile(inputFilename string, binary string, engineArgs TesseractEngineArgs) (string, error) {

	// if the input filename is /tmp/ocrimage, set the output file basename
	// to /tmp/ocrimage as well, which will produce /tmp/ocrimage.txt output
	tmpOutFileBaseName := inputFilename

	// possible file extensions
	fileExtensions := []string{"txt", "hocr", "json"}

	// build args array
	cflags := engineArgs.Export()
	cmdArgs := []string{inputFilename, tmpOutFileBaseName}
	cmdArgs = append(cmdArgs, cflags...)
	log.Debug().Str("component", "OCR_TESSERACT").Interface("cmdArgs", cmdArgs).Msg("exec tesseract")

	if binary == "" {
		binary = "tesseract"
	}
	cmd := exec.Command(binary, cmdArgs...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Error().Err(err).Str("component", "OCR_TESSERACT").Msg(string(output))
		return "", errors.Wrapf(err, "tesseract: %s", strings.TrimSpace(string(output)))
	}

	outBytes, outFile, err := findAndReadOutfile(tmpOutFileBaseName, fileExtensions)
	if err != nil {
		log.Error().Err(err).Str("component", "OCR_TESSERACT").
			Str("file_name", tmpOutFileBaseName).Msg("Error getting data from out file")
		return "", err
	}
	// delete output file when we are done
	defer removeTempFile(outFile, engineArgs.saveFiles)

	return string(outBytes), nil

}

func findOutfile(outfileBaseName string, fileExtensions []string) (string, error) {

	for _, fileExtension := range fileExtensions {

		outFile := fmt.Sprintf("%v.%v", outfileBaseName, fileExtension)
		if _, err := os.Stat(outFile); err == nil {
			return outFile, nil
		}

	}

	return "", fmt.Errorf("could not find outfile, basename: %v extensions: %v", outfileBaseName, fileExtensions)

}

func findAndReadOutfile(outfileBaseName string, fileExtensions []string) (outBytes []byte, outfile string, err error) {

	outfile, err = findOutfile(outfileBaseName, fileExtensions)
	if err != nil {
		return nil, "", err
	}
	outBytes, err = os.ReadFile(outfile)
	if err != nil {
		return nil, "", err
	}
	return outBytes, outfile, nil

}

// prepareRequestPages loads the request image, applies its pre-OCR stage and
// splits PDFs into rendered pages.
func prepareRequestPages(ocrRequest *OcrRequest, engineConfig *EngineConfig) ([][]byte, error) {
	if err := ocrRequest.loadImage(); err != nil {
		return nil, err
	}
	pipeline := engineConfig.Pipeline
	if pipeline == nil {
		pipeline = NewPipeline()
	}
	if err := ocrRequest.preprocess(pipeline); err != nil {
		return nil, err
	}

	switch detectFileType(ocrRequest.ImgBytes) {
	case "PDF":
		doc, err := NewDocumentFromMemory(ocrRequest.ImgBytes)
		if err != nil {
			return nil, err
		}
		defer doc.Close()
		if scanned, err := doc.IsScanned(); err == nil && !scanned {
			log.Info().Str("component", "OCR_TESSERACT").Str("RequestID", ocrRequest.RequestID).
				Int("pages", doc.NumPages).Msg("pdf carries a text layer, recognising the rendered pages anyway")
		}
		return doc.Pages(RasterDPI)
	case "UNKNOWN":
		return nil, errors.Wrap(ErrImageLoad, "unsupported file type")
	}
	return [][]byte{ocrRequest.ImgBytes}, nil
}

// recognizePages runs recognize on every page with at most workers in flight
// and returns the texts in page order.
func recognizePages(pages [][]byte, workers int, recognize func(page []byte) (string, error)) ([]string, error) {
	texts := make([]string, len(pages))
	var g errgroup.Group
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, page := range pages {
		i, page := i, page
		g.Go(func() error {
			text, err := recognize(page)
			if err != nil {
				return errors.Wrapf(err, "page %d", i+1)
			}
			texts[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return texts, nil
}

func joinPages(texts []string) string {
	trimmed := make([]string, 0, len(texts))
	for _, t := range texts {
		trimmed = append(trimmed, strings.TrimRight(t, "\n\f "))
	}
	return strings.Join(trimmed, "\n\f")
}
