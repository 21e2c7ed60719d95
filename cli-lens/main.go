package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	ocrlens "github.com/ocrify/lens"
)

// Runs the pipeline and optionally OCR on a local file, without any server:
// cli-lens -in scan.pdf -stages deskew,binarize -out ./out -pdf out.pdf -ocr

func init() {
	zerolog.TimeFieldFormat = time.StampMilli
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	var (
		input     string
		stageList string
		outDir    string
		pdfPath   string
		ocr       bool
		engine    string
		languages string
		stage     string
		translate bool
		debug     bool
	)
	flagFunc := func() {
		flag.StringVar(&input, "in", "", "image or PDF to process")
		flag.StringVar(&stageList, "stages", "", "comma separated stages, eg, deskew,binarize,thickness")
		flag.StringVar(&outDir, "out", ".", "directory the stage results are written to")
		flag.StringVar(&pdfPath, "pdf", "", "if set, bundle the preview and all results into this PDF")
		flag.BoolVar(&ocr, "ocr", false, "recognise the text of the input")
		flag.StringVar(&engine, "engine", "tesseract", "OCR engine, tesseract, go_tesseract or mock")
		flag.StringVar(&languages, "languages", ocrlens.DefaultLanguage, "comma separated language names")
		flag.StringVar(&stage, "stage", "", "stage applied before recognition")
		flag.BoolVar(&translate, "translate", false, "translate recognised text to English")
		flag.BoolVar(&debug, "debug", false, "sets debug flag, program will print more messages")
	}
	engineConfig, err := ocrlens.DefaultConfigFlagsEngineOverride(flagFunc)
	if err != nil {
		log.Fatal().Err(err).Str("component", "CLI_LENS").Msg("error getting arguments")
	}
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if input == "" {
		flag.Usage()
		os.Exit(2)
	}

	upload, err := os.ReadFile(input)
	if err != nil {
		log.Fatal().Err(err).Str("component", "CLI_LENS").Msg("can not read input")
	}

	stages, err := ocrlens.ParseStageList(stageList)
	if err != nil {
		log.Fatal().Err(err).Str("component", "CLI_LENS").Msg("invalid stages")
	}
	if len(stages) > 0 || pdfPath != "" {
		if err := preprocess(engineConfig.Pipeline, upload, stages, input, outDir, pdfPath); err != nil {
			log.Fatal().Err(err).Str("component", "CLI_LENS").Msg("preprocessing failed")
		}
	}

	if !ocr {
		return
	}
	ocrRequest := &ocrlens.OcrRequest{
		ImgBytes:   upload,
		EngineType: ocrlens.ParseOcrEngineType(engine),
		Languages:  strings.Split(languages, ","),
	}
	if stage != "" {
		s, err := ocrlens.ParseStageType(stage)
		if err != nil {
			log.Fatal().Err(err).Str("component", "CLI_LENS").Msg("invalid stage")
		}
		ocrRequest.Stage = &s
	}
	result, err := ocrlens.NewOcrEngine(ocrRequest.EngineType).ProcessRequest(ocrRequest, &engineConfig)
	if err != nil {
		log.Fatal().Err(err).Str("component", "CLI_LENS").Msg("recognition failed")
	}
	fmt.Println(result.Text)

	if translate {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		detected, translation, err := ocrlens.TranslateToEnglish(ctx, ocrlens.WhatlangDetector{}, ocrlens.NewGoogleTranslator(), result.Text)
		if err != nil {
			log.Error().Err(err).Str("component", "CLI_LENS").Msg("translation failed")
			return
		}
		fmt.Printf("--- translation (%s -> en) ---\n%s\n", detected, translation)
	}
}

func preprocess(pipeline *ocrlens.Pipeline, upload []byte, stages []ocrlens.StageType, input, outDir, pdfPath string) error {
	result, err := pipeline.Process(upload, stages)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	images := [][]byte{result.Preview}
	for _, stageResult := range result.Stages {
		if stageResult.Err() != nil {
			log.Warn().Err(stageResult.Err()).Str("component", "CLI_LENS").
				Str("stage", stageResult.Stage.String()).Msg("stage failed")
			continue
		}
		event := log.Info().Str("component", "CLI_LENS").Str("stage", stageResult.Stage.String())
		if stageResult.Angle != nil {
			event = event.Float64("angle", *stageResult.Angle)
		}
		if stageResult.Threshold != nil {
			event = event.Int("threshold", *stageResult.Threshold)
		}
		for _, name := range []string{ocrlens.OutputImage, ocrlens.OutputThin, ocrlens.OutputThick} {
			img, ok := stageResult.Images[name]
			if !ok {
				continue
			}
			fileName := fmt.Sprintf("%s_%s.png", base, stageResult.Stage)
			if name != ocrlens.OutputImage {
				fileName = fmt.Sprintf("%s_%s_%s.png", base, stageResult.Stage, name)
			}
			path := filepath.Join(outDir, fileName)
			if err := os.WriteFile(path, img, 0o644); err != nil {
				return err
			}
			images = append(images, img)
			event = event.Str(name, path)
		}
		event.Msg("stage written")
	}

	if pdfPath == "" {
		return nil
	}
	pdf, err := ocrlens.BuildPDF(images)
	if err != nil {
		return err
	}
	return os.WriteFile(pdfPath, pdf, 0o644)
}
