package main

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	ocrlens "github.com/ocrify/lens"
)

// This assumes that there is a rabbit mq running
// To test it, fire up cli-httpd with -inplace_decode=false and send it a curl request

func init() {
	zerolog.TimeFieldFormat = time.StampMilli
	// Default level is info, unless debug flag is present
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	noOpFlagFuncWorker := ocrlens.NoOpFlagFunctionWorker()
	workerConfig, err := ocrlens.DefaultConfigFlagsWorkerOverride(noOpFlagFuncWorker)
	if err != nil {
		log.Fatal().Err(err).Str("component", "OCR_WORKER").Msg("error getting arguments")
	}
	if workerConfig.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Debug().Str("tesseract", workerConfig.Engine.TesseractPath).
		Int("page_workers", workerConfig.Engine.PageWorkers).
		Msg("parameter list of workerConfig")

	// infinite loop, since sometimes worker <-> rabbitmq connection
	// gets broken.
	for {
		log.Info().
			Str("component", "OCR_WORKER").
			Msg("Creating new OCR Worker")

		ocrWorker, err := ocrlens.NewOcrRpcWorker(workerConfig)
		if err != nil {
			log.Panic().Str("component", "OCR_WORKER").
				Msg("Could not create rpc worker")
		}

		if err := ocrWorker.Run(); err != nil {
			log.Error().Str("component", "OCR_WORKER").Err(err).
				Msg("Error running worker, retrying")
			time.Sleep(5 * time.Second)
			continue
		}

		// this happens when connection is closed
		err = <-ocrWorker.Done
		log.Error().
			Str("component", "OCR_WORKER").Err(err).
			Msg("OCR Worker failed with error")
	}

}
