package main

import (
	"flag"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	ocrlens "github.com/ocrify/lens"
)

// This assumes that there is a rabbit mq running
// Run one preprocessor per stage that requests may name, eg -preprocessor deskew

func init() {
	zerolog.TimeFieldFormat = time.StampMilli
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {

	var preprocessor string
	flagFunc := func() {
		flag.StringVar(
			&preprocessor,
			"preprocessor",
			ocrlens.PreprocessorIdentity,
			"The preprocessor to use, eg, deskew, binarize, invert, remove-lines",
		)

	}

	workerConfig, err := ocrlens.DefaultConfigFlagsWorkerOverride(flagFunc)
	if err != nil {
		log.Fatal().Err(err).Str("component", "PREPROCESSOR_WORKER").Msg("error getting arguments")
	}
	if workerConfig.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// infinite loop, since sometimes worker <-> rabbitmq connection
	// gets broken.
	for {
		log.Info().Str("component", "PREPROCESSOR_WORKER").Str("preprocessor", preprocessor).
			Msg("Creating new Preprocessor Worker")
		preprocessorWorker, err := ocrlens.NewPreprocessorRpcWorker(
			workerConfig.RabbitConfig,
			preprocessor,
			workerConfig.Engine.Pipeline,
		)
		if err != nil {
			log.Fatal().Err(err).Str("component", "PREPROCESSOR_WORKER").Msg("Could not create rpc worker")
		}
		if err = preprocessorWorker.Run(); err != nil {
			log.Error().Err(err).Str("component", "PREPROCESSOR_WORKER").Msg("preprocessor worker failed to start")
			time.Sleep(5 * time.Second)
			continue
		}

		// this happens when connection is closed
		err = <-preprocessorWorker.Done
		log.Error().Err(err).Str("component", "PREPROCESSOR_WORKER").Msg("preprocessor worker failed")
	}

}
