package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	ocrlens "github.com/ocrify/lens"
)

// To test it:
// curl -F file=@page.png -F stages=deskew,binarize http://localhost:8080/preprocess
// curl -X POST -H "Content-Type: application/json" -d '{"img_url":"http://localhost:8081/img","engine":"tesseract"}' http://localhost:8080/ocr

func init() {
	zerolog.TimeFieldFormat = time.StampMilli
	// Default level is info, unless debug flag is present
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func main() {
	serviceConfig, err := ocrlens.DefaultConfigFlagsServiceOverride(ocrlens.NoOpFlagFunctionService())
	if err != nil {
		log.Fatal().Err(err).Str("component", "CLI_HTTP").Msg("error getting arguments")
	}
	if serviceConfig.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	service := ocrlens.NewOcrService(&serviceConfig)
	if cache, ok := service.Cache.(*ocrlens.RedisResultCache); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := cache.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("component", "CLI_HTTP").Msg("redis is not reachable, results will not be cached")
			service.Cache = nil
		}
		cancel()
		defer cache.Close()
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	// decides if we have resources for incoming requests
	go service.ResManager.Run(ctx)

	listenAddr := fmt.Sprintf(":%d", serviceConfig.HTTPPort)
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           ocrlens.NewServeMux(service),
		ReadHeaderTimeout: 30 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
		sig := <-signals
		log.Info().Str("component", "CLI_HTTP").Str("signal", sig.String()).
			Int("in_flight", service.ResManager.InFlight()).
			Msg("Caught signal to terminate, will not serve any further requests")
		service.ResManager.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serviceConfig.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Str("component", "CLI_HTTP").Msg("http daemon did not shut down cleanly")
		}
		stop()
		close(idleConnsClosed)
	}()

	log.Info().Str("component", "CLI_HTTP").Str("listenAddr", listenAddr).
		Bool("inplace_decode", serviceConfig.InplaceDecode).Msg("Starting listener...")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Str("component", "CLI_HTTP").Caller().Msg("cli_http has failed to start")
	}
	<-idleConnsClosed
	log.Info().Str("component", "CLI_HTTP").Msg("http daemon stopped")

}
