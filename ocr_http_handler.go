package ocrlens

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
)

// OcrService holds everything the http handlers share.
type OcrService struct {
	Engine        *EngineConfig
	Rabbit        RabbitConfig
	InplaceDecode bool
	// Cache is optional.
	Cache      ResultCache
	Detector   LanguageDetector
	Translator Translator
	ResManager *ResManager
	// MaxUploadBytes bounds request bodies.
	MaxUploadBytes int64
	RequestTimeout time.Duration
}

// NewOcrService wires the service from its config. Redis is only used when
// an address is configured.
func NewOcrService(config *ServiceConfig) *OcrService {
	s := &OcrService{
		Engine:         &config.Engine,
		Rabbit:         config.Rabbit,
		InplaceDecode:  config.InplaceDecode,
		Detector:       WhatlangDetector{},
		Translator:     NewGoogleTranslator(),
		ResManager:     NewResManager(),
		MaxUploadBytes: config.MaxUploadBytes,
		RequestTimeout: config.RequestTimeout,
	}
	if config.ResManager && !config.InplaceDecode {
		s.ResManager = NewRabbitResManager(config.Rabbit)
	}
	if config.Redis.Addr != "" {
		s.Cache = NewRedisResultCache(config.Redis)
	}
	return s
}

// OcrHttpHandler serves POST /ocr with a JSON OcrRequest body.
type OcrHttpHandler struct {
	service *OcrService
}

func NewOcrHttpHandler(s *OcrService) *OcrHttpHandler {
	return &OcrHttpHandler{
		service: s,
	}
}

func (s *OcrHttpHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()

	if req.Method != http.MethodPost {
		http.Error(w, "this endpoint only accepts POST requests", http.StatusMethodNotAllowed)
		return
	}
	release, ok := s.service.admit(w)
	if !ok {
		return
	}
	defer release()

	ocrRequest := OcrRequest{}
	decoder := json.NewDecoder(http.MaxBytesReader(w, req.Body, s.service.maxUploadBytes()))
	if err := decoder.Decode(&ocrRequest); err != nil {
		log.Warn().Str("component", "OCR_HTTP").Err(err).
			Msg("did the client send a valid json?")
		http.Error(w, "Unable to unmarshal json", http.StatusBadRequest)
		return
	}

	ocrResult, httpStatus, err := s.service.HandleOcrRequest(req.Context(), &ocrRequest)
	if err != nil {
		writeError(w, httpStatus, "Unable to perform OCR decode", err)
		return
	}
	writeJSON(w, ocrResult)
}

// admit checks whether a request may be processed and answers 503 if not.
func (s *OcrService) admit(w http.ResponseWriter) (func(), bool) {
	if s.ResManager == nil {
		return func() {}, true
	}
	ok, stopping := s.ResManager.Acquire()
	if ok {
		return s.ResManager.Release, true
	}
	msg := "no resources available to process the request"
	if stopping {
		msg = "service is going down"
	}
	log.Warn().Str("component", "OCR_HTTP").Str("reason", msg).
		Msg("conditions for accepting new requests are not met")
	http.Error(w, msg, http.StatusServiceUnavailable)
	return nil, false
}

func (s *OcrService) maxUploadBytes() int64 {
	if s.MaxUploadBytes > 0 {
		return s.MaxUploadBytes
	}
	return maxDownloadBytes
}

// HandleOcrRequest recognises the request in place or through RabbitMQ and
// optionally translates the text. It returns the http status matching the
// outcome.
func (s *OcrService) HandleOcrRequest(ctx context.Context, ocrRequest *OcrRequest) (OcrResult, int, error) {

	requestID := ksuid.New().String()
	ocrRequest.RequestID = requestID
	defer timeTrack(time.Now(), "request", "ocr request handled", requestID)
	// RequestID will be printed on each logging event
	logger := log.With().Str("component", "OCR_HTTP").Str("RequestID", requestID).Logger()

	if err := ocrRequest.validate(); err != nil {
		return OcrResult{}, http.StatusBadRequest, err
	}
	if err := ocrRequest.loadImage(); err != nil {
		return OcrResult{}, httpStatusFor(err), err
	}
	logger.Info().Str("request", ocrRequest.String()).Msg("handling request")

	if s.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.RequestTimeout)
		defer cancel()
	}

	cacheKey := requestCacheKey(ocrRequest)
	if s.Cache != nil {
		cached, found, err := s.Cache.Get(ctx, cacheKey)
		if err != nil {
			logger.Warn().Err(err).Msg("result cache unavailable")
		} else if found {
			logger.Info().Msg("serving cached result")
			cached.ID = requestID
			return cached, http.StatusOK, nil
		}
	}

	ocrResult, err := s.decode(ocrRequest)
	if err != nil {
		logger.Error().Err(err).Msg("Error processing ocr request")
		return OcrResult{}, httpStatusFor(err), err
	}
	ocrResult.ID = requestID

	if ocrRequest.Translate && s.Translator != nil {
		detected, translation, err := TranslateToEnglish(ctx, s.detector(), s.Translator, ocrResult.Text)
		ocrResult.Detected = detected
		if err != nil {
			// the recognised text is still worth returning
			logger.Warn().Err(err).Msg("translation failed")
		} else {
			ocrResult.Translation = translation
		}
	}

	if s.Cache != nil && ocrResult.Status == "done" {
		if err := s.Cache.Set(ctx, cacheKey, ocrResult); err != nil {
			logger.Warn().Err(err).Msg("could not cache result")
		}
	}
	return ocrResult, http.StatusOK, nil
}

func (s *OcrService) decode(ocrRequest *OcrRequest) (OcrResult, error) {
	inplace := ocrRequest.InplaceDecode || s.InplaceDecode
	if inplace {
		// inplace decode: short circuit rabbitmq, and just call ocr engine directly
		ocrEngine := NewOcrEngine(ocrRequest.EngineType)
		if ocrEngine == nil {
			return OcrResult{}, errors.Errorf("unknown engine %d", int(ocrRequest.EngineType))
		}
		engineConfig := s.Engine
		if engineConfig == nil {
			defaults := DefaultEngineConfig()
			engineConfig = &defaults
		}
		return ocrEngine.ProcessRequest(ocrRequest, engineConfig)
	}

	// add a new job to rabbitMQ and wait for worker to respond w/ result
	ocrClient, err := NewOcrRpcClient(s.Rabbit)
	if err != nil {
		return OcrResult{}, err
	}
	return ocrClient.DecodeImage(ocrRequest, ocrRequest.RequestID)
}

func (s *OcrService) detector() LanguageDetector {
	if s.Detector == nil {
		return WhatlangDetector{}
	}
	return s.Detector
}

// httpStatusFor maps an error to the status reported to clients.
func httpStatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrUnknownStage), errors.Is(err, ErrUnknownLanguage):
		return http.StatusBadRequest
	case errors.Is(err, ErrImageLoad), errors.Is(err, ErrUnsupportedChannelLayout), errors.Is(err, ErrDegenerateInput):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, httpStatus int, msg string, err error) {
	if httpStatus < 400 {
		httpStatus = httpStatusFor(err)
	}
	event := log.Warn()
	if httpStatus >= 500 {
		event = log.Error()
	}
	event.Err(err).Str("component", "OCR_HTTP").Int("status", httpStatus).Msg(msg)
	http.Error(w, fmt.Sprintf("%s. Error: %v", msg, err), httpStatus)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	js, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(js); err != nil {
		log.Error().Err(err).Str("component", "OCR_HTTP").Msg("http write() failed")
	}
}
