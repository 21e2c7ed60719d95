package ocrlens

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/couchbaselabs/go.assert"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

func workerConfigForTests() WorkerConfig {
	workerConfig := DefaultWorkerConfig()
	return workerConfig
}

func rabbitConfigForTests() RabbitConfig {
	rabbitConfig := DefaultRabbitConfig()
	return rabbitConfig
}

// This test assumes that rabbit mq is running
func DisabledTestOcrRpcClientIntegration(t *testing.T) {

	rabbitConfig := rabbitConfigForTests()
	workerConfig := workerConfigForTests()

	// kick off a worker
	// this would normally happen on a different machine ..
	ocrWorker, err := NewOcrRpcWorker(workerConfig)
	if err != nil {
		log.Error().Str("component", "TEST").Err(err).Msg("")
	}
	assert.True(t, ocrWorker.Run() == nil)

	ocrClient, err := NewOcrRpcClient(rabbitConfig)
	assert.True(t, err == nil)

	for i := 0; i < 50; i++ {
		ocrRequest := OcrRequest{ImgBytes: textPage(t, "integration"), EngineType: EngineMock}
		decodeResult, err := ocrClient.DecodeImage(&ocrRequest, "426d0ef9-a0c9-48cb-4562-f9d6f29a6ba5")
		assert.True(t, err == nil)
		assert.Equals(t, decodeResult.Text, MOCK_ENGINE_RESPONSE)
	}
}

func TestCheckReply(t *testing.T) {
	replies := make(chan OcrResult, 1)
	replies <- OcrResult{Text: "hello", Status: "done"}
	result, err := CheckReply(replies, time.Second)
	assert.True(t, err == nil)
	assert.Equals(t, result.Text, "hello")

	replies <- OcrResult{Text: "worker broke", Status: "error"}
	_, err = CheckReply(replies, time.Second)
	assert.True(t, err != nil)
	assert.Equals(t, err.Error(), "worker broke")

	// the failure kind reported by a worker survives the trip
	replies <- OcrResult{Text: "page is not an image", Status: "error", ErrorKind: "image_load"}
	_, err = CheckReply(replies, time.Second)
	assert.True(t, errors.Is(err, ErrImageLoad))
	assert.Equals(t, httpStatusFor(err), http.StatusUnprocessableEntity)

	replies <- OcrResult{Text: "odd", Status: "error", ErrorKind: "from a newer worker"}
	_, err = CheckReply(replies, time.Second)
	assert.Equals(t, httpStatusFor(err), http.StatusInternalServerError)

	result, err = CheckReply(replies, 10*time.Millisecond)
	assert.True(t, errors.Is(err, ErrRPCTimeout))
	assert.Equals(t, result.Status, "timeout")
}

func TestWorkerResultForDelivery(t *testing.T) {
	worker, err := NewOcrRpcWorker(workerConfigForTests())
	assert.True(t, err == nil)

	body, _ := json.Marshal(OcrRequest{ImgBytes: textPage(t, "worker"), EngineType: EngineMock, RequestID: "abc"})
	result, err := worker.resultForDelivery(body)
	assert.True(t, err == nil)
	assert.Equals(t, result.ID, "abc")
	assert.Equals(t, result.Text, MOCK_ENGINE_RESPONSE)

	body, _ = json.Marshal(OcrRequest{ImgBytes: []byte("no image at all"), EngineType: EngineTesseract, RequestID: "def"})
	result, err = worker.resultForDelivery(body)
	assert.True(t, errors.Is(err, ErrImageLoad))
	assert.Equals(t, result.Status, "error")
	assert.Equals(t, result.ErrorKind, "image_load")
	assert.Equals(t, result.ID, "def")

	result, err = worker.resultForDelivery([]byte("not json"))
	assert.True(t, err != nil)
	assert.Equals(t, result.Status, "error")
}

func TestRabbitPriority(t *testing.T) {
	rabbitConfig := DefaultRabbitConfig()
	rabbitConfig.QueuePrio["egvp"] = 9
	assert.Equals(t, rabbitConfig.priority("egvp"), uint8(9))
	assert.Equals(t, rabbitConfig.priority("letter"), uint8(1))

	rabbitConfig.QueuePrio = nil
	assert.Equals(t, rabbitConfig.priority("letter"), uint8(0))
}

func TestErrorKinds(t *testing.T) {
	for _, sentinel := range []error{ErrImageLoad, ErrDegenerateInput, ErrUnsupportedChannelLayout,
		ErrUnknownStage, ErrUnknownLanguage, ErrNoTesseract} {
		kind := errorKind(errors.Wrap(sentinel, "context"))
		assert.True(t, kind != "")
		assert.True(t, errors.Is(errorFromKind(kind, "remote"), sentinel))
	}
	assert.Equals(t, errorKind(errors.New("plain")), "")
	assert.Equals(t, errorFromKind("", "plain").Error(), "plain")
}
