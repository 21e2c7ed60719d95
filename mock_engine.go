package ocrlens

const MOCK_ENGINE_RESPONSE = "mock engine decoder response"

type MockEngine struct {
}

// ProcessRequest answers every request with the same text
func (m MockEngine) ProcessRequest(ocrRequest *OcrRequest, engineConfig *EngineConfig) (OcrResult, error) {
	ocrPages.WithLabelValues(EngineMock.String()).Inc()
	return OcrResult{Text: MOCK_ENGINE_RESPONSE, Status: "done", Pages: 1}, nil
}
