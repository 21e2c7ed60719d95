package ocrlens

import (
	"encoding/json"
	"net/http"
)

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
}

type translateResponse struct {
	Detected    string `json:"detected,omitempty"`
	Translation string `json:"translation"`
}

// TranslateHttpHandler serves POST /translate for text that was already
// recognised, eg after the user corrected it.
type TranslateHttpHandler struct {
	service *OcrService
}

func NewTranslateHttpHandler(s *OcrService) *TranslateHttpHandler {
	return &TranslateHttpHandler{service: s}
}

func (h *TranslateHttpHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()

	if req.Method != http.MethodPost {
		http.Error(w, "this endpoint only accepts POST requests", http.StatusMethodNotAllowed)
		return
	}
	body := translateRequest{}
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<20)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Unable to unmarshal json", err)
		return
	}
	if h.service.Translator == nil {
		http.Error(w, "translation is disabled", http.StatusServiceUnavailable)
		return
	}

	var (
		res translateResponse
		err error
	)
	ctx := req.Context()
	if body.Source == "" && (body.Target == "" || body.Target == "en") {
		res.Detected, res.Translation, err = TranslateToEnglish(ctx, h.service.detector(), h.service.Translator, body.Text)
	} else {
		target := body.Target
		if target == "" {
			target = "en"
		}
		res.Detected = body.Source
		res.Translation, err = h.service.Translator.Translate(ctx, body.Text, body.Source, target)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Unable to translate", err)
		return
	}
	writeJSON(w, res)
}
