package ocrlens

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTranslateURL = "https://translate.googleapis.com/translate_a/single"
	// maxTranslateChars keeps a single GET below common URL size limits.
	maxTranslateChars = 4500
)

// LanguageDetector guesses the ISO 639-1 code of a text.
type LanguageDetector interface {
	Detect(text string) string
}

type WhatlangDetector struct{}

// Detect returns "" when the text is too short or ambiguous.
func (WhatlangDetector) Detect(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() && info.Confidence < 0.5 {
		return ""
	}
	return info.Lang.Iso6391()
}

type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// GoogleTranslator talks to the keyless translate_a/single endpoint.
type GoogleTranslator struct {
	BaseURL string
	Client  *http.Client
}

func NewGoogleTranslator() *GoogleTranslator {
	return &GoogleTranslator{
		BaseURL: DefaultTranslateURL,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GoogleTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if source == "" {
		source = "auto"
	}
	var translated strings.Builder
	for _, chunk := range chunkText(text, maxTranslateChars) {
		part, err := g.translateChunk(ctx, chunk, source, target)
		if err != nil {
			return "", err
		}
		translated.WriteString(part)
	}
	return translated.String(), nil
}

func (g *GoogleTranslator) translateChunk(ctx context.Context, text, source, target string) (string, error) {
	query := url.Values{}
	query.Set("client", "gtx")
	query.Set("sl", source)
	query.Set("tl", target)
	query.Set("dt", "t")
	query.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return "", err
	}
	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "translate")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return "", errors.Wrap(err, "translate: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate: unexpected status %s", resp.Status)
	}
	return parseTranslateResponse(body)
}

// parseTranslateResponse joins the translated sentence segments found in the
// first element of the nested response array.
func parseTranslateResponse(body []byte) (string, error) {
	var payload []interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", errors.Wrap(err, "translate: decode response")
	}
	if len(payload) == 0 {
		return "", errors.New("translate: empty response")
	}
	segments, ok := payload[0].([]interface{})
	if !ok {
		return "", errors.New("translate: unexpected response layout")
	}
	var out strings.Builder
	for _, segment := range segments {
		parts, ok := segment.([]interface{})
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			out.WriteString(s)
		}
	}
	return out.String(), nil
}

// chunkText splits text on line boundaries into pieces of at most limit
// bytes. Longer lines are cut at a rune boundary.
func chunkText(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	var current strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				// no rune start within limit, the bytes are not valid UTF-8
				cut = limit
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if current.Len()+len(line) > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// TranslateToEnglish detects the language of text and translates it to
// English unless it already is English. It returns the detected code.
func TranslateToEnglish(ctx context.Context, detector LanguageDetector, translator Translator, text string) (detected string, translation string, err error) {
	detected = detector.Detect(text)
	if detected == "en" {
		return detected, text, nil
	}
	source := detected
	if source == "" {
		source = "auto"
	}
	translation, err = translator.Translate(ctx, text, source, "en")
	if err != nil {
		log.Warn().Err(err).Str("component", "OCR_TRANSLATE").Str("source", source).Msg("translation failed")
		return detected, "", err
	}
	return detected, translation, nil
}
