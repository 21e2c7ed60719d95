package ocrlens

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/couchbaselabs/go.assert"
)

func TestGoogleTranslator(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		assert.Equals(t, r.URL.Query().Get("sl"), "fr")
		assert.Equals(t, r.URL.Query().Get("tl"), "en")
		fmt.Fprint(w, `[[["Hello ","Bonjour ",null,null,10],["world","monde",null,null,10]],null,"fr"]`)
	}))
	defer server.Close()

	translator := &GoogleTranslator{BaseURL: server.URL, Client: server.Client()}
	out, err := translator.Translate(context.Background(), "Bonjour monde", "fr", "en")
	assert.True(t, err == nil)
	assert.Equals(t, out, "Hello world")
	assert.True(t, strings.Contains(gotQuery, "client=gtx"))
}

func TestGoogleTranslatorErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	translator := &GoogleTranslator{BaseURL: server.URL, Client: server.Client()}
	_, err := translator.Translate(context.Background(), "Hallo", "auto", "en")
	assert.True(t, err != nil)

	out, err := translator.Translate(context.Background(), "  ", "auto", "en")
	assert.True(t, err == nil)
	assert.Equals(t, out, "  ")
}

func TestParseTranslateResponse(t *testing.T) {
	_, err := parseTranslateResponse([]byte(`{}`))
	assert.True(t, err != nil)
	_, err = parseTranslateResponse([]byte(`[]`))
	assert.True(t, err != nil)
	out, err := parseTranslateResponse([]byte(`[[["a",null],[null],["b"]]]`))
	assert.True(t, err == nil)
	assert.Equals(t, out, "ab")
}

func TestChunkText(t *testing.T) {
	text := strings.Repeat("abcd\n", 10)
	chunks := chunkText(text, 12)
	assert.Equals(t, strings.Join(chunks, ""), text)
	for _, c := range chunks {
		assert.True(t, len(c) <= 12)
	}

	long := strings.Repeat("ह", 10)
	chunks = chunkText(long, 7)
	assert.Equals(t, strings.Join(chunks, ""), long)
	for _, c := range chunks {
		assert.Equals(t, len(c)%3, 0)
	}
}

func TestChunkTextInvalidUTF8(t *testing.T) {
	broken := strings.Repeat("\x80", 6)
	chunks := chunkText(broken, 3)
	assert.Equals(t, len(chunks), 2)
	assert.Equals(t, strings.Join(chunks, ""), broken)
}

type fixedDetector string

func (f fixedDetector) Detect(string) string { return string(f) }

type echoTranslator struct{ calls int }

func (e *echoTranslator) Translate(_ context.Context, text, source, target string) (string, error) {
	e.calls++
	return source + ">" + target + ":" + text, nil
}

func TestTranslateToEnglish(t *testing.T) {
	translator := &echoTranslator{}
	detected, out, err := TranslateToEnglish(context.Background(), fixedDetector("en"), translator, "hello")
	assert.True(t, err == nil)
	assert.Equals(t, detected, "en")
	assert.Equals(t, out, "hello")
	assert.Equals(t, translator.calls, 0)

	detected, out, err = TranslateToEnglish(context.Background(), fixedDetector(""), translator, "xyz")
	assert.True(t, err == nil)
	assert.Equals(t, detected, "")
	assert.Equals(t, out, "auto>en:xyz")
}

func TestWhatlangDetector(t *testing.T) {
	detected := WhatlangDetector{}.Detect("Der schnelle braune Fuchs springt über den faulen Hund und läuft davon in den Wald")
	assert.Equals(t, detected, "de")
}
