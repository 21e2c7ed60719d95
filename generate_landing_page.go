package ocrlens

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"
)

var landingPage = template.Must(template.New("landing").Parse(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>OCRify Lens</title>
<style>html, body{font-family: sans-serif;} body {max-width: 960px; min-width: 320px; margin: 0 auto;}
section {margin: 3em 1.5em 0 1.5em;} fieldset {margin-top: 1em; border: 2px solid #000;}
label {display: inline-block; margin-right: 1em;} button {margin-top: 1em; padding: 6px 8px; background-color: #92cc41; border: 2px solid #000;}</style>
</head><body>
<section><h2>OCRify Lens</h2>
<form action="/preprocess" method="post" enctype="multipart/form-data">
<fieldset><legend>Preprocess</legend>
<input type="file" name="file" accept=".png,.jpg,.jpeg,.tif,.tiff,.pdf" required><br>
{{range .Stages}}<label><input type="checkbox" name="stages" value="{{.}}"> {{.}}</label>{{end}}<br>
<label><input type="radio" name="format" value="json" checked> JSON</label>
<label><input type="radio" name="format" value="pdf"> PDF</label><br>
<button type="submit">Preprocess</button>
</fieldset></form>
<form action="/ocr-file-upload" method="post" enctype="multipart/form-data">
<fieldset><legend>Recognise</legend>
<input type="file" name="file" accept=".png,.jpg,.jpeg,.tif,.tiff,.pdf" required><br>
{{range .Languages}}<label><input type="checkbox" name="languages" value="{{.}}"{{if eq . $.Default}} checked{{end}}> {{.}}</label>{{end}}<br>
<label>Clean up first <select name="stage"><option value="">none</option>{{range .SingleStages}}<option value="{{.}}">{{.}}</option>{{end}}</select></label>
<label><input type="checkbox" name="translate" value="true"> translate to English</label><br>
<button type="submit">Extract text</button>
</fieldset></form>
<p>Status: <a href="/status">/status</a> Metrics: <a href="/metrics">/metrics</a></p>
</section></body></html>`))

type landingPageData struct {
	Stages       []string
	SingleStages []string
	Languages    []string
	Default      string
}

// GenerateLandingPage will generate the upload page
func GenerateLandingPage() string {
	data := landingPageData{Languages: SupportedLanguages(), Default: DefaultLanguage}
	for _, stage := range AllStages {
		data.Stages = append(data.Stages, stage.String())
		if stage.SingleOutput() {
			data.SingleStages = append(data.SingleStages, stage.String())
		}
	}
	var buf bytes.Buffer
	if err := landingPage.Execute(&buf, data); err != nil {
		log.Error().Err(err).Str("component", "OCR_HTTP").Msg("landing page template failed")
		return ""
	}
	return buf.String()
}

// LandingPageHandler answers / with the upload page and 404 for anything
// not routed elsewhere.
func LandingPageHandler() http.Handler {
	page := GenerateLandingPage()
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	})
}
