package ocrlens

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const DefaultLanguage = "English"

// tesseractLanguages maps the language names offered to users onto
// tesseract traineddata codes.
var tesseractLanguages = map[string]string{
	"English": "eng",
	"Hindi":   "hin",
	"Tamil":   "tam",
	"Telugu":  "tel",
	"Kannada": "kan",
	"French":  "fra",
	"German":  "deu",
	"Spanish": "spa",
}

// SupportedLanguages returns the selectable language names sorted.
func SupportedLanguages() []string {
	names := make([]string, 0, len(tesseractLanguages))
	for name := range tesseractLanguages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LanguageCodes resolves language names (or raw tesseract codes) into codes.
// An empty selection means English.
func LanguageCodes(names []string) ([]string, error) {
	if len(names) == 0 {
		names = []string{DefaultLanguage}
	}
	codes := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		code, err := languageCode(name)
		if err != nil {
			return nil, err
		}
		if seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes, nil
}

// TesseractLanguageArg joins the codes the way tesseract's -l expects them.
func TesseractLanguageArg(names []string) (string, error) {
	codes, err := LanguageCodes(names)
	if err != nil {
		return "", err
	}
	return strings.Join(codes, "+"), nil
}

func languageCode(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	for n, code := range tesseractLanguages {
		if strings.EqualFold(n, trimmed) || code == strings.ToLower(trimmed) {
			return code, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownLanguage, "%q", name)
}

// splitList splits a comma separated form value.
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
