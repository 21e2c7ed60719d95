package ocrlens

import "github.com/pkg/errors"

var (
	// ErrImageLoad is returned when the uploaded bytes can not be decoded
	// into a raster image.
	ErrImageLoad = errors.New("image could not be loaded")
	// ErrDegenerateInput marks input a stage can not derive anything from,
	// e.g. a blank page without foreground pixels.
	ErrDegenerateInput = errors.New("degenerate input")
	// ErrUnsupportedChannelLayout is returned when a stage gets an image
	// with the wrong number of channels.
	ErrUnsupportedChannelLayout = errors.New("unsupported channel layout")
	ErrUnknownStage             = errors.New("unknown stage")
	ErrUnknownLanguage          = errors.New("unknown language")
	ErrNoTesseract              = errors.New("tesseract binary not found")
)

// errorKinds names the sentinels that travel between workers and the http
// daemon in OcrResult.ErrorKind.
var errorKinds = []struct {
	kind string
	err  error
}{
	{"image_load", ErrImageLoad},
	{"degenerate_input", ErrDegenerateInput},
	{"unsupported_channel_layout", ErrUnsupportedChannelLayout},
	{"unknown_stage", ErrUnknownStage},
	{"unknown_language", ErrUnknownLanguage},
	{"no_tesseract", ErrNoTesseract},
}

// errorKind returns the wire name of the sentinel err wraps, "" if none.
func errorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return ""
}

// errorFromKind rebuilds an error reported by a worker, wrapping the
// sentinel named by kind when it is known.
func errorFromKind(kind, msg string) error {
	for _, k := range errorKinds {
		if k.kind == kind {
			return errors.Wrap(k.err, msg)
		}
	}
	return errors.New(msg)
}
