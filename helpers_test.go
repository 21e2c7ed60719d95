package ocrlens

import (
	"image"
	"image/color"
	"testing"

	"github.com/couchbaselabs/go.assert"
	"gocv.io/x/gocv"
)

var black = color.RGBA{A: 255}

// whitePage returns a white BGR page of the given size.
func whitePage(width, height int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), height, width, gocv.MatTypeCV8UC3)
}

// textPage renders a few lines of large black text onto a white page.
func textPage(t *testing.T, lines ...string) []byte {
	page := whitePage(1200, 200+120*len(lines))
	defer page.Close()
	for i, line := range lines {
		gocv.PutText(&page, line, image.Pt(60, 150+120*i), gocv.FontHersheySimplex, 2.5, black, 5)
	}
	return encodeTestPNG(t, page)
}

func encodeTestPNG(t *testing.T, img gocv.Mat) []byte {
	png, err := EncodePNG(img)
	assert.True(t, err == nil)
	return png
}

func decodeTestPNG(t *testing.T, raw []byte, layout Layout) gocv.Mat {
	img, err := DecodeImage(raw, layout)
	assert.True(t, err == nil)
	return img
}
