package ocrlens

import (
	"bytes"
	"image"
	"testing"

	"github.com/couchbaselabs/go.assert"
	"gocv.io/x/gocv"
)

func grayRowPage() gocv.Mat {
	page := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 1000, 1000, gocv.MatTypeCV8UC1)
	gocv.Line(&page, image.Pt(0, 500), image.Pt(999, 500), black, 1)
	return page
}

func TestBinarizeSeparatesRow(t *testing.T) {
	page := grayRowPage()
	defer page.Close()

	level, binary, err := Binarize(page)
	assert.True(t, err == nil)
	defer binary.Close()
	assert.True(t, level >= 120 && level <= 135)

	row := binary.Region(image.Rect(0, 500, 1000, 501))
	defer row.Close()
	assert.Equals(t, gocv.CountNonZero(row), 0)
	assert.Equals(t, gocv.CountNonZero(binary), 999*1000)
}

func TestBinarizeDeterministic(t *testing.T) {
	page := decodeTestPNG(t, textPage(t, "Determinism"), LayoutGray)
	defer page.Close()
	l1, b1, err := Binarize(page)
	assert.True(t, err == nil)
	defer b1.Close()
	l2, b2, err := Binarize(page)
	assert.True(t, err == nil)
	defer b2.Close()
	assert.Equals(t, l1, l2)
	assert.True(t, bytes.Equal(b1.ToBytes(), b2.ToBytes()))
}

func TestBinarizeRejectsColor(t *testing.T) {
	page := whitePage(10, 10)
	defer page.Close()
	_, _, err := Binarize(page)
	assert.True(t, err != nil)
}

func TestBinarizeUniformPageStaysWhite(t *testing.T) {
	page := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 20, 20, gocv.MatTypeCV8UC1)
	defer page.Close()
	level, binary, err := Binarize(page)
	assert.True(t, err == nil)
	defer binary.Close()
	assert.Equals(t, level, uint8(254))
	assert.Equals(t, gocv.CountNonZero(binary), 400)
}

func TestOtsuLevel(t *testing.T) {
	var hist [256]float64
	assert.Equals(t, otsuLevel(hist), uint8(0))

	hist[0] = 10
	hist[255] = 990
	assert.Equals(t, otsuLevel(hist), uint8(127))

	hist = [256]float64{}
	hist[50] = 100
	hist[200] = 100
	assert.Equals(t, otsuLevel(hist), uint8(124))

	hist = [256]float64{}
	hist[0] = 5
	assert.Equals(t, otsuLevel(hist), uint8(0))
}
