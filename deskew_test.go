package ocrlens

import (
	"bytes"
	"image"
	"math"
	"testing"

	"github.com/couchbaselabs/go.assert"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// blockPage draws a filled 600x400 block in the middle of a white page and
// turns the page by angle degrees, counter-clockwise positive.
func blockPage(t *testing.T, angle float64) gocv.Mat {
	page := whitePage(1000, 1000)
	defer page.Close()
	gocv.Rectangle(&page, image.Rect(200, 300, 800, 700), black, -1)
	rotated, err := Rotate(page, angle)
	assert.True(t, err == nil)
	return rotated
}

func TestEstimateSkewRotatedBlock(t *testing.T) {
	page := blockPage(t, 7)
	defer page.Close()

	deskewer := NewDeskewer()
	angle, err := deskewer.EstimateSkew(page)
	assert.True(t, err == nil)
	assert.True(t, math.Abs(angle-(-7)) <= 1)

	corrected, straight, err := deskewer.Deskew(page)
	assert.True(t, err == nil)
	defer straight.Close()
	assert.True(t, math.Abs(corrected-angle) < 1e-9)
	assert.Equals(t, straight.Cols(), page.Cols())
	assert.Equals(t, straight.Rows(), page.Rows())

	residual, err := deskewer.EstimateSkew(straight)
	assert.True(t, err == nil)
	assert.True(t, math.Abs(residual) < 1)
}

func TestEstimateSkewOtherDirection(t *testing.T) {
	page := blockPage(t, -4)
	defer page.Close()
	angle, err := NewDeskewer().EstimateSkew(page)
	assert.True(t, err == nil)
	assert.True(t, math.Abs(angle-4) <= 1)
}

func TestDeskewBlankPage(t *testing.T) {
	page := whitePage(400, 300)
	defer page.Close()

	deskewer := NewDeskewer()
	_, err := deskewer.EstimateSkew(page)
	assert.True(t, err != nil)

	angle, out, err := deskewer.Deskew(page)
	assert.True(t, err == nil)
	defer out.Close()
	assert.Equals(t, angle, 0.0)
	assert.True(t, bytes.Equal(out.ToBytes(), page.ToBytes()))
}

func TestDeskewDeterministic(t *testing.T) {
	page := blockPage(t, 3)
	defer page.Close()
	deskewer := NewDeskewer()
	a1, out1, err := deskewer.Deskew(page)
	assert.True(t, err == nil)
	defer out1.Close()
	a2, out2, err := deskewer.Deskew(page)
	assert.True(t, err == nil)
	defer out2.Close()
	assert.Equals(t, a1, a2)
	assert.True(t, bytes.Equal(out1.ToBytes(), out2.ToBytes()))
}

func TestRotateRoundTrip(t *testing.T) {
	page := blockPage(t, 0)
	defer page.Close()

	there, err := Rotate(page, 5)
	assert.True(t, err == nil)
	defer there.Close()
	back, err := Rotate(there, -5)
	assert.True(t, err == nil)
	defer back.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(page, back, &diff)
	interior := diff.Region(image.Rect(250, 250, 750, 750))
	defer interior.Close()
	mean := interior.Mean()
	assert.True(t, mean.Val1 < 8)
}

func TestRotateEmpty(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	_, err := Rotate(empty, 3)
	assert.True(t, err != nil)
}

func TestEstimateSkewRejectsTwoChannels(t *testing.T) {
	img := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC2)
	defer img.Close()
	_, err := NewDeskewer().EstimateSkew(img)
	assert.True(t, err != nil)
}

func TestNormalizeSkewAngle(t *testing.T) {
	for raw, expected := range map[float64]float64{
		-83: -7,
		-7:  7,
		-45: 45,
		-90: 0,
		-46: -44,
	} {
		assert.Equals(t, normalizeSkewAngle(raw), expected)
	}
}

func TestLegacyRectAngle(t *testing.T) {
	axis := []image.Point{{0, 10}, {0, 0}, {20, 0}, {20, 10}}
	assert.Equals(t, legacyRectAngle(axis), -90.0)

	// long edge climbing to the right by 45 degrees on screen
	diagonal := []image.Point{{0, 100}, {100, 0}, {110, 10}, {10, 110}}
	assert.True(t, math.Abs(legacyRectAngle(diagonal)-(-45)) < 1e-9)

	assert.Equals(t, legacyRectAngle(nil), 0.0)
}

func TestParseSkewEstimator(t *testing.T) {
	e, err := ParseSkewEstimator("white-lines")
	assert.True(t, err == nil)
	assert.Equals(t, e, SkewWhiteLines)
	assert.Equals(t, e.String(), "white-lines")
	e, err = ParseSkewEstimator("")
	assert.True(t, err == nil)
	assert.Equals(t, e, SkewMinAreaRect)
	_, err = ParseSkewEstimator("hough")
	assert.True(t, err != nil)
}

func TestWhiteLinesEstimator(t *testing.T) {
	level := decodeTestPNG(t, textPage(t, "the quick brown fox", "jumps over the lazy", "dog once again"), LayoutColor)
	defer level.Close()
	page, err := Rotate(level, 7)
	assert.True(t, err == nil)
	defer page.Close()

	deskewer := &Deskewer{Estimator: SkewWhiteLines, MaxAngle: 10}
	angle, err := deskewer.EstimateSkew(page)
	assert.True(t, err == nil)
	assert.True(t, math.Abs(angle-(-7)) <= 1)

	corrected, straight, err := deskewer.Deskew(page)
	assert.True(t, err == nil)
	defer straight.Close()
	assert.True(t, math.Abs(corrected-angle) < 1e-9)

	residual, err := deskewer.EstimateSkew(straight)
	assert.True(t, err == nil)
	assert.True(t, math.Abs(residual) < 1)

	blank := whitePage(400, 300)
	defer blank.Close()
	_, err = deskewer.EstimateSkew(blank)
	assert.True(t, errors.Is(err, ErrDegenerateInput))
}
