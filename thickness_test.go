package ocrlens

import (
	"testing"

	"github.com/couchbaselabs/go.assert"
	"gocv.io/x/gocv"
)

// strokeWidth counts the dark pixels of row y.
func strokeWidth(img gocv.Mat, y int) int {
	width := 0
	for x := 0; x < img.Cols(); x++ {
		if img.GetUCharAt(y, x) < 128 {
			width++
		}
	}
	return width
}

// strokePage returns a 200x200 gray page with a vertical 4px stroke at
// columns 98 to 101.
func strokePage(background, ink uint8) gocv.Mat {
	page := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(background), 0, 0, 0), 200, 200, gocv.MatTypeCV8UC1)
	for y := 20; y < 180; y++ {
		for x := 98; x < 102; x++ {
			page.SetUCharAt(y, x, ink)
		}
	}
	return page
}

func TestAdjustThickness(t *testing.T) {
	page := strokePage(255, 0)
	defer page.Close()
	assert.Equals(t, strokeWidth(page, 100), 4)

	result, err := AdjustThickness(page)
	assert.True(t, err == nil)
	defer result.Close()

	thin := strokeWidth(result.Thin, 100)
	thick := strokeWidth(result.Thick, 100)
	assert.True(t, thin <= 4 && thin > 0)
	assert.True(t, thick >= 4)
	assert.True(t, thin < thick)
}

func TestAdjustThicknessLightInk(t *testing.T) {
	page := strokePage(0, 255)
	defer page.Close()

	result, err := AdjustThickness(page)
	assert.True(t, err == nil)
	defer result.Close()

	bright := func(img gocv.Mat) int { return img.Cols() - strokeWidth(img, 100) }
	assert.True(t, bright(result.Thin) < bright(result.Thick))
}

func TestAdjustThicknessRejectsColor(t *testing.T) {
	page := whitePage(10, 10)
	defer page.Close()
	_, err := AdjustThickness(page)
	assert.True(t, err != nil)
}
