package ocrlens

import (
	"image"

	"gocv.io/x/gocv"
)

// ThicknessResult holds both variants of a stroke-thickness adjustment.
// The caller closes both Mats.
type ThicknessResult struct {
	Thin  gocv.Mat
	Thick gocv.Mat
}

func (r ThicknessResult) Close() {
	r.Thin.Close()
	r.Thick.Close()
}

// AdjustThickness denoises a grayscale page with a 3x3 median and returns a
// thinned and a thickened copy of its strokes. Both are derived from the
// same denoised image with a 2x2 element and one iteration.
func AdjustThickness(gray gocv.Mat) (ThicknessResult, error) {
	if err := requireChannels(gray, StageThickness, 1); err != nil {
		return ThicknessResult{Thin: gocv.NewMat(), Thick: gocv.NewMat()}, err
	}

	denoised := gocv.NewMat()
	defer denoised.Close()
	gocv.MedianBlur(gray, &denoised, 3)

	// morphology grows and shrinks bright pixels, flip dark ink to bright
	darkInk := gocv.Mean(denoised).Val1 >= 128
	if darkInk {
		gocv.BitwiseNot(denoised, &denoised)
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(2, 2))
	defer kernel.Close()

	thin := gocv.NewMat()
	gocv.Erode(denoised, &thin, kernel)
	thick := gocv.NewMat()
	gocv.Dilate(denoised, &thick, kernel)

	if darkInk {
		gocv.BitwiseNot(thin, &thin)
		gocv.BitwiseNot(thick, &thick)
	}
	return ThicknessResult{Thin: thin, Thick: thick}, nil
}
