package ocrlens

import (
	"image"

	"gocv.io/x/gocv"
)

const (
	lineKernelDivisor  = 20
	lineThresholdBlock = 15
	lineThresholdC     = -2
	lineMaskGrowIter   = 2
	lineInpaintRadius  = 5
)

// LineMask marks long horizontal and vertical rules of a color page. The
// kernels scale with the page so the result does not depend on resolution.
func LineMask(img gocv.Mat) (gocv.Mat, error) {
	if err := requireChannels(img, StageRemoveLines, 3); err != nil {
		return gocv.NewMat(), err
	}

	gray := toGray(img)
	defer gray.Close()

	inverted := gocv.NewMat()
	defer inverted.Close()
	gocv.BitwiseNot(gray, &inverted)

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.AdaptiveThreshold(inverted, &bin, 255, gocv.AdaptiveThresholdMean, gocv.ThresholdBinary,
		lineThresholdBlock, lineThresholdC)

	horizontal := openWith(bin, image.Pt(max(1, bin.Cols()/lineKernelDivisor), 1))
	defer horizontal.Close()
	vertical := openWith(bin, image.Pt(1, max(1, bin.Rows()/lineKernelDivisor)))
	defer vertical.Close()

	combined := gocv.NewMat()
	defer combined.Close()
	gocv.Add(horizontal, vertical, &combined)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()

	mask := combined.Clone()
	for i := 0; i < lineMaskGrowIter; i++ {
		grown := gocv.NewMat()
		gocv.Dilate(mask, &grown, kernel)
		mask.Close()
		mask = grown
	}
	return mask, nil
}

// RemoveLines inpaints the rules found by LineMask from the color page.
func RemoveLines(img gocv.Mat) (gocv.Mat, error) {
	mask, err := LineMask(img)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer mask.Close()

	cleaned := gocv.NewMat()
	if gocv.CountNonZero(mask) == 0 {
		img.CopyTo(&cleaned)
		return cleaned, nil
	}
	gocv.Inpaint(img, mask, &cleaned, lineInpaintRadius, gocv.Telea)
	return cleaned, nil
}

// openWith erodes then dilates src with a size rectangle, keeping only
// structures at least that large.
func openWith(src gocv.Mat, size image.Point) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, size)
	defer kernel.Close()

	eroded := gocv.NewMat()
	defer eroded.Close()
	gocv.Erode(src, &eroded, kernel)

	opened := gocv.NewMat()
	gocv.Dilate(eroded, &opened, kernel)
	return opened
}
