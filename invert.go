package ocrlens

import "gocv.io/x/gocv"

// Invert returns 255-v for every channel of a color page.
func Invert(img gocv.Mat) (gocv.Mat, error) {
	if err := requireChannels(img, StageInvert, 3); err != nil {
		return gocv.NewMat(), err
	}
	inverted := gocv.NewMat()
	gocv.BitwiseNot(img, &inverted)
	return inverted, nil
}
