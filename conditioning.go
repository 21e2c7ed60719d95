package ocrlens

import (
	"image"

	"gocv.io/x/gocv"
)

// toGray returns a single channel copy of img. Gray input is cloned.
func toGray(img gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	switch img.Channels() {
	case 1:
		img.CopyTo(&gray)
	case 4:
		gocv.CvtColor(img, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}
	return gray
}

// grayBlurred is toGray followed by a ksize x ksize gaussian blur.
func grayBlurred(img gocv.Mat, ksize int) gocv.Mat {
	gray := toGray(img)
	defer gray.Close()

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Pt(ksize, ksize), 0, 0, gocv.BorderDefault)
	return blurred
}
