package ocrlens

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Binarize thresholds a grayscale page at its Otsu level. Ink ends up 0 and
// paper 255. The chosen threshold is returned alongside the image.
func Binarize(gray gocv.Mat) (uint8, gocv.Mat, error) {
	if err := requireChannels(gray, StageBinarize, 1); err != nil {
		return 0, gocv.NewMat(), err
	}
	level, err := OtsuThreshold(gray)
	if err != nil {
		return 0, gocv.NewMat(), err
	}
	binary := gocv.NewMat()
	gocv.Threshold(gray, &binary, float32(level), 255, gocv.ThresholdBinary)
	return level, binary, nil
}

// OtsuThreshold returns the level t that maximises the between-class
// variance of the classes [0, t] and (t, 255]. When a range of levels ties
// for the maximum, the middle of that range is returned, so a page holding
// only the values 0 and 255 splits at 127.
func OtsuThreshold(gray gocv.Mat) (uint8, error) {
	if err := requireChannels(gray, StageBinarize, 1); err != nil {
		return 0, err
	}
	var hist [256]float64
	if gray.IsContinuous() {
		pixels, err := gray.DataPtrUint8()
		if err != nil {
			return 0, errors.Wrap(err, "otsu: pixel access")
		}
		for _, p := range pixels {
			hist[p]++
		}
	} else {
		for y := 0; y < gray.Rows(); y++ {
			for x := 0; x < gray.Cols(); x++ {
				hist[gray.GetUCharAt(y, x)]++
			}
		}
	}
	return otsuLevel(hist), nil
}

func otsuLevel(hist [256]float64) uint8 {
	var total, sum float64
	for i, n := range hist {
		total += n
		sum += float64(i) * n
	}
	if total == 0 {
		return 0
	}

	const eps = 1e-9
	var w0, sum0 float64
	var first, last int
	best := -1.0
	for t := 0; t < 255; t++ {
		w0 += hist[t]
		sum0 += float64(t) * hist[t]
		w1 := total - w0
		if w0 == 0 || w1 == 0 {
			continue
		}
		mu0 := sum0 / w0
		mu1 := (sum - sum0) / w1
		between := w0 * w1 * (mu0 - mu1) * (mu0 - mu1)
		switch {
		case between > best+eps*best:
			best = between
			first, last = t, t
		case between >= best-eps*best:
			last = t
		}
	}
	if best < 0 {
		// single valued image, keep it as it is
		for i, n := range hist {
			if n > 0 && i > 0 {
				return uint8(i - 1)
			}
		}
		return 0
	}
	return uint8((first + last) / 2)
}
