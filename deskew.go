package ocrlens

import (
	"image"
	"image/color"
	"math"

	"github.com/bmharper/docangle"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
)

const deskewBlurSize = 9

type SkewEstimator int

const (
	// SkewMinAreaRect fits a minimum area rectangle around all ink pixels.
	SkewMinAreaRect = SkewEstimator(iota)
	// SkewWhiteLines searches for the angle with the most blank scan lines.
	SkewWhiteLines
)

func (e SkewEstimator) String() string {
	if e == SkewWhiteLines {
		return "white-lines"
	}
	return "min-area-rect"
}

func ParseSkewEstimator(name string) (SkewEstimator, error) {
	switch name {
	case "", "min-area-rect":
		return SkewMinAreaRect, nil
	case "white-lines":
		return SkewWhiteLines, nil
	}
	return SkewMinAreaRect, errors.Errorf("unknown skew estimator %q", name)
}

// Deskewer estimates the skew of a page and rotates it level.
type Deskewer struct {
	Estimator SkewEstimator
	// MaxAngle bounds the white-lines search, in degrees.
	MaxAngle float64
}

func NewDeskewer() *Deskewer {
	return &Deskewer{Estimator: SkewMinAreaRect, MaxAngle: 10}
}

// EstimateSkew returns the rotation in degrees (counter-clockwise positive)
// that levels the text lines of img. A page without ink yields
// ErrDegenerateInput.
func (d *Deskewer) EstimateSkew(img gocv.Mat) (float64, error) {
	if err := requireChannels(img, StageDeskew, 1, 3, 4); err != nil {
		return 0, err
	}

	blurred := grayBlurred(img, deskewBlurSize)
	defer blurred.Close()

	// ink becomes the foreground
	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(blurred, &thresh, 0, 255, gocv.ThresholdBinaryInv+gocv.ThresholdOtsu)

	if gocv.CountNonZero(thresh) == 0 {
		return 0, errors.Wrap(ErrDegenerateInput, "no foreground pixels")
	}
	if d.Estimator == SkewWhiteLines {
		return d.estimateWhiteLines(img)
	}

	coords := gocv.NewMat()
	defer coords.Close()
	gocv.FindNonZero(thresh, &coords)

	points := gocv.NewPointVectorFromMat(coords)
	defer points.Close()

	rect := gocv.MinAreaRect(points)
	return normalizeSkewAngle(legacyRectAngle(rect.Points)), nil
}

// Deskew estimates the skew and returns a rotated copy of img with the same
// size. Blank pages come back unrotated with angle 0.
func (d *Deskewer) Deskew(img gocv.Mat) (float64, gocv.Mat, error) {
	angle, err := d.EstimateSkew(img)
	switch {
	case errors.Is(err, ErrDegenerateInput):
		log.Debug().Str("component", "PREPROCESS_DESKEW").Err(err).Msg("nothing to deskew")
		return 0, img.Clone(), nil
	case err != nil:
		return 0, gocv.NewMat(), err
	}

	rotated, err := Rotate(img, angle)
	if err != nil {
		return 0, gocv.NewMat(), err
	}
	log.Debug().Str("component", "PREPROCESS_DESKEW").Float64("angle", angle).Msg("deskewed")
	return angle, rotated, nil
}

// Rotate turns img about its center by angle degrees, counter-clockwise
// positive. The canvas keeps its size and exposed corners replicate the
// nearest edge pixels.
func Rotate(img gocv.Mat, angle float64) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.NewMat(), errors.Wrap(ErrImageLoad, "rotate: empty image")
	}
	if angle == 0 {
		return img.Clone(), nil
	}
	center := image.Pt(img.Cols()/2, img.Rows()/2)
	m := gocv.GetRotationMatrix2D(center, angle, 1)
	defer m.Close()

	rotated := gocv.NewMat()
	gocv.WarpAffineWithParams(img, &rotated, m, image.Pt(img.Cols(), img.Rows()),
		gocv.InterpolationLinear, gocv.BorderReplicate, color.RGBA{})
	return rotated, nil
}

// legacyRectAngle reports the orientation of a rotated rectangle in the
// [-90, 0) convention of OpenCV releases before 4.5.1. It is computed from
// the corner points so it does not depend on the linked OpenCV version.
func legacyRectAngle(corners []image.Point) float64 {
	if len(corners) < 3 {
		return 0
	}
	// use the longer of two adjacent edges for precision
	dx, dy := corners[1].X-corners[0].X, corners[1].Y-corners[0].Y
	ex, ey := corners[2].X-corners[1].X, corners[2].Y-corners[1].Y
	if ex*ex+ey*ey > dx*dx+dy*dy {
		dx, dy = ex, ey
	}
	if dx == 0 && dy == 0 {
		return 0
	}
	// the legacy angle is measured with the y axis pointing up
	a := math.Atan2(float64(-dy), float64(dx)) * 180 / math.Pi
	a = math.Mod(a, 90)
	if a >= 0 {
		a -= 90
	}
	return a
}

// normalizeSkewAngle resolves which rectangle edge the raw angle refers to.
func normalizeSkewAngle(raw float64) float64 {
	if raw < -45 {
		return -(90 + raw)
	}
	return -raw
}

// estimateWhiteLines asks docangle for the page angle. docangle measures in
// its own frame, so both turns are tried and the one leaving the smaller
// residual angle wins.
func (d *Deskewer) estimateWhiteLines(img gocv.Mat) (float64, error) {
	gray := toGray(img)
	defer gray.Close()

	angle, err := d.whiteLinesAngle(gray)
	if err != nil || angle == 0 {
		return 0, err
	}

	best, bestResidual := -angle, math.Inf(1)
	for _, candidate := range []float64{-angle, angle} {
		rotated, err := Rotate(gray, candidate)
		if err != nil {
			return 0, err
		}
		residual, err := d.whiteLinesAngle(rotated)
		rotated.Close()
		if err != nil {
			return 0, err
		}
		if math.Abs(residual) < bestResidual {
			best, bestResidual = candidate, math.Abs(residual)
		}
	}
	log.Debug().Str("component", "PREPROCESS_DESKEW").Float64("docangle", angle).
		Float64("angle", best).Float64("residual", bestResidual).Msg("white-lines estimate")
	return best, nil
}

func (d *Deskewer) whiteLinesAngle(gray gocv.Mat) (float64, error) {
	pixels, err := gray.DataPtrUint8()
	if err != nil {
		return 0, errors.Wrap(err, "white-lines: gray pixels")
	}

	params := docangle.NewWhiteLinesParams()
	params.MinDeltaDegrees = -d.MaxAngle
	params.MaxDeltaDegrees = d.MaxAngle
	params.Include90Degrees = false
	_, angle := docangle.GetAngleWhiteLines(&docangle.Image{
		Pixels: pixels,
		Width:  gray.Cols(),
		Height: gray.Rows(),
	}, params)
	return angle, nil
}
