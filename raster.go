package ocrlens

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Layout selects how an upload is decoded for a stage.
type Layout int

const (
	LayoutColor = Layout(iota)
	LayoutGray
)

func (l Layout) String() string {
	if l == LayoutGray {
		return "gray"
	}
	return "color"
}

// DecodeImage decodes PNG/JPEG/TIFF bytes into a Mat of the requested layout.
// The caller owns the returned Mat.
func DecodeImage(raw []byte, layout Layout) (gocv.Mat, error) {
	if len(raw) == 0 {
		return gocv.NewMat(), errors.Wrap(ErrImageLoad, "empty input")
	}
	flags := gocv.IMReadColor
	if layout == LayoutGray {
		flags = gocv.IMReadGrayScale
	}
	img, err := gocv.IMDecode(raw, flags)
	if err != nil {
		return gocv.NewMat(), errors.Wrapf(ErrImageLoad, "decode: %v", err)
	}
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), errors.Wrap(ErrImageLoad, "decoder returned an empty image")
	}
	return img, nil
}

// EncodePNG encodes img losslessly.
func EncodePNG(img gocv.Mat) ([]byte, error) {
	if img.Empty() {
		return nil, errors.Wrap(ErrImageLoad, "nothing to encode")
	}
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, errors.Wrap(err, "png encode")
	}
	defer buf.Close()
	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

func requireChannels(img gocv.Mat, stage StageType, channels ...int) error {
	if img.Empty() {
		return errors.Wrapf(ErrImageLoad, "%s: empty image", stage)
	}
	for _, c := range channels {
		if img.Channels() == c {
			return nil
		}
	}
	return errors.Wrapf(ErrUnsupportedChannelLayout, "%s: got %d channels, want %v", stage, img.Channels(), channels)
}
