package render

import (
	"image"

	"github.com/disintegration/gift"
)

// PostProcess upscales src to width x height when it was sampled at reduced
// resolution, then applies an optional Gaussian blur. src is returned as is
// when no filter applies.
func PostProcess(src *image.NRGBA, width, height int, blur float32) *image.NRGBA {
	var filters []gift.Filter
	if src.Bounds().Dx() != width || src.Bounds().Dy() != height {
		filters = append(filters, gift.Resize(width, height, gift.LinearResampling))
	}
	if blur > 0 {
		filters = append(filters, gift.GaussianBlur(blur))
	}
	if len(filters) == 0 {
		return src
	}

	g := gift.New(filters...)
	dst := image.NewNRGBA(g.Bounds(src.Bounds()))
	g.Draw(dst, src)
	return dst
}
