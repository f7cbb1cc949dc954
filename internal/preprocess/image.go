package preprocess

import (
	"image"
	"io"
	"math"
	"os"

	apperrors "go-leaf-inspector/internal/errors"

	"github.com/disintegration/imaging"
)

// CanonicalSize is the side length every image is resized to before feature
// extraction. Classifiers were trained on 256x256 inputs.
const CanonicalSize = 256

// Plane is a single float channel in [0,1], row-major.
type Plane []float64

// View is a set of equally sized planes.
type View struct {
	Width, Height int
	Planes        []Plane
}

// Empty reports whether the view holds no pixels.
func (v View) Empty() bool {
	return v.Width <= 0 || v.Height <= 0 || len(v.Planes) == 0
}

// At returns the value of plane c at (x, y).
func (v View) At(c, x, y int) float64 {
	return v.Planes[c][y*v.Width+x]
}

// Image is a normalized image: RGB planes in R, G, B order and a single
// grayscale plane, both scaled to [0,1].
type Image struct {
	RGB  View
	Gray View
}

// Size returns the normalized dimensions.
func (img *Image) Size() (int, int) {
	return img.RGB.Width, img.RGB.Height
}

// Load reads and decodes the image file at path and normalizes it.
func Load(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewImageDecodeError("cannot open image "+path, err)
	}
	defer f.Close()

	src, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return Normalize(src), nil
}

// Decode decodes any format registered with the imaging package
// (JPEG, PNG, GIF, BMP, TIFF).
func Decode(r io.Reader) (image.Image, error) {
	img, err := imaging.Decode(r)
	if err != nil {
		return nil, apperrors.NewImageDecodeError("not a valid image", err)
	}
	return img, nil
}

// Normalize resizes img to CanonicalSize x CanonicalSize, ignoring the
// aspect ratio, and builds the RGB and grayscale views. A zero-area source
// yields empty views.
func Normalize(src image.Image) *Image {
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return &Image{}
	}

	resized := imaging.Resize(src, CanonicalSize, CanonicalSize, imaging.Linear)
	return fromNRGBA(resized)
}

// FromImage builds the views from img without resizing.
func FromImage(src image.Image) *Image {
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return &Image{}
	}
	return fromNRGBA(imaging.Clone(src))
}

func fromNRGBA(img *image.NRGBA) *Image {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	n := w * h

	r, g, bl, gray := make(Plane, n), make(Plane, n), make(Plane, n), make(Plane, n)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			i := y*w + x
			pr, pg, pb := row[x*4], row[x*4+1], row[x*4+2]
			r[i] = float64(pr) / 255
			g[i] = float64(pg) / 255
			bl[i] = float64(pb) / 255
			gray[i] = float64(Luma(pr, pg, pb)) / 255
		}
	}

	return &Image{
		RGB:  View{Width: w, Height: h, Planes: []Plane{r, g, bl}},
		Gray: View{Width: w, Height: h, Planes: []Plane{gray}},
	}
}

// Luma converts an 8-bit RGB pixel to 8-bit gray with the ITU-R 601 weights.
func Luma(r, g, b uint8) uint8 {
	y := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	return uint8(math.Min(255, math.Round(y)))
}

// ToByte scales a [0,1] value back to 8 bit, clamping out-of-range input.
func ToByte(v float64) uint8 {
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= 1:
		return 255
	}
	return uint8(math.Round(v * 255))
}
