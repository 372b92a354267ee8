package utils

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// ReadImage decodes a PNG, JPEG, GIF, BMP or WebP file.
func ReadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open image")
	}
	defer file.Close()
	img, _, err := image.Decode(file)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	return img, nil
}

func SaveImage(img image.Image, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "create image file")
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s", filename)
	}
	return errors.Wrapf(f.Close(), "close %s", filename)
}

// CenterSquare returns the largest centered square inside b.
func CenterSquare(b image.Rectangle) image.Rectangle {
	side := min(b.Dx(), b.Dy())
	sx := b.Min.X + (b.Dx()-side)/2
	sy := b.Min.Y + (b.Dy()-side)/2
	return image.Rect(sx, sy, sx+side, sy+side)
}

// PrepareSquare crops the centered square out of img and resamples it to
// size x size with bilinear filtering. The result is non-premultiplied, the
// layout the estimator reads.
func PrepareSquare(img image.Image, size int) *image.NRGBA {
	if size <= 0 {
		size = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	src := CenterSquare(img.Bounds())
	if src.Empty() {
		return dst
	}
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, src, xdraw.Src, nil)
	return dst
}
