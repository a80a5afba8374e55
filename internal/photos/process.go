package photos

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"mime/multipart"
	"net/http"

	"golang.org/x/image/draw"
)

const (
	// MaxDimension bounds the longer side of a stored photo.
	MaxDimension = 1024
	// MaxPixels bounds the declared size of an upload before it is decoded.
	MaxPixels = 40_000_000
	// JPEGQuality is used when re-encoding every stored photo.
	JPEGQuality = 85
)

// ErrImageTooLarge is returned for uploads whose header declares more than
// MaxPixels pixels.
var ErrImageTooLarge = errors.New("photo dimensions too large")

// Normalize turns one upload into the JPEG that gets stored. Only JPEG and
// PNG are accepted, judged by content rather than file name. Images are
// shrunk so the longer side is at most MaxDimension.
func Normalize(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}

	switch ct := http.DetectContentType(data); ct {
	case "image/jpeg", "image/png":
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ct)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, shrink(src), &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding photo: %w", err)
	}
	return out.Bytes(), nil
}

func shrink(src image.Image) image.Image {
	b := src.Bounds()
	longest := max(b.Dx(), b.Dy())
	if longest <= MaxDimension {
		return src
	}
	w := max(1, b.Dx()*MaxDimension/longest)
	h := max(1, b.Dy()*MaxDimension/longest)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// OpenUploads opens the multipart files of a donation. The returned func
// closes whatever was opened and is safe to call on error.
func OpenUploads(files []*multipart.FileHeader) ([]io.Reader, func(), error) {
	opened := make([]multipart.File, 0, len(files))
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}
	readers := make([]io.Reader, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("opening %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)
		readers = append(readers, f)
	}
	return readers, closeAll, nil
}
