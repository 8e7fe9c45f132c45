package ioutils

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	_ "image/png" // PNG decoder registration

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder registration
)

// ErrEmptyImage is returned when there are no bytes to decode.
var ErrEmptyImage = errors.New("empty image data")

// CoverOptions controls how a downloaded cover image is post-processed
// before it is written next to the audio file.
type CoverOptions struct {
	// Resize shrinks the image to fit MaxSize x MaxSize, keeping the aspect ratio.
	Resize  bool
	MaxSize int

	// ConvertToJPEG re-encodes PNG/WebP covers as JPEG.
	ConvertToJPEG bool
}

// ImageService provides image processing operations for cover art.
//
// ImageService is used to:
//   - Resize covers to fit maximum dimensions (for embedding in MP3 or saving)
//   - Convert covers to JPEG format (for better compatibility)
type ImageService struct {
	quality int
}

// NewImageService creates a new ImageService that encodes JPEG at quality 90.
func NewImageService() *ImageService {
	return &ImageService{quality: 90}
}

// Process applies opts to a cover image and returns the bytes to store.
//
// When neither option is enabled the input is returned untouched. A decode
// failure is returned to the caller, which treats the cover as best-effort.
func (s *ImageService) Process(ctx context.Context, data []byte, opts CoverOptions) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	out := data
	var err error
	if opts.Resize && opts.MaxSize > 0 {
		out, err = s.ResizeImage(ctx, out, opts.MaxSize, opts.MaxSize)
		if err != nil {
			return nil, err
		}
		// ResizeImage already encodes JPEG.
		return out, nil
	}
	if opts.ConvertToJPEG {
		out, err = s.ConvertToJPEG(ctx, out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ResizeImage resizes an image to fit within the specified maximum dimensions.
//
// The aspect ratio is preserved and images that already fit are left at their
// size. The result is always JPEG-encoded. Scaling uses Catmull-Rom.
//
// Example:
//
//	// A 1500x1000 cover becomes 1000x667
//	resized, err := svc.ResizeImage(ctx, imageData, 1000, 1000)
func (s *ImageService) ResizeImage(ctx context.Context, data []byte, maxWidth, maxHeight int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	width, height := fitWithin(bounds.Dx(), bounds.Dy(), maxWidth, maxHeight)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	return s.encode(dst)
}

// ConvertToJPEG re-encodes an image (JPEG, PNG or WebP) as JPEG.
func (s *ImageService) ConvertToJPEG(ctx context.Context, data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.encode(img)
}

func (s *ImageService) encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fitWithin scales width x height down to fit maxWidth x maxHeight.
func fitWithin(width, height, maxWidth, maxHeight int) (int, int) {
	if width <= maxWidth && height <= maxHeight {
		return width, height
	}
	ratio := float64(width) / float64(height)
	if float64(maxWidth)/float64(maxHeight) > ratio {
		// Height is the limiting factor
		return int(float64(maxHeight) * ratio), maxHeight
	}
	return maxWidth, int(float64(maxWidth) / ratio)
}
