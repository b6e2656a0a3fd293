package ioutils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder registration
	_ "image/jpeg" // JPEG decoder registration
	"image/png"

	_ "golang.org/x/image/bmp"  // BMP decoder registration
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder registration
)

// ErrNotImage is returned when data cannot be decoded as any registered
// image format.
var ErrNotImage = errors.New("not a decodable image")

// ImageService provides image checks and processing for fetched sprites.
//
// ImageService is used to:
//   - Reject responses whose body is not an image
//   - Scale images down to fit a maximum size before storing
//
// Example usage:
//
//	svc := NewImageService()
//
//	format, err := svc.Validate(ctx, data)
//	resized, err := svc.Fit(ctx, data, 96)
type ImageService struct{}

// NewImageService creates a new ImageService.
func NewImageService() *ImageService {
	return &ImageService{}
}

// Validate decodes data and returns the detected format name
// ("png", "jpeg", "gif", "bmp" or "webp").
//
// Returns an error wrapping ErrNotImage if decoding fails.
func (s *ImageService) Validate(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// A full decode catches truncated pixel data that DecodeConfig misses.
	_, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return format, nil
}

// Fit scales an image down so neither side exceeds maxSide and returns it
// PNG encoded.
//
// The aspect ratio is preserved. Images already within bounds are returned
// unchanged (not re-encoded). The Catmull-Rom algorithm is used for
// high-quality resizing.
//
// Example:
//
//	// A 475x300 sprite becomes 96x60
//	resized, err := svc.Fit(ctx, data, 96)
func (s *ImageService) Fit(ctx context.Context, data []byte, maxSide int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if maxSide <= 0 || (width <= maxSide && height <= maxSide) {
		return data, nil
	}

	// Calculate new dimensions maintaining aspect ratio
	if width >= height {
		height = max(1, height*maxSide/width)
		width = maxSide
	} else {
		width = max(1, width*maxSide/height)
		height = maxSide
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
