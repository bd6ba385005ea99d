package services

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"

	"greentera/internal/apperror"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

var errUnsupportedImage = errors.New("unsupported image format")

// ImageService turns an uploaded scan photo into a bounded JPEG for the
// classifier.
type ImageService struct {
	maxBytes     int
	maxDimension int
}

func NewImageService(maxBytes, maxDimension int) *ImageService {
	return &ImageService{maxBytes: maxBytes, maxDimension: maxDimension}
}

// stripDataURL removes a "data:image/...;base64," prefix.
func stripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		if i := strings.IndexByte(s, ','); i >= 0 {
			return s[i+1:]
		}
	}
	return s
}

// Decode checks the size limit and decodes the base64 payload.
func (s *ImageService) Decode(payload string) ([]byte, error) {
	data := stripDataURL(payload)
	if data == "" {
		return nil, apperror.ValidationFailed("image", "image is required")
	}
	if base64.StdEncoding.DecodedLen(len(data)) > s.maxBytes+3 {
		return nil, apperror.ValidationFailed("image", fmt.Sprintf("image must be at most %d KB", s.maxBytes/1024))
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return nil, apperror.ValidationFailed("image", "image must be base64 encoded")
		}
	}
	if len(raw) > s.maxBytes {
		return nil, apperror.ValidationFailed("image", fmt.Sprintf("image must be at most %d KB", s.maxBytes/1024))
	}
	return raw, nil
}

// ToJPEG decodes jpeg, png or webp bytes, shrinks the image to fit the
// configured dimension and re-encodes it as JPEG.
func (s *ImageService) ToJPEG(raw []byte) ([]byte, error) {
	var (
		img image.Image
		err error
	)
	switch http.DetectContentType(raw) {
	case "image/jpeg", "image/png":
		img, err = imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	case "image/webp":
		img, err = webp.Decode(bytes.NewReader(raw))
	default:
		return nil, errUnsupportedImage
	}
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > s.maxDimension || b.Dy() > s.maxDimension {
		img = imaging.Fit(img, s.maxDimension, s.maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
