package model

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	MaxImagesPerClaim = 5
	MaxImageBytes     = 10 * 1024 * 1024
)

// ImagePayload is one raw damage photo. It is never persisted in the core store.
type ImagePayload struct {
	Data        []byte
	ContentType string
	Filename    string
}

var imageSignatures = map[string][][]byte{
	"image/jpeg": {{0xFF, 0xD8, 0xFF}},
	"image/png":  {{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}},
	"image/tiff": {{'I', 'I', 0x2A, 0x00}, {'M', 'M', 0x00, 0x2A}},
	"image/bmp":  {{'B', 'M'}},
}

// Extension returns a file extension for the payload, preferring the original filename
func (p *ImagePayload) Extension() string {
	if i := strings.LastIndex(p.Filename, "."); i >= 0 && i < len(p.Filename)-1 {
		return strings.ToLower(p.Filename[i:])
	}
	switch p.normalizedType() {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/tiff":
		return ".tiff"
	case "image/bmp":
		return ".bmp"
	}
	return ".bin"
}

func (p *ImagePayload) normalizedType() string {
	ct := strings.ToLower(strings.TrimSpace(p.ContentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ct == "image/jpg" {
		ct = "image/jpeg"
	}
	return ct
}

// Validate checks size, declared content type and magic bytes of the image at position idx
func (p *ImagePayload) Validate(idx int) error {
	field := fmt.Sprintf("images[%d]", idx)
	if len(p.Data) == 0 {
		return &FieldError{Field: field, Message: "is empty"}
	}
	if len(p.Data) > MaxImageBytes {
		return &FieldError{Field: field, Message: "exceeds maximum size of 10 MB"}
	}

	signatures, ok := imageSignatures[p.normalizedType()]
	if !ok {
		return &FieldError{
			Field:   field,
			Message: fmt.Sprintf("content type %q not supported (jpeg, png, tiff, bmp)", p.ContentType),
		}
	}
	for _, sig := range signatures {
		if bytes.HasPrefix(p.Data, sig) {
			return nil
		}
	}
	return &FieldError{Field: field, Message: "content does not match declared type " + p.normalizedType()}
}

// ValidateImages checks the image count limit and every payload
func ValidateImages(images []ImagePayload) error {
	if len(images) > MaxImagesPerClaim {
		return &FieldError{
			Field:   "images",
			Message: fmt.Sprintf("maximum %d images allowed per claim, got %d", MaxImagesPerClaim, len(images)),
		}
	}
	for i := range images {
		if err := images[i].Validate(i); err != nil {
			return err
		}
	}
	return nil
}
