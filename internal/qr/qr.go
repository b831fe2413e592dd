// Package qr renders asset codes as QR images for printed stickers.
package qr

import (
	"encoding/base64"
	"errors"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	defaultSize   = 256
	dataURLPrefix = "data:image/png;base64,"
)

// Encoder turns an asset code into a scannable QR image. The output only
// depends on the content, so the same code always yields the same image.
type Encoder struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewEncoder returns an encoder producing size×size pixel images. A
// non-positive size selects the default.
func NewEncoder(size int) *Encoder {
	if size <= 0 {
		size = defaultSize
	}
	return &Encoder{size: size, level: qrcode.Medium}
}

// PNG encodes content as a PNG image.
func (e *Encoder) PNG(content string) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("qr content is required")
	}
	return qrcode.Encode(content, e.level, e.size)
}

// DataURL encodes content as a base64 PNG data URL suitable for an <img> src.
func (e *Encoder) DataURL(content string) (string, error) {
	png, err := e.PNG(content)
	if err != nil {
		return "", err
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}
