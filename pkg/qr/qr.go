// Package qr renders pairing challenges as inline images the dashboard can
// drop straight into an <img> tag.
package qr

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultSize = 256

// DataURL encodes the payload as a PNG QR code wrapped in a data URL.
func DataURL(payload string) (string, error) {
	if payload == "" {
		return "", fmt.Errorf("qr payload is required")
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, defaultSize)
	if err != nil {
		return "", fmt.Errorf("encoding qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
