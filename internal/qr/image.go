package qr

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// imageSize is the rendered PNG edge in pixels. 256 leaves ample capacity
// margin for the JSON payload at medium error correction.
const imageSize = 256

// ImageDataURL renders the payload string as a PNG data URL for direct
// display in a client <img> tag.
func ImageDataURL(payloadString string) (string, error) {
	png, err := qrcode.Encode(payloadString, qrcode.Medium, imageSize)
	if err != nil {
		return "", fmt.Errorf("render qr image: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
