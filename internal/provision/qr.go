package provision

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// RenderQR encodes a configuration document as a terminal-printable QR
// code for transferring it to a mobile client.
func RenderQR(config string) (string, error) {
	qr, err := qrcode.New(config, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("error encoding QR code: %w", err)
	}
	return qr.ToSmallString(false), nil
}
