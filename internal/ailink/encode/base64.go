package encode

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrEmptyPayload is returned for blank image payloads.
var ErrEmptyPayload = errors.New("empty base64 payload")

// DecodeBase64String decodes standard padded base64.
func DecodeBase64String(value string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(value)
}

// NormalizeImageBase64 strips an optional data URL prefix and whitespace and
// verifies the remainder decodes.
func NormalizeImageBase64(value string) (string, error) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "data:") {
		if _, payload, ok := strings.Cut(value, ","); ok {
			value = payload
		}
	}
	value = strings.Join(strings.Fields(value), "")
	if value == "" {
		return "", ErrEmptyPayload
	}
	if _, err := DecodeBase64String(value); err != nil {
		return "", err
	}
	return value, nil
}
