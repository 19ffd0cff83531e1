package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrEmptyKey is returned when the configured signing key decodes to zero bytes.
var ErrEmptyKey = errors.New("signing key is empty")

// KeyFromBase64 decodes the base64-encoded symmetric signing key supplied in
// configuration. The returned slice is read-only after startup: it is decoded
// once and injected into the codec at construction.
func KeyFromBase64(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding signing key: %w", err)
	}
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	return key, nil
}
