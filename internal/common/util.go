package common

import (
	"crypto/rand"
	"encoding/base64"
)

// MakeURLSafeToken generates size random bytes and returns them encoded with
// unpadded URL-safe base64. It is used for bearer secrets.
func MakeURLSafeToken(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
