package hashing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// ContentHash returns the lowercase hex sha256 of data. It identifies a
// document's raw bytes for dedup within a project.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashReader computes ContentHash while streaming, returning the hash and the
// bytes read.
func HashReader(r io.Reader) (string, []byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", nil, err
	}
	return ContentHash(data), data, nil
}

// SignPayload returns the lowercase hex HMAC-SHA256 of payload under secret.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches payload under secret,
// in constant time.
func VerifySignature(secret string, payload []byte, signature string) bool {
	expected := SignPayload(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
