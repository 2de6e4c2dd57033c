package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidSignature means the payload digest did not match the signature
// header. The request must be rejected as unauthorized.
var ErrInvalidSignature = errors.New("webhook: invalid signature")

// VerifySignature checks a Squarespace webhook signature. The stored secret
// is a hex string; its decoded bytes are the HMAC-SHA256 key, and the
// signature is the hex digest of the raw request body.
func VerifySignature(signature string, payload []byte, secretHex string) error {
	key, err := hex.DecodeString(secretHex)
	if err != nil {
		return fmt.Errorf("webhook: malformed secret: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// BigCommerceToken derives the shared token BigCommerce is configured to send
// with each webhook delivery: the HMAC-SHA256 hex digest of
// "<store_hash>.<client_id>" under the signing secret.
func BigCommerceToken(storeHash, clientID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.%s", storeHash, clientID)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyBigCommerceToken checks a delivery token in constant time.
func VerifyBigCommerceToken(token, storeHash, clientID, secret string) error {
	expected := BigCommerceToken(storeHash, clientID, secret)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return ErrInvalidSignature
	}
	return nil
}
