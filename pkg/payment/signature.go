package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayment computes the checkout signature the gateway sends back to the
// client after a successful payment: hex(HMAC-SHA256(secret, orderID + "|" +
// paymentID)). Exposed so tests and sandbox tooling can forge valid
// signatures.
func SignPayment(secret, orderID, paymentID string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyPaymentSignature recomputes the expected signature and compares in
// constant time. Returns ErrSignatureInvalid on mismatch.
func VerifyPaymentSignature(secret, orderID, paymentID, signature string) error {
	if secret == "" {
		return ErrSecretRequired
	}
	expected := SignPayment(secret, orderID, paymentID)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureInvalid
	}
	return nil
}
