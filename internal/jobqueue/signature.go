// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package jobqueue

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// SignatureHeader carries the queue service's HMAC-SHA256 signature on an
// inbound job callback. Handlers reject requests whose signature does not
// verify; a bearer token is accepted only when this header is absent.
const SignatureHeader = "X-Queue-Signature"

// Sign computes the hex HMAC-SHA256 of body under the callback signing
// secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches body under secret,
// in constant time.
func VerifySignature(secret, signature string, body []byte) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyBearer compares a presented bearer token against the configured
// one in constant time.
func VerifyBearer(configured, presented string) bool {
	if configured == "" || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}
