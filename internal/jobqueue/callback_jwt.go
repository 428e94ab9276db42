// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package jobqueue

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// VerifyCallbackJWT validates a queue-service bearer JWT signed with the
// callback signing secret (HMAC). Managed queue services commonly present
// a short-lived JWT instead of a static token; both are accepted on the
// bearer fallback path, and either way the body-level HMAC signature
// header remains the preferred verification.
func VerifyCallbackJWT(signingSecret, tokenString string) bool {
	if signingSecret == "" || tokenString == "" {
		return false
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(signingSecret), nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}), jwt.WithExpirationRequired())
	if err != nil {
		return false
	}
	return token.Valid
}
