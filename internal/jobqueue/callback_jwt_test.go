// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package jobqueue

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signTestJWT(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign test jwt: %v", err)
	}
	return s
}

func TestVerifyCallbackJWT(t *testing.T) {
	const secret = "signing-secret"

	valid := signTestJWT(t, secret, jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "queue-service",
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	if !VerifyCallbackJWT(secret, valid) {
		t.Error("valid token rejected")
	}

	expired := signTestJWT(t, secret, jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Minute).Unix(),
	})
	if VerifyCallbackJWT(secret, expired) {
		t.Error("expired token accepted")
	}

	noExpiry := signTestJWT(t, secret, jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "queue-service",
	})
	if VerifyCallbackJWT(secret, noExpiry) {
		t.Error("token without expiry accepted")
	}

	wrongKey := signTestJWT(t, "other-secret", jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Minute).Unix(),
	})
	if VerifyCallbackJWT(secret, wrongKey) {
		t.Error("token signed with wrong key accepted")
	}

	if VerifyCallbackJWT(secret, "not-a-jwt") || VerifyCallbackJWT("", valid) || VerifyCallbackJWT(secret, "") {
		t.Error("malformed inputs accepted")
	}
}
