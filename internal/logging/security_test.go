// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSanitizeToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"short", "***"},
		{"exactly12chr", "***"},
		{"eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9", "eyJh...VCJ9"},
	}
	for _, c := range cases {
		if got := SanitizeToken(c.in); got != c.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizeError(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"connection refused", "connection refused"},
		{"invalid password provided", "authentication error"},
		{"bad Bearer header", "authentication error"},
		{"API_KEY mismatch", "authentication error"},
	}
	for _, c := range cases {
		if got := SanitizeError(c.in); got != c.want {
			t.Errorf("SanitizeError(%q) = %q, want %q", c.in, got, c.want)
		}
	}

	long := strings.Repeat("x", 300)
	if got := SanitizeError(long); len(got) != 203 || !strings.HasSuffix(got, "...") {
		t.Errorf("long error not truncated: len=%d", len(got))
	}
}

func TestSanitizeValue(t *testing.T) {
	if got := SanitizeValue("api_key", "abcdefghijklmnop"); got != "abcd...mnop" {
		t.Errorf("sensitive key not masked: %q", got)
	}
	if got := SanitizeValue("Signature", "abcdefghijklmnop"); got != "abcd...mnop" {
		t.Errorf("signature not masked: %q", got)
	}
	if got := SanitizeValue("rule_id", "R1"); got != "R1" {
		t.Errorf("benign value altered: %q", got)
	}
}

func TestSecurityLoggerEventLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewSecurityLoggerWithLogger(zerolog.New(&buf))

	l.LogEvent(&SecurityEvent{Event: "webhook_auth_failure", Surface: "/webhook", Success: false})
	out := buf.String()
	if !strings.Contains(out, `"level":"warn"`) {
		t.Errorf("failure not logged at warn: %s", out)
	}
	if !strings.Contains(out, "webhook_auth_failure") || !strings.Contains(out, "security_audit") {
		t.Errorf("audit fields missing: %s", out)
	}

	buf.Reset()
	l.LogEvent(&SecurityEvent{Event: "callback_verified", Success: true})
	if !strings.Contains(buf.String(), `"level":"info"`) {
		t.Errorf("success not logged at info: %s", buf.String())
	}
}

func TestSecurityLoggerHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewSecurityLoggerWithLogger(zerolog.New(&buf))

	l.LogWebhookAuthFailure("203.0.113.9", "curl/8.0")
	l.LogCallbackSignatureFailure("vectorize", "203.0.113.9")
	l.LogAdminTokenFailure("/admin/rules", "203.0.113.9")

	out := buf.String()
	for _, want := range []string{"webhook_auth_failure", "/_jobs/vectorize", "admin_token_invalid", "203.0.113.9"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestSecurityLoggerSanitizesErrors(t *testing.T) {
	var buf bytes.Buffer
	l := NewSecurityLoggerWithLogger(zerolog.New(&buf))

	l.LogEvent(&SecurityEvent{Event: "callback_signature_invalid", Error: "bad secret material here"})
	if strings.Contains(buf.String(), "secret material") {
		t.Errorf("sensitive error leaked: %s", buf.String())
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("hello", 10); got != "hello" {
		t.Errorf("short string modified: %q", got)
	}
	if got := truncateString("hello world", 5); got != "hello..." {
		t.Errorf("truncation = %q", got)
	}
}
