// GORGONE - social ingestion and engagement-lifecycle engine
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lkmcompany/gorgone

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent is a security-relevant event for audit logging: a rejected
// webhook secret, a failed callback signature, an admin-token mismatch, or
// a remote rule-mirror auth failure.
type SecurityEvent struct {
	// Event is the event type, e.g. "webhook_auth_failure",
	// "callback_signature_invalid", "admin_token_invalid".
	Event string
	// Surface is the endpoint or subsystem the event occurred on.
	Surface string
	// IPAddress is the client's IP address.
	IPAddress string
	// UserAgent is the client's user agent (truncated).
	UserAgent string
	// Success indicates whether the authentication attempt succeeded.
	Success bool
	// Error is a sanitized error description.
	Error string
}

// SecurityLogger writes audit events on a dedicated logger so they can be
// filtered and retained separately from operational logs.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a SecurityLogger on the global logger.
func NewSecurityLogger() *SecurityLogger {
	return NewSecurityLoggerWithLogger(Logger())
}

// NewSecurityLoggerWithLogger creates a SecurityLogger on a specific
// logger, used by tests to capture output.
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{
		logger: logger.With().Str("log_type", "security_audit").Logger(),
	}
}

// LogEvent writes one audit event. Failures log at warn so they stand out
// in default log levels; successes log at info.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	var e *zerolog.Event
	if event.Success {
		e = l.logger.Info()
	} else {
		e = l.logger.Warn()
	}
	e = e.Str("event", event.Event)
	if event.Surface != "" {
		e = e.Str("surface", event.Surface)
	}
	if event.IPAddress != "" {
		e = e.Str("ip", event.IPAddress)
	}
	if event.UserAgent != "" {
		e = e.Str("user_agent", truncateString(event.UserAgent, 120))
	}
	if event.Error != "" {
		e = e.Str("error", SanitizeError(event.Error))
	}
	e.Bool("success", event.Success).Msg("security event")
}

// LogWebhookAuthFailure records a webhook delivery with a bad X-API-Key.
func (l *SecurityLogger) LogWebhookAuthFailure(ip, userAgent string) {
	l.LogEvent(&SecurityEvent{
		Event:     "webhook_auth_failure",
		Surface:   "/webhook",
		IPAddress: ip,
		UserAgent: userAgent,
	})
}

// LogCallbackSignatureFailure records a job callback whose signature (or
// fallback bearer token) did not verify.
func (l *SecurityLogger) LogCallbackSignatureFailure(topic, ip string) {
	l.LogEvent(&SecurityEvent{
		Event:     "callback_signature_invalid",
		Surface:   "/_jobs/" + topic,
		IPAddress: ip,
	})
}

// LogAdminTokenFailure records a rejected operator-endpoint request.
func (l *SecurityLogger) LogAdminTokenFailure(path, ip string) {
	l.LogEvent(&SecurityEvent{
		Event:     "admin_token_invalid",
		Surface:   path,
		IPAddress: ip,
	})
}

// SanitizeToken masks a token, showing only first and last 4 characters.
// Example: "eyJhbGciOiJSUzI1NiIsInR5cCI6IkpXVCJ9" -> "eyJh...VCJ9"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeError removes potentially sensitive information from error
// messages.
func SanitizeError(err string) string {
	sensitivePatterns := []string{
		"password",
		"secret",
		"token",
		"key",
		"bearer",
		"authorization",
		"cookie",
	}

	lowerErr := strings.ToLower(err)
	for _, pattern := range sensitivePatterns {
		if strings.Contains(lowerErr, pattern) {
			return "authentication error"
		}
	}
	return truncateString(err, 200)
}

// SanitizeValue sanitizes a value based on its key name, masking anything
// credential-like before it reaches a log line.
func SanitizeValue(key, value string) string {
	sensitiveKeys := map[string]bool{
		"token":         true,
		"password":      true,
		"secret":        true,
		"api_key":       true,
		"apikey":        true,
		"authorization": true,
		"bearer":        true,
		"signature":     true,
	}
	if sensitiveKeys[strings.ToLower(key)] {
		return SanitizeToken(value)
	}
	return value
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
