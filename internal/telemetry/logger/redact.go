package logger

import (
	"log/slog"
	"strings"
)

// Values starting with one of these prefixes are masked wherever they
// appear.
var sensitiveValuePrefixes = []string{
	"$argon2id$", // Password hash
}

// Keys containing one of these patterns have their value redacted.
var sensitiveKeyPatterns = []string{
	"password",
	"hash",
	"secret",
	"token",
	"signature",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive redacts an attribute when its key or value looks
// sensitive. Groups are walked recursively.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		strVal := a.Value.String()
		if strVal == "" {
			return a
		}
		if IsSensitiveValue(strVal) || IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}
	return a
}

// RedactString masks a value before it is embedded in a message.
func RedactString(value string) string {
	if IsSensitiveValue(value) {
		return redactedValue
	}
	return value
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue checks if a value appears to be sensitive.
func IsSensitiveValue(value string) bool {
	for _, prefix := range sensitiveValuePrefixes {
		if strings.HasPrefix(value, prefix) {
			return true
		}
	}
	return false
}
