package logger

import (
	"log/slog"
	"net/url"
	"strings"
)

// Attribute keys whose values are never logged verbatim.
var sensitiveKeyPatterns = []string{
	"authorization",
	"cookie",
	"password",
	"secret",
	"token",
	"credential",
}

// Keys that carry connection strings; only the password part is masked.
var connStringKeys = []string{"dsn", "database_url"}

const redactedValue = "***REDACTED***"

func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		v := a.Value.String()
		if v == "" {
			return a
		}
		key := strings.ToLower(a.Key)
		for _, k := range connStringKeys {
			if strings.Contains(key, k) {
				return slog.String(a.Key, RedactDSN(v))
			}
		}
		if IsSensitiveKey(key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// RedactDSN masks the password of a URL-style connection string.
// Key/value style strings ("host=... password=...") have the password
// value replaced as well.
func RedactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "xxxxx")
			return u.String()
		}
		return dsn
	}

	fields := strings.Fields(dsn)
	for i, f := range fields {
		if strings.HasPrefix(strings.ToLower(f), "password=") {
			fields[i] = "password=" + redactedValue
		}
	}
	return strings.Join(fields, " ")
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
