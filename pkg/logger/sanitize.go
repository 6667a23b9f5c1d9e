package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redacted = "***"

// Substrings of a normalised key that mark a log field as secret. Broader than
// the audit list: anything that merely contains "token" is masked in logs.
var sensitiveFragments = []string{
	"password",
	"token",
	"apikey",
	"otp",
	"secret",
	"qrcode",
	"authorization",
	"cookie",
}

// SanitizeFields masks secret-looking fields. Structured values (maps, slices,
// decoded JSON bodies) are walked so nested keys are masked too.
func SanitizeFields(fields []zap.Field) []zap.Field {
	if len(fields) == 0 {
		return fields
	}

	out := make([]zap.Field, len(fields))
	for i, field := range fields {
		out[i] = sanitizeField(field)
	}
	return out
}

func sanitizeField(field zap.Field) zap.Field {
	if IsSecretKey(field.Key) {
		return zap.String(field.Key, redacted)
	}

	if field.Type == zapcore.ReflectType {
		return zap.Any(field.Key, Mask(field.Interface))
	}
	return field
}

// Mask returns value with every secret key replaced, at any depth.
func Mask(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			if IsSecretKey(key) {
				out[key] = redacted
				continue
			}
			out[key] = Mask(item)
		}
		return out
	case map[string][]string:
		out := make(map[string][]string, len(typed))
		for key, items := range typed {
			if IsSecretKey(key) {
				out[key] = []string{redacted}
				continue
			}
			out[key] = items
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = Mask(item)
		}
		return out
	default:
		return value
	}
}

func IsSecretKey(key string) bool {
	normalized := NormalizeKey(key)
	if normalized == "" {
		return false
	}
	for _, fragment := range sensitiveFragments {
		if strings.Contains(normalized, fragment) {
			return true
		}
	}
	return false
}

// NormalizeKey lower-cases key and strips '_' and '-' so that
// "New-Password", "new_password" and "newPassword" compare equal.
func NormalizeKey(key string) string {
	normalized := strings.ToLower(strings.TrimSpace(key))
	normalized = strings.ReplaceAll(normalized, "-", "")
	return strings.ReplaceAll(normalized, "_", "")
}
