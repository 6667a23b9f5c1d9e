package audit

import "gymmaster/pkg/logger"

const RedactedMarker = "[REDACTED]"

// Keys are stored normalised: lower case without '_' or '-'.
var sensitiveKeys = map[string]struct{}{
	"password":        {},
	"currentpassword": {},
	"newpassword":     {},
	"confirmpassword": {},
	"oldpassword":     {},
	"token":           {},
	"accesstoken":     {},
	"refreshtoken":    {},
	"otp":             {},
	"otpcode":         {},
	"otpsecret":       {},
	"secret":          {},
	"qrcode":          {},
}

func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[logger.NormalizeKey(key)]
	return ok
}

// Redact returns a copy of values with sensitive keys replaced at any depth.
func Redact(values map[string]interface{}) map[string]interface{} {
	if values == nil {
		return nil
	}
	out := make(map[string]interface{}, len(values))
	for key, value := range values {
		if IsSensitive(key) {
			out[key] = RedactedMarker
			continue
		}
		out[key] = redactValue(value)
	}
	return out
}

func redactValue(value interface{}) interface{} {
	switch typed := value.(type) {
	case map[string]interface{}:
		return Redact(typed)
	case []interface{}:
		out := make([]interface{}, len(typed))
		for i, item := range typed {
			out[i] = redactValue(item)
		}
		return out
	default:
		return value
	}
}
