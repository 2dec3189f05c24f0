package privacy

import (
	"strings"
)

// MaskPhoneNumber masks a phone number showing only the last 4 digits.
// Channel prefixes such as "whatsapp:" are preserved unmasked.
// Example: "whatsapp:+919876543210" -> "whatsapp:+********3210"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	prefix := ""
	if idx := strings.Index(phone, ":"); idx >= 0 {
		prefix = phone[:idx+1]
		phone = phone[idx+1:]
	}

	if strings.HasPrefix(phone, "+") {
		if len(phone) <= 5 {
			return prefix + "+" + strings.Repeat("*", len(phone)-1)
		}
		return prefix + "+" + strings.Repeat("*", len(phone)-5) + phone[len(phone)-4:]
	}

	return prefix + maskString(phone, 4)
}

// MaskMessageID masks a message SID keeping the two-letter type prefix
// and the last 4 characters.
// Example: "SM1234567890abcdef" -> "SM************cdef"
func MaskMessageID(messageID string) string {
	if messageID == "" {
		return ""
	}

	if len(messageID) > 6 && isUpperAlpha(messageID[:2]) {
		return messageID[:2] + strings.Repeat("*", len(messageID)-6) + messageID[len(messageID)-4:]
	}

	return maskString(messageID, 4)
}

// MaskSenderID masks an external user identifier.
func MaskSenderID(senderID string) string {
	if senderID == "" {
		return ""
	}

	if strings.HasPrefix(senderID, "+") || strings.Contains(senderID, ":") || (len(senderID) >= 10 && isNumeric(senderID)) {
		return MaskPhoneNumber(senderID)
	}

	return maskString(senderID, 4)
}

// maskString masks a string showing only the last n characters
func maskString(s string, keepLast int) string {
	if s == "" {
		return ""
	}

	if len(s) <= keepLast {
		return strings.Repeat("*", len(s))
	}

	return strings.Repeat("*", len(s)-keepLast) + s[len(s)-keepLast:]
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func isUpperAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return len(s) > 0
}

// MaskSensitiveFields applies appropriate masking to common logging fields
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{})
	for k, v := range fields {
		switch k {
		case "phone", "phone_number", "from", "to":
			if s, ok := v.(string); ok {
				masked[k] = MaskPhoneNumber(s)
			} else {
				masked[k] = v
			}
		case "message_id", "message_sid":
			if s, ok := v.(string); ok {
				masked[k] = MaskMessageID(s)
			} else {
				masked[k] = v
			}
		case "sender_id", "user_id":
			if s, ok := v.(string); ok {
				masked[k] = MaskSenderID(s)
			} else {
				masked[k] = v
			}
		default:
			masked[k] = v
		}
	}

	return masked
}
