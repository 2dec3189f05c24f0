package validation

import (
	"fmt"
	"strings"
	"unicode"

	"mealbot/internal/constants"
	apperrors "mealbot/internal/errors"
)

// ValidateSenderID checks a chat identity after the provider prefix has
// been stripped. Twilio sends E.164 numbers but short codes and sandbox
// identities can be as short as a few digits, so the floor stays low;
// anything non-numeric is a malformed or forged delivery.
func ValidateSenderID(sender string) error {
	if sender == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "sender identity cannot be empty")
	}

	cleaned := strings.TrimPrefix(sender, "+")

	if len(cleaned) < constants.MinSenderDigits {
		return apperrors.New(apperrors.ErrCodeInvalidInput,
			fmt.Sprintf("sender number must be at least %d digits", constants.MinSenderDigits))
	}
	if len(cleaned) > 20 {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "sender number too long (max 20 digits)")
	}

	for _, char := range cleaned {
		if !unicode.IsDigit(char) {
			return apperrors.New(apperrors.ErrCodeInvalidInput, "sender number must contain only digits")
		}
	}

	return nil
}

// ValidateMessageID bounds provider message ids before they become
// database keys and log fields.
func ValidateMessageID(messageID string) error {
	if messageID == "" {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "message ID cannot be empty")
	}

	if len(messageID) > constants.MaxMessageIDLength {
		return apperrors.New(apperrors.ErrCodeInvalidInput,
			fmt.Sprintf("message ID too long (max %d characters)", constants.MaxMessageIDLength))
	}

	for _, char := range messageID {
		if char == '\x00' || char == '\n' || char == '\r' || char == '\t' {
			return apperrors.New(apperrors.ErrCodeInvalidInput, "message ID contains invalid characters")
		}
	}

	return nil
}

// ValidateMessageBody caps inbound text. Oversized bodies are a sign of
// a misbehaving client, not a conversation.
func ValidateMessageBody(body string) error {
	if len(body) > constants.MaxMessageBodyLength {
		return apperrors.New(apperrors.ErrCodeInvalidInput,
			fmt.Sprintf("message body too long (max %d bytes)", constants.MaxMessageBodyLength))
	}
	return nil
}
