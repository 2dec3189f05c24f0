package service

import (
	"path"
	"strings"
	"time"

	"mealbot/internal/constants"
	"mealbot/internal/models"
	"mealbot/internal/validation"
	"mealbot/pkg/twilio"

	"github.com/google/uuid"
)

// interactiveBodies are short button-style replies Twilio delivers as plain
// text. They drive menus rather than free conversation.
var interactiveBodies = map[string]bool{
	"veg":     true,
	"non-veg": true,
	"nonveg":  true,
	"both":    true,
	"skip":    true,
	"none":    true,
	"yes":     true,
	"no":      true,
}

// NormalizeWebhook converts raw Twilio form fields into the canonical
// message value. It is total: malformed input yields a message with empty
// text, never an error.
func NormalizeWebhook(payload models.WebhookPayload) models.Message {
	sender := strings.TrimSpace(strings.TrimPrefix(payload.From, twilio.WhatsAppPrefix))

	messageID := strings.TrimSpace(payload.MessageSid)
	if validation.ValidateMessageID(messageID) != nil {
		messageID = "gen-" + uuid.NewString()
	}

	text := strings.TrimSpace(payload.Body)

	refs := mediaRefs(payload)

	kind := models.TextMessage
	switch {
	case len(refs) > 0:
		kind = models.MediaMessage
	case isInteractive(text):
		kind = models.InteractiveMessage
	}

	return models.Message{
		SenderID:   sender,
		MessageID:  messageID,
		Kind:       kind,
		Text:       text,
		MediaRefs:  refs,
		ReceivedAt: time.Now().UTC(),
	}
}

func mediaRefs(payload models.WebhookPayload) []models.MediaRef {
	count := payload.NumMedia
	if count > len(payload.MediaURLs) {
		count = len(payload.MediaURLs)
	}
	if count > constants.MaxMediaRefs {
		count = constants.MaxMediaRefs
	}

	var refs []models.MediaRef
	for _, url := range payload.MediaURLs[:count] {
		url = strings.TrimSpace(url)
		if url == "" {
			continue
		}
		refs = append(refs, models.MediaRef{
			URL:      url,
			MimeType: mimeFromURL(url),
		})
	}
	return refs
}

// mimeFromURL sniffs a mime type from the URL's file extension.
func mimeFromURL(url string) string {
	if idx := strings.IndexAny(url, "?#"); idx >= 0 {
		url = url[:idx]
	}

	switch strings.ToLower(strings.TrimPrefix(path.Ext(url), ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "mp4":
		return "video/mp4"
	case "mov":
		return "video/quicktime"
	case "mp3":
		return "audio/mpeg"
	case "wav":
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}

func isInteractive(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	if interactiveBodies[lower] {
		return true
	}
	if len(lower) > 2 {
		return false
	}
	for _, r := range lower {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
