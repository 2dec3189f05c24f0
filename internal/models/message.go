package models

import (
	"time"
)

// MessageKind tags the variant carried by a normalized inbound message.
type MessageKind string

const (
	TextMessage        MessageKind = "text"
	MediaMessage       MessageKind = "media"
	InteractiveMessage MessageKind = "interactive"
)

// MediaRef points at a provider-hosted media attachment.
type MediaRef struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// Message is the canonical in-memory form of one inbound provider message.
// It is produced by the normalizer and consumed exactly once by the router.
type Message struct {
	SenderID   string      `json:"sender_id"`
	MessageID  string      `json:"message_id"`
	Kind       MessageKind `json:"kind"`
	Text       string      `json:"text,omitempty"`
	MediaRefs  []MediaRef  `json:"media_refs,omitempty"`
	ReceivedAt time.Time   `json:"received_at"`
}

// WebhookPayload holds the form fields Twilio posts to the webhook endpoint.
type WebhookPayload struct {
	From       string
	To         string
	Body       string
	MessageSid string
	NumMedia   int
	MediaURLs  []string
}

// IncomingMessageRecord is the persisted idempotency row for one message_id.
type IncomingMessageRecord struct {
	ID           int64      `db:"id"`
	MessageID    string     `db:"message_id"`
	UserID       *int64     `db:"user_id"`
	FromIdentity string     `db:"from_identity"`
	RawPayload   string     `db:"raw_payload"`
	Processed    bool       `db:"processed"`
	CreatedAt    time.Time  `db:"created_at"`
	ProcessedAt  *time.Time `db:"processed_at"`
}

// OutgoingMessageRecord is the audit row written after each send attempt.
type OutgoingMessageRecord struct {
	ID                int64     `db:"id"`
	UserID            *int64    `db:"user_id"`
	ToIdentity        string    `db:"to_identity"`
	Body              string    `db:"body"`
	ProviderMessageID string    `db:"provider_message_id"`
	Status            string    `db:"status"`
	RawResponse       string    `db:"raw_response"`
	CreatedAt         time.Time `db:"created_at"`
}

// SessionRecord is one prompt/response audit entry for a classified exchange.
type SessionRecord struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Prompt    string    `db:"prompt"`
	Response  string    `db:"response"`
	CreatedAt time.Time `db:"created_at"`
}

// Outgoing message statuses recorded in the audit log.
const (
	SendStatusSent   = "sent"
	SendStatusFailed = "failed"
)
