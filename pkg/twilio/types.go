package twilio

import (
	"context"
)

// WhatsAppPrefix is the channel qualifier Twilio expects on WhatsApp
// addresses.
const WhatsAppPrefix = "whatsapp:"

// Client sends outbound messages through the Twilio REST API.
type Client interface {
	SendText(ctx context.Context, to, body string) (*MessageResponse, error)
	HealthCheck(ctx context.Context) error
}

// MessageResponse is the subset of the Twilio message resource the bot
// cares about.
type MessageResponse struct {
	SID          string  `json:"sid"`
	Status       string  `json:"status"`
	To           string  `json:"to"`
	From         string  `json:"from"`
	ErrorCode    *int    `json:"error_code"`
	ErrorMessage *string `json:"error_message"`
}

// apiError is the error document Twilio returns on non-2xx responses.
type apiError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}
