package dto

import "time"

// InboundMessage is one message event delivered by the WhatsApp gateway.
type InboundMessage struct {
	Address       string    `json:"address" validate:"required"`
	Text          string    `json:"text"`
	HasAttachment bool      `json:"has_attachment"`
	MediaURL      string    `json:"media_url"`
	ReceivedAt    time.Time `json:"received_at"`
}
