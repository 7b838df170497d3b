package ws

import "github.com/estately/chatkit/store"

// Wire frames are JSON text messages with exactly one field set, the
// field name selecting the event.

// ClientEvent is an outbound frame from the widget to the backend.
type ClientEvent struct {
	SendMessage *SendMessage `json:"send_message,omitempty"`
	Typing      *TypingState `json:"typing,omitempty"`
	OpenChat    *OpenChat    `json:"open_chat,omitempty"`
}

// ServerEvent is an inbound frame from the backend to the widget.
type ServerEvent struct {
	Message *store.Message `json:"message,omitempty"`
	Typing  *TypingState   `json:"typing,omitempty"`
}

// SendMessage relays one chat message. ClientRef is the sender's
// provisional id; backends echo it back inside the canonical message.
type SendMessage struct {
	ChatID      string           `json:"chatId"`
	To          string           `json:"to"`
	Text        string           `json:"text,omitempty"`
	Attachments []string         `json:"attachments,omitempty"`
	LeadCard    []store.LeadCard `json:"leadCard,omitempty"`
	ClientRef   string           `json:"clientRef,omitempty"`
}

// TypingState signals a party starting or stopping typing. Outbound
// frames carry ChatID, inbound frames carry UserID.
type TypingState struct {
	ChatID   string `json:"chatId,omitempty"`
	UserID   string `json:"userId,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

// OpenChat announces interest in a thread's live events.
type OpenChat struct {
	ChatID string `json:"chatId"`
}
