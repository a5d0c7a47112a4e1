package api

import (
	"encoding/json"
	"time"
)

// ChatMessage is one message in a violation's chat.
type ChatMessage struct {
	ID          string    `json:"id"`
	ViolationID string    `json:"violation_id"`
	UserID      string    `json:"user_id"`
	UserName    string    `json:"user_name,omitempty"`
	Text        string    `json:"text"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChatFrameType discriminates incoming and outgoing socket frames.
type ChatFrameType string

// Known chat socket frame types. Frames of any other type are ignored.
const (
	FrameSubscribe      ChatFrameType = "subscribe"
	FrameMessage        ChatFrameType = "message"
	FrameMessageUpdated ChatFrameType = "message_updated"
	FrameMessageDeleted ChatFrameType = "message_deleted"
)

// ChatFrame is the wire envelope for chat socket traffic. Payload stays raw
// until the type is known so unknown or malformed frames can be dropped
// without failing the read loop.
type ChatFrame struct {
	Type    ChatFrameType   `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SubscribeFrame is the client→server control frame binding the socket to a
// violation's chat.
type SubscribeFrame struct {
	Type        ChatFrameType `json:"type"`
	ViolationID string        `json:"violation_id"`
}

// OutgoingMessageFrame is the client→server frame carrying a new message.
type OutgoingMessageFrame struct {
	Type        ChatFrameType `json:"type"`
	ViolationID string        `json:"violation_id"`
	Text        string        `json:"text"`
}

// DeletedPayload is the payload of a message_deleted frame.
type DeletedPayload struct {
	ID string `json:"id"`
}

// ChatMessageRequest is the body of the HTTP send and edit calls.
type ChatMessageRequest struct {
	Text string `json:"text"`
}
