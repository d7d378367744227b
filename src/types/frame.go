package types

import (
	"encoding/json"
	"time"
)

// FrameType is the dispatch tag of an inbound frame.
type FrameType string

const (
	FrameNewMessage         FrameType = "new_message"
	FrameMessageRead        FrameType = "message_read"
	FrameTyping             FrameType = "typing"
	FrameAttachmentUploaded FrameType = "attachment_uploaded"
	FrameThreadJoined       FrameType = "thread_joined"
	FrameThreadLeft         FrameType = "thread_left"
	FrameOrderStatus        FrameType = "order_status_changed"
	FrameError              FrameType = "error"
)

// Frame is one inbound message. Raw holds the full JSON object, type field included.
type Frame struct {
	Type FrameType
	Raw  json.RawMessage
}

// Decode unmarshals the frame into one of the typed payloads below.
func (f Frame) Decode(v any) error {
	return json.Unmarshal(f.Raw, v)
}

// MessageFrame is sent for new_message.
type MessageFrame struct {
	Type      FrameType `json:"type"`
	ThreadID  int64     `json:"thread_id"`
	MessageID int64     `json:"message_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AttachmentFrame is sent for attachment_uploaded.
type AttachmentFrame struct {
	Type      FrameType `json:"type"`
	ThreadID  int64     `json:"thread_id"`
	MessageID int64     `json:"message_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	Filename  string    `json:"filename"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// TypingFrame is sent for typing.
type TypingFrame struct {
	Type     FrameType `json:"type"`
	ThreadID int64     `json:"thread_id"`
	SenderID string    `json:"sender_id"`
	IsTyping bool      `json:"is_typing"`
}

// ReadFrame is sent for message_read.
type ReadFrame struct {
	Type      FrameType `json:"type"`
	ThreadID  int64     `json:"thread_id"`
	MessageID int64     `json:"message_id"`
	ReaderID  string    `json:"reader_id"`
}

// ThreadFrame acknowledges thread_joined and thread_left.
type ThreadFrame struct {
	Type     FrameType `json:"type"`
	ThreadID int64     `json:"thread_id"`
}

// OrderStatusFrame surfaces an order status transition inside a thread.
type OrderStatusFrame struct {
	Type     FrameType `json:"type"`
	ThreadID int64     `json:"thread_id"`
	OrderID  int64     `json:"order_id"`
	Status   string    `json:"status"`
}

// ErrorFrame reports a rejected command.
type ErrorFrame struct {
	Type    FrameType   `json:"type"`
	Command CommandName `json:"command,omitempty"`
	Message string      `json:"message"`
}
