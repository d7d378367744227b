// Package service implements the relay's chat semantics on top of the hub:
// one handler per client command, each answering or fanning out frames.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/orchestra-mcp/realtime/src/hub"
	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// MaxAttachmentSize bounds upload_attachment file data after base64 decoding.
const MaxAttachmentSize = 10 << 20

// Sequence hands out message IDs.
type Sequence interface {
	Next(ctx context.Context) (int64, error)
}

// MemorySequence is a process-local Sequence.
type MemorySequence struct {
	n atomic.Int64
}

func (s *MemorySequence) Next(context.Context) (int64, error) {
	return s.n.Add(1), nil
}

// Chat provides the relay's command handlers.
type Chat struct {
	hub    *hub.Hub
	ids    Sequence
	logger zerolog.Logger
	now    func() time.Time
}

// New creates the chat service and registers its handlers on h.
// A nil ids uses a MemorySequence.
func New(h *hub.Hub, ids Sequence, logger zerolog.Logger) *Chat {
	if ids == nil {
		ids = &MemorySequence{}
	}
	s := &Chat{
		hub:    h,
		ids:    ids,
		logger: logger.With().Str("component", "chat").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	h.RegisterHandler(types.CommandJoinThread, s.joinThread)
	h.RegisterHandler(types.CommandLeaveThread, s.leaveThread)
	h.RegisterHandler(types.CommandNewMessage, s.newMessage)
	h.RegisterHandler(types.CommandUploadAttachment, s.uploadAttachment)
	h.RegisterHandler(types.CommandTyping, s.typing)
	h.RegisterHandler(types.CommandMarkRead, s.markRead)
	return s
}

// Hub returns the underlying hub.
func (s *Chat) Hub() *hub.Hub { return s.hub }

func (s *Chat) joinThread(env types.Envelope) error {
	var ref types.ThreadRef
	if err := decode(env, &ref); err != nil {
		return err
	}
	if ok := s.hub.Subscribe(ref.ThreadID, env.ConnID); !ok {
		return fmt.Errorf("client %s not found", env.ConnID)
	}
	s.logger.Debug().
		Str("client_id", env.ConnID).
		Int64("thread_id", ref.ThreadID).
		Msg("joined thread")
	return s.reply(env.ConnID, types.ThreadFrame{Type: types.FrameThreadJoined, ThreadID: ref.ThreadID})
}

func (s *Chat) leaveThread(env types.Envelope) error {
	var ref types.ThreadRef
	if err := decode(env, &ref); err != nil {
		return err
	}
	if ok := s.hub.Unsubscribe(ref.ThreadID, env.ConnID); !ok {
		return fmt.Errorf("not a member of thread %d", ref.ThreadID)
	}
	s.logger.Debug().
		Str("client_id", env.ConnID).
		Int64("thread_id", ref.ThreadID).
		Msg("left thread")
	return s.reply(env.ConnID, types.ThreadFrame{Type: types.FrameThreadLeft, ThreadID: ref.ThreadID})
}

func (s *Chat) newMessage(env types.Envelope) error {
	var msg types.NewMessage
	if err := decode(env, &msg); err != nil {
		return err
	}
	if strings.TrimSpace(msg.Content) == "" {
		return fmt.Errorf("content is required")
	}
	if err := s.member(env, msg.ThreadID); err != nil {
		return err
	}
	id, err := s.ids.Next(context.Background())
	if err != nil {
		return fmt.Errorf("allocate message id: %w", err)
	}
	return s.publish(msg.ThreadID, "", types.MessageFrame{
		Type:      types.FrameNewMessage,
		ThreadID:  msg.ThreadID,
		MessageID: id,
		SenderID:  env.UserID,
		Content:   msg.Content,
		CreatedAt: s.now(),
	})
}

func (s *Chat) uploadAttachment(env types.Envelope) error {
	var up types.UploadAttachment
	if err := decode(env, &up); err != nil {
		return err
	}
	if up.Attachment.Filename == "" {
		return fmt.Errorf("attachment filename is required")
	}
	if len(up.Attachment.FileData) == 0 {
		return fmt.Errorf("attachment is empty")
	}
	if len(up.Attachment.FileData) > MaxAttachmentSize {
		return fmt.Errorf("attachment exceeds %d bytes", MaxAttachmentSize)
	}
	if err := s.member(env, up.ThreadID); err != nil {
		return err
	}
	id, err := s.ids.Next(context.Background())
	if err != nil {
		return fmt.Errorf("allocate message id: %w", err)
	}
	return s.publish(up.ThreadID, "", types.AttachmentFrame{
		Type:      types.FrameAttachmentUploaded,
		ThreadID:  up.ThreadID,
		MessageID: id,
		SenderID:  env.UserID,
		Content:   up.Content,
		Filename:  up.Attachment.Filename,
		Size:      len(up.Attachment.FileData),
		CreatedAt: s.now(),
	})
}

// typing and markRead relay small fixed-shape frames; they are stamped with
// sjson instead of going through a struct.
func (s *Chat) typing(env types.Envelope) error {
	threadID, err := threadOf(env)
	if err != nil {
		return err
	}
	isTyping := gjson.GetBytes(env.Data, "is_typing")
	if !isTyping.IsBool() {
		return fmt.Errorf("is_typing must be a boolean")
	}
	if err := s.member(env, threadID); err != nil {
		return err
	}
	frame, err := stamp(types.FrameTyping,
		"thread_id", threadID,
		"sender_id", env.UserID,
		"is_typing", isTyping.Bool(),
	)
	if err != nil {
		return err
	}
	s.hub.Publish(threadID, frame, env.ConnID)
	return nil
}

func (s *Chat) markRead(env types.Envelope) error {
	threadID, err := threadOf(env)
	if err != nil {
		return err
	}
	messageID := gjson.GetBytes(env.Data, "message_id").Int()
	if messageID <= 0 {
		return fmt.Errorf("message_id is required")
	}
	if err := s.member(env, threadID); err != nil {
		return err
	}
	frame, err := stamp(types.FrameMessageRead,
		"thread_id", threadID,
		"message_id", messageID,
		"reader_id", env.UserID,
	)
	if err != nil {
		return err
	}
	s.hub.Publish(threadID, frame, env.ConnID)
	return nil
}

// PublishOrderStatus surfaces an order status change to everyone in the thread.
func (s *Chat) PublishOrderStatus(threadID, orderID int64, status string) error {
	if threadID <= 0 || orderID <= 0 || status == "" {
		return fmt.Errorf("thread_id, order_id and status are required")
	}
	return s.publish(threadID, "", types.OrderStatusFrame{
		Type:     types.FrameOrderStatus,
		ThreadID: threadID,
		OrderID:  orderID,
		Status:   status,
	})
}

func (s *Chat) member(env types.Envelope, threadID int64) error {
	if !s.hub.IsSubscribed(threadID, env.ConnID) {
		return fmt.Errorf("not a member of thread %d", threadID)
	}
	return nil
}

func (s *Chat) reply(clientID string, v any) error {
	frame, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if !s.hub.SendToClient(clientID, frame) {
		s.logger.Warn().Str("client_id", clientID).Msg("reply dropped")
	}
	return nil
}

func (s *Chat) publish(threadID int64, except string, v any) error {
	frame, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.hub.Publish(threadID, frame, except)
	return nil
}

func decode(env types.Envelope, v any) error {
	if len(env.Data) == 0 {
		return fmt.Errorf("%s: missing data", env.Command)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("%s: invalid data: %w", env.Command, err)
	}
	if ref := gjson.GetBytes(env.Data, "thread_id"); ref.Int() <= 0 {
		return fmt.Errorf("%s: thread_id is required", env.Command)
	}
	return nil
}

func threadOf(env types.Envelope) (int64, error) {
	ref := gjson.GetBytes(env.Data, "thread_id")
	if ref.Type != gjson.Number || ref.Int() <= 0 {
		return 0, fmt.Errorf("%s: thread_id is required", env.Command)
	}
	return ref.Int(), nil
}

// stamp builds {"type": ft, k1: v1, ...}.
func stamp(ft types.FrameType, kv ...any) ([]byte, error) {
	frame, err := sjson.SetBytes([]byte(`{}`), "type", string(ft))
	if err != nil {
		return nil, err
	}
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		if frame, err = sjson.SetBytes(frame, key, kv[i+1]); err != nil {
			return nil, err
		}
	}
	return frame, nil
}
