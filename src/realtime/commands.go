package realtime

import (
	"fmt"

	"github.com/orchestra-mcp/realtime/src/types"
)

// SendCommand writes {"command": name, "data": data} immediately. It returns
// ErrNotConnected without touching the socket when the client is not open.
func (c *Client) SendCommand(name types.CommandName, data any) error {
	c.mu.Lock()
	conn := c.conn
	open := c.connected && conn != nil && conn.Open()
	c.mu.Unlock()

	if !open {
		return ErrNotConnected
	}
	if !name.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}

	payload, err := types.EncodeCommand(name, data)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(payload); err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}
	c.metrics.CommandSent(string(name))
	return nil
}

// JoinThread subscribes to a thread's frames.
func (c *Client) JoinThread(threadID int64) error {
	return c.SendCommand(types.CommandJoinThread, types.ThreadRef{ThreadID: threadID})
}

// LeaveThread stops receiving a thread's frames.
func (c *Client) LeaveThread(threadID int64) error {
	return c.SendCommand(types.CommandLeaveThread, types.ThreadRef{ThreadID: threadID})
}

// SendMessage posts content to a thread.
func (c *Client) SendMessage(threadID int64, content string) error {
	return c.SendCommand(types.CommandNewMessage, types.NewMessage{
		ThreadID: threadID,
		Content:  content,
	})
}

// UploadAttachment sends the file bytes inline, base64 encoded on the wire.
func (c *Client) UploadAttachment(threadID int64, content string, attachment types.Attachment) error {
	return c.SendCommand(types.CommandUploadAttachment, types.UploadAttachment{
		ThreadID:   threadID,
		Content:    content,
		Attachment: attachment,
	})
}

// SendTypingStatus tells the other members whether the user is typing.
func (c *Client) SendTypingStatus(threadID int64, isTyping bool) error {
	return c.SendCommand(types.CommandTyping, types.Typing{
		ThreadID: threadID,
		IsTyping: isTyping,
	})
}

// MarkMessageAsRead acknowledges messageID in a thread.
func (c *Client) MarkMessageAsRead(threadID, messageID int64) error {
	return c.SendCommand(types.CommandMarkRead, types.MarkRead{
		ThreadID:  threadID,
		MessageID: messageID,
	})
}
