package types

import (
	"encoding/json"
	"fmt"
)

// CommandName identifies an outbound command.
type CommandName string

const (
	CommandJoinThread       CommandName = "join_thread"
	CommandLeaveThread      CommandName = "leave_thread"
	CommandNewMessage       CommandName = "new_message"
	CommandUploadAttachment CommandName = "upload_attachment"
	CommandTyping           CommandName = "typing"
	CommandMarkRead         CommandName = "mark_read"
)

// Commands lists every command the protocol knows about.
var Commands = []CommandName{
	CommandJoinThread,
	CommandLeaveThread,
	CommandNewMessage,
	CommandUploadAttachment,
	CommandTyping,
	CommandMarkRead,
}

// Valid reports whether c is one of the known commands.
func (c CommandName) Valid() bool {
	for _, known := range Commands {
		if c == known {
			return true
		}
	}
	return false
}

// Command is the outbound wire envelope.
type Command struct {
	Command CommandName     `json:"command"`
	Data    json.RawMessage `json:"data"`
}

// EncodeCommand serializes {"command": name, "data": data}.
func EncodeCommand(name CommandName, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", name, err)
	}
	return json.Marshal(Command{Command: name, Data: raw})
}

// DecodeCommand parses an outbound envelope as received by a server.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("decode command: %w", err)
	}
	if cmd.Command == "" {
		return cmd, fmt.Errorf("decode command: missing command name")
	}
	return cmd, nil
}

// ThreadRef is the payload of join_thread and leave_thread.
type ThreadRef struct {
	ThreadID int64 `json:"thread_id"`
}

// NewMessage is the payload of new_message.
type NewMessage struct {
	ThreadID int64  `json:"thread_id"`
	Content  string `json:"content"`
}

// Attachment carries raw file bytes; encoding/json writes them as base64.
type Attachment struct {
	FileData []byte `json:"file_data"`
	Filename string `json:"filename"`
}

// UploadAttachment is the payload of upload_attachment.
type UploadAttachment struct {
	ThreadID   int64      `json:"thread_id"`
	Content    string     `json:"content"`
	Attachment Attachment `json:"attachment"`
}

// Typing is the payload of typing.
type Typing struct {
	ThreadID int64 `json:"thread_id"`
	IsTyping bool  `json:"is_typing"`
}

// MarkRead is the payload of mark_read.
type MarkRead struct {
	ThreadID  int64 `json:"thread_id"`
	MessageID int64 `json:"message_id"`
}
