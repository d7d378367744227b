package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/orchestra-mcp/realtime/src/hub"
	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopConn satisfies types.Conn; frames are read from Client.Send directly.
type nopConn struct{}

func (nopConn) ReadMessage() ([]byte, error) {
	return nil, &types.CloseEvent{Code: types.CloseNormal, WasClean: true}
}
func (nopConn) WriteMessage([]byte) error { return nil }
func (nopConn) Open() bool                { return true }
func (nopConn) Close() error              { return nil }

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestChat(t *testing.T) *Chat {
	t.Helper()
	h := hub.New(zerolog.Nop())
	go h.Run()
	t.Cleanup(h.Stop)
	s := New(h, nil, zerolog.Nop())
	s.now = func() time.Time { return fixedNow }
	return s
}

func connect(t *testing.T, s *Chat, id string) *hub.Client {
	t.Helper()
	c := hub.NewClient(id, "user-"+id, nopConn{}, s.Hub())
	s.Hub().Register(c)
	require.Eventually(t, func() bool { return s.Hub().ClientInfo(id) != nil }, time.Second, time.Millisecond)
	return c
}

func envelope(t *testing.T, c *hub.Client, cmd types.CommandName, data any) types.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return types.Envelope{ConnID: c.ID, UserID: c.UserID, Command: cmd, Data: raw}
}

func next(t *testing.T, c *hub.Client) []byte {
	t.Helper()
	select {
	case frame := <-c.Send:
		return frame
	case <-time.After(time.Second):
		t.Fatalf("no frame for %s", c.ID)
		return nil
	}
}

func assertSilent(t *testing.T, c *hub.Client) {
	t.Helper()
	select {
	case frame := <-c.Send:
		t.Fatalf("unexpected frame for %s: %s", c.ID, frame)
	default:
	}
}

func join(t *testing.T, s *Chat, c *hub.Client, threadID int64) {
	t.Helper()
	require.NoError(t, s.joinThread(envelope(t, c, types.CommandJoinThread, types.ThreadRef{ThreadID: threadID})))
	assert.JSONEq(t, `{"type":"thread_joined","thread_id":`+itoa(threadID)+`}`, string(next(t, c)))
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestJoinAndLeaveThread(t *testing.T) {
	s := newTestChat(t)
	alice := connect(t, s, "alice")

	join(t, s, alice, 7)
	assert.True(t, s.Hub().IsSubscribed(7, "alice"))

	require.NoError(t, s.leaveThread(envelope(t, alice, types.CommandLeaveThread, types.ThreadRef{ThreadID: 7})))
	assert.JSONEq(t, `{"type":"thread_left","thread_id":7}`, string(next(t, alice)))
	assert.False(t, s.Hub().IsSubscribed(7, "alice"))

	err := s.leaveThread(envelope(t, alice, types.CommandLeaveThread, types.ThreadRef{ThreadID: 7}))
	assert.EqualError(t, err, "not a member of thread 7")
}

func TestJoinRequiresThreadID(t *testing.T) {
	s := newTestChat(t)
	alice := connect(t, s, "alice")

	err := s.joinThread(envelope(t, alice, types.CommandJoinThread, map[string]any{}))
	assert.EqualError(t, err, "join_thread: thread_id is required")

	err = s.joinThread(types.Envelope{ConnID: "alice", Command: types.CommandJoinThread})
	assert.EqualError(t, err, "join_thread: missing data")

	err = s.joinThread(types.Envelope{ConnID: "alice", Command: types.CommandJoinThread, Data: json.RawMessage(`{"thread_id":"x"}`)})
	assert.ErrorContains(t, err, "join_thread: invalid data")
}

func TestNewMessageBroadcastsToEveryMember(t *testing.T) {
	s := newTestChat(t)
	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	carol := connect(t, s, "carol")
	join(t, s, alice, 3)
	join(t, s, bob, 3)

	require.NoError(t, s.newMessage(envelope(t, alice, types.CommandNewMessage, types.NewMessage{ThreadID: 3, Content: "hi"})))

	want := `{"type":"new_message","thread_id":3,"message_id":1,"sender_id":"user-alice","content":"hi","created_at":"2026-03-01T12:00:00Z"}`
	assert.JSONEq(t, want, string(next(t, alice)))
	assert.JSONEq(t, want, string(next(t, bob)))
	assertSilent(t, carol)

	require.NoError(t, s.newMessage(envelope(t, bob, types.CommandNewMessage, types.NewMessage{ThreadID: 3, Content: "yo"})))
	var msg types.MessageFrame
	require.NoError(t, json.Unmarshal(next(t, alice), &msg))
	assert.Equal(t, int64(2), msg.MessageID)
	assert.Equal(t, "user-bob", msg.SenderID)
}

func TestNewMessageRejections(t *testing.T) {
	s := newTestChat(t)
	alice := connect(t, s, "alice")

	err := s.newMessage(envelope(t, alice, types.CommandNewMessage, types.NewMessage{ThreadID: 3, Content: "hi"}))
	assert.EqualError(t, err, "not a member of thread 3")

	join(t, s, alice, 3)
	err = s.newMessage(envelope(t, alice, types.CommandNewMessage, types.NewMessage{ThreadID: 3, Content: "  "}))
	assert.EqualError(t, err, "content is required")
}

type failingSequence struct{}

func (failingSequence) Next(context.Context) (int64, error) { return 0, errors.New("redis down") }

func TestNewMessageSequenceFailure(t *testing.T) {
	s := newTestChat(t)
	s.ids = failingSequence{}
	alice := connect(t, s, "alice")
	join(t, s, alice, 1)

	err := s.newMessage(envelope(t, alice, types.CommandNewMessage, types.NewMessage{ThreadID: 1, Content: "hi"}))
	assert.EqualError(t, err, "allocate message id: redis down")
	assertSilent(t, alice)
}

func TestUploadAttachment(t *testing.T) {
	s := newTestChat(t)
	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	join(t, s, alice, 9)
	join(t, s, bob, 9)

	up := types.UploadAttachment{
		ThreadID:   9,
		Content:    "invoice",
		Attachment: types.Attachment{FileData: []byte("%PDF-1.4"), Filename: "invoice.pdf"},
	}
	env := envelope(t, alice, types.CommandUploadAttachment, up)
	assert.Contains(t, string(env.Data), base64.StdEncoding.EncodeToString([]byte("%PDF-1.4")))
	require.NoError(t, s.uploadAttachment(env))

	var frame types.AttachmentFrame
	require.NoError(t, json.Unmarshal(next(t, bob), &frame))
	assert.Equal(t, types.FrameAttachmentUploaded, frame.Type)
	assert.Equal(t, "invoice.pdf", frame.Filename)
	assert.Equal(t, 8, frame.Size)
	assert.Equal(t, "invoice", frame.Content)
	assert.Equal(t, "user-alice", frame.SenderID)
	next(t, alice)
}

func TestUploadAttachmentRejections(t *testing.T) {
	s := newTestChat(t)
	alice := connect(t, s, "alice")
	join(t, s, alice, 9)

	tests := []struct {
		name string
		att  types.Attachment
		want string
	}{
		{"no filename", types.Attachment{FileData: []byte("x")}, "attachment filename is required"},
		{"empty", types.Attachment{Filename: "a.txt"}, "attachment is empty"},
		{"too large", types.Attachment{Filename: "big.bin", FileData: make([]byte, MaxAttachmentSize+1)}, "attachment exceeds 10485760 bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := envelope(t, alice, types.CommandUploadAttachment, types.UploadAttachment{ThreadID: 9, Attachment: tt.att})
			assert.EqualError(t, s.uploadAttachment(env), tt.want)
		})
	}
	assertSilent(t, alice)
}

func TestTypingSkipsSender(t *testing.T) {
	s := newTestChat(t)
	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	join(t, s, alice, 4)
	join(t, s, bob, 4)

	require.NoError(t, s.typing(envelope(t, alice, types.CommandTyping, types.Typing{ThreadID: 4, IsTyping: true})))

	assert.JSONEq(t, `{"type":"typing","thread_id":4,"sender_id":"user-alice","is_typing":true}`, string(next(t, bob)))
	assertSilent(t, alice)
}

func TestTypingValidation(t *testing.T) {
	s := newTestChat(t)
	alice := connect(t, s, "alice")

	err := s.typing(envelope(t, alice, types.CommandTyping, map[string]any{"thread_id": 4, "is_typing": "yes"}))
	assert.EqualError(t, err, "is_typing must be a boolean")

	err = s.typing(envelope(t, alice, types.CommandTyping, map[string]any{"is_typing": true}))
	assert.EqualError(t, err, "typing: thread_id is required")

	err = s.typing(envelope(t, alice, types.CommandTyping, types.Typing{ThreadID: 4, IsTyping: false}))
	assert.EqualError(t, err, "not a member of thread 4")
}

func TestMarkRead(t *testing.T) {
	s := newTestChat(t)
	alice := connect(t, s, "alice")
	bob := connect(t, s, "bob")
	join(t, s, alice, 2)
	join(t, s, bob, 2)

	require.NoError(t, s.markRead(envelope(t, bob, types.CommandMarkRead, types.MarkRead{ThreadID: 2, MessageID: 41})))

	assert.JSONEq(t, `{"type":"message_read","thread_id":2,"message_id":41,"reader_id":"user-bob"}`, string(next(t, alice)))
	assertSilent(t, bob)

	err := s.markRead(envelope(t, bob, types.CommandMarkRead, types.ThreadRef{ThreadID: 2}))
	assert.EqualError(t, err, "message_id is required")
}

func TestPublishOrderStatus(t *testing.T) {
	s := newTestChat(t)
	alice := connect(t, s, "alice")
	join(t, s, alice, 5)

	require.NoError(t, s.PublishOrderStatus(5, 1001, "shipped"))
	assert.JSONEq(t, `{"type":"order_status_changed","thread_id":5,"order_id":1001,"status":"shipped"}`, string(next(t, alice)))

	assert.Error(t, s.PublishOrderStatus(5, 0, "shipped"))
	assert.Error(t, s.PublishOrderStatus(5, 1001, ""))
}

func TestStamp(t *testing.T) {
	frame, err := stamp(types.FrameTyping, "thread_id", int64(1), "sender_id", "u", "is_typing", false)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"typing","thread_id":1,"sender_id":"u","is_typing":false}`, string(frame))
}

func TestMemorySequence(t *testing.T) {
	var seq MemorySequence
	for want := int64(1); want <= 3; want++ {
		got, err := seq.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
