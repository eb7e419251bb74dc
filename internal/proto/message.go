// Package proto defines the JSON envelope exchanged over the realtime socket.
package proto

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message types sent by clients.
const (
	TypeIdentify = "identify"
	TypeSend     = "send"
	TypeLeave    = "leave"
)

// Message types sent by the server.
const (
	TypeHistory        = "history"
	TypeMessage        = "message"
	TypeOnlineUsers    = "online_users"
	TypeUsers          = "users"
	TypeMessageDeleted = "message_deleted"
	TypeError          = "error"
)

// Envelope is the outer frame for every socket message. Data holds the
// type-specific payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IdentifyData announces which user this session belongs to.
type IdentifyData struct {
	Username string `json:"username"`
}

// SendData carries an outbound chat message from a client.
type SendData struct {
	Text   string `json:"text"`
	Avatar string `json:"avatar,omitempty"`
	Color  string `json:"color,omitempty"`
}

// ChatMessage is a single chat message as delivered to clients.
type ChatMessage struct {
	ID     int64  `json:"id"`
	User   string `json:"user"`
	Text   string `json:"text"`
	Avatar string `json:"avatar"`
	Color  string `json:"color"`
	TS     string `json:"ts"`
}

// HistoryData delivers recent messages to a freshly identified session.
type HistoryData struct {
	Messages []ChatMessage `json:"messages"`
}

// UserListData carries the current set of usernames, either everyone online
// (online_users) or every registered account (users).
type UserListData struct {
	Usernames []string `json:"usernames"`
}

// MessageDeletedData tells clients to drop a message from their view.
type MessageDeletedData struct {
	ID int64 `json:"id"`
}

// ErrorData reports a per-session failure.
type ErrorData struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// FormatTS renders a timestamp the way clients expect it.
func FormatTS(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// Encode marshals a payload into an envelope of the given type.
func Encode(msgType string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s data: %w", msgType, err)
		}
		raw = b
	}
	return json.Marshal(Envelope{Type: msgType, Data: raw})
}

// Decode parses an envelope from raw bytes.
func Decode(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("decode envelope: missing type")
	}
	return &env, nil
}

// DecodeData parses the envelope payload into dst.
func DecodeData(env *Envelope, dst any) error {
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("decode %s data: %w", env.Type, err)
	}
	return nil
}
