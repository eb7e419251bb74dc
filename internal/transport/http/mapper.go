package http

import (
	"github.com/rmacedo/salachat-server/internal/proto"
	"github.com/rmacedo/salachat-server/internal/store"
)

// UserResponse is the public view of a user account.
type UserResponse struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Color    string `json:"color"`
	Role     string `json:"role"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse is a single history message as returned over REST.
type MessageResponse struct {
	ID     int64  `json:"id"`
	User   string `json:"user"`
	Text   string `json:"text"`
	Avatar string `json:"avatar"`
	Color  string `json:"color"`
	TS     string `json:"ts"`
}

func userResponse(u *store.User) UserResponse {
	return UserResponse{
		Username: u.Username,
		Avatar:   u.Avatar,
		Color:    u.Color,
		Role:     string(u.Role),
	}
}

func messageResponses(msgs []*store.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageResponse{
			ID:     m.ID,
			User:   m.Author,
			Text:   m.Text,
			Avatar: m.Avatar,
			Color:  m.Color,
			TS:     proto.FormatTS(m.CreatedAt),
		})
	}
	return out
}
