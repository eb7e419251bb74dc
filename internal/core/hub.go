package core

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/rmacedo/salachat-server/internal/proto"
	"github.com/rmacedo/salachat-server/internal/store"
)

// botUsername is the author of system join/leave messages. These are
// broadcast live but never persisted.
const botUsername = "Bot"

type clientCommand struct {
	client *Client
	cmd    Command
}

type noticeKind int

const (
	noticeUsersChanged noticeKind = iota
	noticeMessageDeleted
)

type notice struct {
	kind      noticeKind
	messageID int64
}

// Hub is the single room every session shares. One goroutine (Run) owns all
// session state, so identify, send and disconnect are serialized and every
// client observes history and live messages in the same order.
type Hub struct {
	users    store.UserStore
	messages store.MessageStore
	presence *Presence
	logger   zerolog.Logger

	historyLimit int

	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand
	notices    chan notice
	done       chan struct{}

	clients map[*Client]struct{}
}

// NewHub creates a hub over the given stores. Run must be started before
// clients are registered.
func NewHub(users store.UserStore, messages store.MessageStore, historyLimit int, logger zerolog.Logger) *Hub {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Hub{
		users:        users,
		messages:     messages,
		presence:     NewPresence(),
		logger:       logger.With().Str("component", "hub").Logger(),
		historyLimit: historyLimit,
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		commands:     make(chan clientCommand, 128),
		notices:      make(chan notice, 16),
		done:         make(chan struct{}),
		clients:      make(map[*Client]struct{}),
	}
}

// Run processes hub events until ctx is cancelled. It must be called exactly
// once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.closeOut()
			}
			h.clients = make(map[*Client]struct{})
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
		case c := <-h.unregister:
			h.handleUnregister(ctx, c)
		case cc := <-h.commands:
			h.handleCommand(ctx, cc.client, cc.cmd)
		case n := <-h.notices:
			h.handleNotice(ctx, n)
		}
	}
}

// RegisterClient attaches a session to the hub.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.closeOut()
	}
}

// DeregisterClient detaches a session, releasing its presence entry and
// closing its outbound channel. Safe to call more than once.
func (h *Hub) DeregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
		c.closeOut()
	}
}

// Submit hands a session command to the hub loop.
func (h *Hub) Submit(c *Client, cmd Command) {
	select {
	case h.commands <- clientCommand{client: c, cmd: cmd}:
	case <-h.done:
	}
}

// NotifyUsersChanged pushes a fresh registered-user list to every session.
func (h *Hub) NotifyUsersChanged() {
	select {
	case h.notices <- notice{kind: noticeUsersChanged}:
	case <-h.done:
	}
}

// NotifyMessageDeleted tells every session to drop a message from its view.
func (h *Hub) NotifyMessageDeleted(id int64) {
	select {
	case h.notices <- notice{kind: noticeMessageDeleted, messageID: id}:
	case <-h.done:
	}
}

// OnlineUsers returns the usernames with at least one live session.
func (h *Hub) OnlineUsers() []string {
	return h.presence.Online()
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd Command) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	switch cmd.Kind {
	case CmdIdentify:
		h.handleIdentify(ctx, c, cmd.Username)
	case CmdSend:
		h.handleSend(ctx, c, cmd)
	case CmdLeave:
		h.detach(c)
	default:
		h.logger.Warn().Str("client", c.id).Int("kind", int(cmd.Kind)).Msg("unknown command")
	}
}

func (h *Hub) handleIdentify(ctx context.Context, c *Client, username string) {
	username = strings.TrimSpace(username)
	if username == "" {
		h.logger.Debug().Str("client", c.id).Msg("identify with empty username ignored")
		return
	}
	if c.username != "" {
		h.sendTo(c, proto.TypeError, proto.ErrorData{Code: "already_identified", Msg: "session already identified"})
		return
	}

	c.username = username
	c.avatar = store.DefaultAvatar
	c.color = store.DefaultColor
	if user, err := h.users.GetUserByUsername(ctx, username); err == nil {
		c.avatar = user.Avatar
		c.color = user.Color
	}

	newlyOnline := h.presence.Register(username)

	h.sendHistory(ctx, c)
	h.broadcastOnline()
	if newlyOnline {
		h.broadcastBot(username + " joined the chat")
	}
	h.logger.Info().Str("client", c.id).Str("username", username).Msg("session identified")
}

func (h *Hub) handleSend(ctx context.Context, c *Client, cmd Command) {
	if c.username == "" {
		h.logger.Debug().Str("client", c.id).Msg("send from unidentified session dropped")
		return
	}
	text := strings.TrimSpace(cmd.Text)
	if text == "" {
		return
	}

	avatar := cmd.Avatar
	if avatar == "" {
		avatar = c.avatar
	}
	color := cmd.Color
	if color == "" {
		color = c.color
	}

	msg := &store.Message{
		Author: c.username,
		Text:   html.EscapeString(text),
		Avatar: avatar,
		Color:  color,
	}
	if err := h.messages.AppendMessage(ctx, msg); err != nil {
		h.logger.Error().Err(err).Str("username", c.username).Msg("append message failed")
		h.sendTo(c, proto.TypeError, proto.ErrorData{Code: "store", Msg: "message not saved"})
		return
	}

	h.broadcastEnvelope(proto.TypeMessage, chatMessage(msg))
}

func (h *Hub) handleUnregister(ctx context.Context, c *Client) {
	_ = ctx
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.detach(c)
	c.closeOut()
}

func (h *Hub) handleNotice(ctx context.Context, n notice) {
	switch n.kind {
	case noticeUsersChanged:
		usernames, err := h.users.ListUsernames(ctx)
		if err != nil {
			h.logger.Error().Err(err).Msg("list usernames failed")
			return
		}
		h.broadcastEnvelope(proto.TypeUsers, proto.UserListData{Usernames: usernames})
	case noticeMessageDeleted:
		h.broadcastEnvelope(proto.TypeMessageDeleted, proto.MessageDeletedData{ID: n.messageID})
	}
}

// detach releases the session's username without closing its socket.
func (h *Hub) detach(c *Client) {
	if c.username == "" {
		return
	}
	username := c.username
	c.username = ""
	wentOffline := h.presence.Deregister(username)

	h.broadcastOnline()
	if wentOffline {
		h.broadcastBot(username + " left the chat")
	}
	h.logger.Info().Str("client", c.id).Str("username", username).Msg("session detached")
}

func (h *Hub) sendHistory(ctx context.Context, c *Client) {
	msgs, err := h.messages.RecentMessages(ctx, h.historyLimit)
	if err != nil {
		h.logger.Error().Err(err).Msg("load history failed")
		h.sendTo(c, proto.TypeError, proto.ErrorData{Code: "store", Msg: "history unavailable"})
		return
	}
	out := make([]proto.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, chatMessage(m))
	}
	h.sendTo(c, proto.TypeHistory, proto.HistoryData{Messages: out})
}

func (h *Hub) broadcastOnline() {
	h.broadcastEnvelope(proto.TypeOnlineUsers, proto.UserListData{Usernames: h.presence.Online()})
}

func (h *Hub) broadcastBot(text string) {
	now := time.Now()
	h.broadcastEnvelope(proto.TypeMessage, proto.ChatMessage{
		User:   botUsername,
		Text:   text,
		Avatar: store.DefaultAvatar,
		Color:  store.DefaultColor,
		TS:     proto.FormatTS(now),
	})
}

func (h *Hub) broadcastEnvelope(msgType string, data any) {
	frame, err := proto.Encode(msgType, data)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("encode broadcast failed")
		return
	}
	for c := range h.clients {
		if !c.enqueue(frame) {
			h.logger.Warn().Str("client", c.id).Str("type", msgType).Msg("slow client, frame dropped")
		}
	}
}

func (h *Hub) sendTo(c *Client, msgType string, data any) {
	frame, err := proto.Encode(msgType, data)
	if err != nil {
		h.logger.Error().Err(err).Str("type", msgType).Msg("encode frame failed")
		return
	}
	if !c.enqueue(frame) {
		h.logger.Warn().Str("client", c.id).Str("type", msgType).Msg("slow client, frame dropped")
	}
}

func chatMessage(m *store.Message) proto.ChatMessage {
	return proto.ChatMessage{
		ID:     m.ID,
		User:   m.Author,
		Text:   m.Text,
		Avatar: m.Avatar,
		Color:  m.Color,
		TS:     proto.FormatTS(m.CreatedAt),
	}
}
