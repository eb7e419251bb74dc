package core

import (
	"context"
	"strings"
	"testing"

	"github.com/rmacedo/salachat-server/internal/proto"
	"github.com/rmacedo/salachat-server/internal/store"
)

func TestIdentifyDeliversHistoryThenRoster(t *testing.T) {
	h, st := newTestHub(t)
	ctx := context.Background()

	for _, text := range []string{"first", "second"} {
		if err := st.AppendMessage(ctx, &store.Message{Author: "alice", Text: text}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	c := NewClient("s1")
	h.RegisterClient(c)
	h.Submit(c, Command{Kind: CmdIdentify, Username: "alice"})

	env := recvTyped(t, c, proto.TypeHistory)
	var hist proto.HistoryData
	if err := proto.DecodeData(env, &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Messages) != 2 || hist.Messages[0].Text != "first" || hist.Messages[1].Text != "second" {
		t.Fatalf("history = %+v, want [first second]", hist.Messages)
	}

	env = recvTyped(t, c, proto.TypeOnlineUsers)
	var roster proto.UserListData
	if err := proto.DecodeData(env, &roster); err != nil {
		t.Fatalf("decode roster: %v", err)
	}
	if len(roster.Usernames) != 1 || roster.Usernames[0] != "alice" {
		t.Fatalf("roster = %v, want [alice]", roster.Usernames)
	}

	env = recvTyped(t, c, proto.TypeMessage)
	var joined proto.ChatMessage
	if err := proto.DecodeData(env, &joined); err != nil {
		t.Fatalf("decode join notice: %v", err)
	}
	if joined.User != "Bot" || !strings.Contains(joined.Text, "alice joined") {
		t.Fatalf("join notice = %+v", joined)
	}

	// System notices never reach the persistent history.
	msgs, err := st.RecentMessages(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("persisted messages = %d, want 2", len(msgs))
	}
}

func TestJoinNoticeOnlyOnFirstSession(t *testing.T) {
	h, _ := newTestHub(t)

	c1 := NewClient("s1")
	h.RegisterClient(c1)
	identify(t, h, c1, "alice", true)

	c2 := NewClient("s2")
	h.RegisterClient(c2)
	identify(t, h, c2, "alice", false)

	// The second session only triggers a roster refresh on the first one.
	recvTyped(t, c1, proto.TypeOnlineUsers)
	expectNoFrame(t, c1)
	expectNoFrame(t, c2)
}

func TestDoubleIdentifyRejected(t *testing.T) {
	h, _ := newTestHub(t)

	c := NewClient("s1")
	h.RegisterClient(c)
	identify(t, h, c, "alice", true)

	h.Submit(c, Command{Kind: CmdIdentify, Username: "mallory"})

	env := recvTyped(t, c, proto.TypeError)
	var data proto.ErrorData
	if err := proto.DecodeData(env, &data); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if data.Code != "already_identified" {
		t.Fatalf("error code = %q, want already_identified", data.Code)
	}
	if h.presence.IsOnline("mallory") {
		t.Fatal("rejected identify must not register presence")
	}

	// Leave releases the username; identifying again then succeeds.
	h.Submit(c, Command{Kind: CmdLeave})
	recvTyped(t, c, proto.TypeOnlineUsers)
	recvTyped(t, c, proto.TypeMessage) // alice's leave notice
	identify(t, h, c, "mallory", true)
	if !h.presence.IsOnline("mallory") {
		t.Fatal("mallory should be online after re-identify")
	}
}

func TestSendBroadcastsAndPersists(t *testing.T) {
	h, st := newTestHub(t)
	ctx := context.Background()

	c1 := NewClient("s1")
	h.RegisterClient(c1)
	identify(t, h, c1, "alice", true)

	c2 := NewClient("s2")
	h.RegisterClient(c2)
	identify(t, h, c2, "bob", true)
	recvTyped(t, c1, proto.TypeOnlineUsers)
	recvTyped(t, c1, proto.TypeMessage) // bob's join notice

	h.Submit(c2, Command{Kind: CmdSend, Text: "  hello room  "})

	for _, c := range []*Client{c1, c2} {
		env := recvTyped(t, c, proto.TypeMessage)
		var msg proto.ChatMessage
		if err := proto.DecodeData(env, &msg); err != nil {
			t.Fatalf("decode message: %v", err)
		}
		if msg.User != "bob" || msg.Text != "hello room" {
			t.Fatalf("message = %+v, want trimmed text from bob", msg)
		}
		if msg.ID == 0 {
			t.Fatal("broadcast message should carry its persistent id")
		}
	}

	msgs, err := st.RecentMessages(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Text != "hello room" {
		t.Fatalf("persisted = %+v, want single trimmed message", msgs)
	}
}

func TestSendEscapesMarkup(t *testing.T) {
	h, st := newTestHub(t)
	ctx := context.Background()

	c := NewClient("s1")
	h.RegisterClient(c)
	identify(t, h, c, "alice", true)

	h.Submit(c, Command{Kind: CmdSend, Text: `<script>alert("x")</script>`})

	env := recvTyped(t, c, proto.TypeMessage)
	var msg proto.ChatMessage
	if err := proto.DecodeData(env, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if strings.Contains(msg.Text, "<script>") {
		t.Fatalf("markup not escaped: %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "&lt;script&gt;") {
		t.Fatalf("expected escaped markup, got %q", msg.Text)
	}

	msgs, err := st.RecentMessages(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if strings.Contains(msgs[0].Text, "<script>") {
		t.Fatalf("markup persisted unescaped: %q", msgs[0].Text)
	}
}

func TestSendFromUnidentifiedDropped(t *testing.T) {
	h, st := newTestHub(t)
	ctx := context.Background()

	c := NewClient("s1")
	h.RegisterClient(c)
	h.Submit(c, Command{Kind: CmdSend, Text: "sneaky"})

	expectNoFrame(t, c)
	msgs, err := st.RecentMessages(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("persisted = %d messages, want none", len(msgs))
	}
}

func TestSendEmptyAfterTrimDropped(t *testing.T) {
	h, st := newTestHub(t)
	ctx := context.Background()

	c := NewClient("s1")
	h.RegisterClient(c)
	identify(t, h, c, "alice", true)

	h.Submit(c, Command{Kind: CmdSend, Text: "   \n\t  "})

	expectNoFrame(t, c)
	msgs, err := st.RecentMessages(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("persisted = %d messages, want none", len(msgs))
	}
}

func TestSendUsesStoredProfile(t *testing.T) {
	h, st := newTestHub(t)
	ctx := context.Background()

	if _, err := st.CreateUser(ctx, "alice", "hash", "#ff0000", "/uploads/alice.png"); err != nil {
		t.Fatalf("create user: %v", err)
	}

	c := NewClient("s1")
	h.RegisterClient(c)
	identify(t, h, c, "alice", true)

	h.Submit(c, Command{Kind: CmdSend, Text: "hi"})

	env := recvTyped(t, c, proto.TypeMessage)
	var msg proto.ChatMessage
	if err := proto.DecodeData(env, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Color != "#ff0000" || msg.Avatar != "/uploads/alice.png" {
		t.Fatalf("message = %+v, want stored profile values", msg)
	}
}

func TestLeaveBroadcastsDeparture(t *testing.T) {
	h, _ := newTestHub(t)

	c1 := NewClient("s1")
	h.RegisterClient(c1)
	identify(t, h, c1, "alice", true)

	c2 := NewClient("s2")
	h.RegisterClient(c2)
	identify(t, h, c2, "bob", true)
	recvTyped(t, c1, proto.TypeOnlineUsers)
	recvTyped(t, c1, proto.TypeMessage)

	h.Submit(c2, Command{Kind: CmdLeave})

	env := recvTyped(t, c1, proto.TypeOnlineUsers)
	var roster proto.UserListData
	if err := proto.DecodeData(env, &roster); err != nil {
		t.Fatalf("decode roster: %v", err)
	}
	if len(roster.Usernames) != 1 || roster.Usernames[0] != "alice" {
		t.Fatalf("roster = %v, want [alice]", roster.Usernames)
	}

	env = recvTyped(t, c1, proto.TypeMessage)
	var notice proto.ChatMessage
	if err := proto.DecodeData(env, &notice); err != nil {
		t.Fatalf("decode notice: %v", err)
	}
	if notice.User != "Bot" || !strings.Contains(notice.Text, "bob left") {
		t.Fatalf("leave notice = %+v", notice)
	}
}

func TestSecondSessionCloseKeepsUserOnline(t *testing.T) {
	h, _ := newTestHub(t)

	c1 := NewClient("s1")
	h.RegisterClient(c1)
	identify(t, h, c1, "alice", true)

	c2 := NewClient("s2")
	h.RegisterClient(c2)
	identify(t, h, c2, "alice", false)
	recvTyped(t, c1, proto.TypeOnlineUsers)

	h.DeregisterClient(c2)

	// Roster refresh, but no departure notice while one session remains.
	env := recvTyped(t, c1, proto.TypeOnlineUsers)
	var roster proto.UserListData
	if err := proto.DecodeData(env, &roster); err != nil {
		t.Fatalf("decode roster: %v", err)
	}
	if len(roster.Usernames) != 1 || roster.Usernames[0] != "alice" {
		t.Fatalf("roster = %v, want [alice]", roster.Usernames)
	}
	expectNoFrame(t, c1)
}

func TestDeregisterClosesClient(t *testing.T) {
	h, _ := newTestHub(t)

	c := NewClient("s1")
	h.RegisterClient(c)
	identify(t, h, c, "alice", true)

	h.DeregisterClient(c)
	// Drain any in-flight frames until the channel closes.
	for range c.Out() {
	}
}

func TestNotifyMessageDeleted(t *testing.T) {
	h, _ := newTestHub(t)

	c := NewClient("s1")
	h.RegisterClient(c)
	identify(t, h, c, "alice", true)

	h.NotifyMessageDeleted(42)

	env := recvTyped(t, c, proto.TypeMessageDeleted)
	var del proto.MessageDeletedData
	if err := proto.DecodeData(env, &del); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if del.ID != 42 {
		t.Fatalf("deleted id = %d, want 42", del.ID)
	}
}

func TestNotifyUsersChanged(t *testing.T) {
	h, st := newTestHub(t)
	ctx := context.Background()

	for _, name := range []string{"alice", "bob"} {
		if _, err := st.CreateUser(ctx, name, "hash", "", ""); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}

	c := NewClient("s1")
	h.RegisterClient(c)
	identify(t, h, c, "alice", true)

	h.NotifyUsersChanged()

	env := recvTyped(t, c, proto.TypeUsers)
	var users proto.UserListData
	if err := proto.DecodeData(env, &users); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(users.Usernames) != 2 || users.Usernames[0] != "alice" || users.Usernames[1] != "bob" {
		t.Fatalf("users = %v, want [alice bob]", users.Usernames)
	}
}
