package core

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rmacedo/salachat-server/internal/proto"
	"github.com/rmacedo/salachat-server/internal/store/sqlite"
)

const recvTimeout = 2 * time.Second

// newTestHub starts a hub over an in-memory store and stops it at cleanup.
func newTestHub(t *testing.T) (*Hub, *sqlite.SQLiteStore) {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	h := NewHub(st, st, 50, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h, st
}

// recvEnvelope waits for the next frame on the client and decodes it.
func recvEnvelope(t *testing.T, c *Client) *proto.Envelope {
	t.Helper()
	select {
	case frame, ok := <-c.Out():
		if !ok {
			t.Fatal("client channel closed while waiting for frame")
		}
		env, err := proto.Decode(frame)
		if err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return env
	case <-time.After(recvTimeout):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

// recvTyped waits for the next frame and asserts its type.
func recvTyped(t *testing.T, c *Client, wantType string) *proto.Envelope {
	t.Helper()
	env := recvEnvelope(t, c)
	if env.Type != wantType {
		t.Fatalf("frame type = %q, want %q", env.Type, wantType)
	}
	return env
}

// expectNoFrame asserts no frame arrives within a short window.
func expectNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case frame, ok := <-c.Out():
		if ok {
			env, _ := proto.Decode(frame)
			t.Fatalf("unexpected frame: %+v", env)
		}
		t.Fatal("client channel closed unexpectedly")
	case <-time.After(100 * time.Millisecond):
	}
}

// identify registers a client with the hub and drains the frames the
// identifying session receives (history, online_users, join notice).
func identify(t *testing.T, h *Hub, c *Client, username string, expectJoinNotice bool) {
	t.Helper()
	h.Submit(c, Command{Kind: CmdIdentify, Username: username})
	recvTyped(t, c, proto.TypeHistory)
	recvTyped(t, c, proto.TypeOnlineUsers)
	if expectJoinNotice {
		recvTyped(t, c, proto.TypeMessage)
	}
}
