package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rmacedo/salachat-server/internal/auth"
	"github.com/rmacedo/salachat-server/internal/avatar"
	"github.com/rmacedo/salachat-server/internal/config"
	"github.com/rmacedo/salachat-server/internal/core"
	"github.com/rmacedo/salachat-server/internal/service/moderation"
	"github.com/rmacedo/salachat-server/internal/store/sqlite"
)

type testEnv struct {
	ts    *httptest.Server
	store *sqlite.SQLiteStore
	hub   *core.Hub
	auth  *auth.Service
}

func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hash, err := auth.HashPassword("admin-pass")
	if err != nil {
		t.Fatalf("hash admin password: %v", err)
	}
	if err := st.EnsureAdmin(context.Background(), "admin", hash); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}

	logger := zerolog.Nop()
	authService := auth.NewService(st, &auth.JWTConfig{
		Secret:   []byte("test-secret"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	})

	hub := core.NewHub(st, st, 50, logger)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	mod := moderation.NewService(st, hub, logger)

	avatars, err := avatar.NewDisk(t.TempDir())
	if err != nil {
		t.Fatalf("create avatar storage: %v", err)
	}

	server := NewServer(Deps{
		Store:      st,
		Hub:        hub,
		Auth:       authService,
		Moderation: mod,
		Avatars:    avatars,
	}, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		HistoryLimit:      50,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, store: st, hub: hub, auth: authService}
}

// registerForm posts a multipart registration request and returns the
// response status and decoded JSON body.
func registerForm(t *testing.T, env *testEnv, fields map[string]string, avatarType string, avatarBytes []byte) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	if avatarType != "" {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="avatar"; filename="avatar"`)
		hdr.Set("Content-Type", avatarType)
		part, err := w.CreatePart(hdr)
		if err != nil {
			t.Fatalf("create avatar part: %v", err)
		}
		if _, err := part.Write(avatarBytes); err != nil {
			t.Fatalf("write avatar part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	resp, err := env.ts.Client().Post(env.ts.URL+"/api/register", w.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("register request: %v", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode, decodeJSON(t, resp.Body)
}

// login posts credentials and returns the response status and body.
func login(t *testing.T, env *testEnv, username, password string) (int, map[string]any) {
	t.Helper()

	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		t.Fatalf("marshal login body: %v", err)
	}
	resp, err := env.ts.Client().Post(env.ts.URL+"/api/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode, decodeJSON(t, resp.Body)
}

// fetchProfile gets the display profile for a username.
func fetchProfile(t *testing.T, env *testEnv, username string) map[string]any {
	t.Helper()

	resp, err := env.ts.Client().Get(env.ts.URL + "/api/users/" + username + "/profile")
	if err != nil {
		t.Fatalf("profile request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("profile status = %d, want 200", resp.StatusCode)
	}
	return decodeJSON(t, resp.Body)
}

func decodeJSON(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return out
}
