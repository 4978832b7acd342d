package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Tyrowin/ichat/internal/auth"
	"github.com/Tyrowin/ichat/internal/chat"
	"github.com/Tyrowin/ichat/internal/config"
	"github.com/Tyrowin/ichat/internal/files"
	"github.com/Tyrowin/ichat/internal/metrics"
)

const (
	testSecret = "test-secret"
	testOrigin = "http://localhost:8080"
)

type testEnv struct {
	t      *testing.T
	srv    *Server
	http   *httptest.Server
	tokens *auth.JWTManager
}

// newTestEnv starts a full server stack on an httptest server. mutate may
// adjust the configuration before anything is built.
func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = testSecret
	cfg.Files.UploadDir = t.TempDir()
	cfg.RateLimit.Burst = 100
	if mutate != nil {
		mutate(cfg)
	}
	cfg.Sanitize()

	log := zaptest.NewLogger(t)
	collector := metrics.New()
	gw := chat.NewGateway(log, collector)
	coordinator := chat.New(gw, log, chat.Options{
		HistoryLimit: cfg.RoomHistoryLimit,
		Recorder:     collector,
	})

	store, err := files.NewDiskStore(cfg.Files.UploadDir)
	require.NoError(t, err)
	fileService := files.NewService(files.NewTable(), store, files.Options{
		MaxSize:  cfg.Files.MaxUploadSize,
		Notifier: coordinator,
		Recorder: collector,
		Logger:   log,
	})
	tokens := auth.NewJWTManager(auth.JWTConfig{Secret: testSecret, Issuer: cfg.Auth.Issuer})

	srv := New(Deps{
		Config:      cfg,
		Logger:      log,
		Coordinator: coordinator,
		Files:       fileService,
		Verifier:    tokens,
		Metrics:     collector,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		coordinator.Run(ctx)
	}()
	testServer := httptest.NewServer(srv.SetupRoutes())

	t.Cleanup(func() {
		_ = srv.Hub().Shutdown(5 * time.Second)
		testServer.Close()
		srv.Close()
		cancel()
		<-done
	})
	return &testEnv{t: t, srv: srv, http: testServer, tokens: tokens}
}

func (e *testEnv) token(username string, role auth.Role) string {
	e.t.Helper()
	token, err := e.tokens.Issue(auth.Identity{Username: username, Role: role})
	require.NoError(e.t, err)
	return token
}

func (e *testEnv) wsURL(token string) string {
	u := "ws" + strings.TrimPrefix(e.http.URL, "http") + "/ws"
	if token != "" {
		u += "?token=" + token
	}
	return u
}

// dial opens a WebSocket as username, or anonymously when username is empty.
func (e *testEnv) dial(username string) *websocket.Conn {
	e.t.Helper()
	token := ""
	if username != "" {
		token = e.token(username, auth.RoleUser)
	}
	conn, resp, err := dialWebSocket(e.wsURL(token), testOrigin)
	if resp != nil {
		_ = resp.Body.Close()
	}
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = conn.Close() })
	// every session starts with a room-history replay
	readUntil(e.t, conn, chat.EventRoomHistory)
	return conn
}

func dialWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}
	return dialer.Dial(url, headers)
}

type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func sendEvent(t *testing.T, conn *websocket.Conn, typ string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(wireEvent{Type: typ, Data: raw}))
}

// readUntil reads frames until one of the wanted type arrives and returns
// it along with every frame skipped on the way.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) (wireEvent, []wireEvent) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	defer func() { _ = conn.SetReadDeadline(time.Time{}) }()

	var skipped []wireEvent
	for {
		var ev wireEvent
		require.NoError(t, conn.ReadJSON(&ev), "waiting for %s", typ)
		if ev.Type == typ {
			return ev, skipped
		}
		skipped = append(skipped, ev)
	}
}

func doRequest(t *testing.T, method, url, token string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}
