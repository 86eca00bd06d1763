package http

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/parleychat/parley-server/internal/auth"
	"github.com/parleychat/parley-server/internal/config"
	"github.com/parleychat/parley-server/internal/core"
	"github.com/parleychat/parley-server/internal/log"
	"github.com/parleychat/parley-server/internal/store/sqlite"
	"github.com/parleychat/parley-server/internal/transport/ws"
)

type testEnv struct {
	server *httptest.Server
	store  *sqlite.SQLiteStore
	auth   *auth.Service
}

// newTestEnv wires the full stack over an in-memory database and an
// httptest server.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := log.Nop()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte("test-secret-change-me"),
		Issuer:   "test",
		Audience: "test",
		TTL:      24 * time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	registry := core.NewRegistry()
	transport := ws.NewTransport(logger)
	router := core.NewRouter(registry, transport, st, logger)
	wsHandler := ws.NewHandler(transport, router, authService, 0, logger)

	server := NewServer(config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, st, authService, wsHandler, logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{server: ts, store: st, auth: authService}
}

// signupUser creates an account directly and returns a valid token.
func (e *testEnv) signupUser(t *testing.T, username string) string {
	t.Helper()

	token, _, err := e.auth.Signup(context.Background(), username, "Test", "User", "password123")
	if err != nil {
		t.Fatalf("signup %s: %v", username, err)
	}
	return token
}
