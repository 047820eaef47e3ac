package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"haven/cmd/identity"
)

func newTestApp(t *testing.T, mutate func(*Config)) (*App, *httptest.Server) {
	t.Helper()

	cfg := validConfig(t)
	cfg.Password.Params.MemoryKiB = 8 * 1024
	cfg.Password.Params.Iterations = 1
	cfg.Password.Params.Parallelism = 1
	if mutate != nil {
		mutate(&cfg)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(context.Background(), cfg, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })

	_, err = identity.NewAccounts(a.Stores().Users, cfg.Password).CreateUser(context.Background(), identity.CreateUserInput{
		Name:     "alice",
		Email:    "alice@example.org",
		Password: "correct-horse",
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(srv.Close)
	return a, srv
}

func call(t *testing.T, srv *httptest.Server, method, path, tok, body string) (*http.Response, string) {
	t.Helper()

	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(b)
}

func runLoginLogout(t *testing.T, srv *httptest.Server) {
	t.Helper()

	resp, body := call(t, srv, http.MethodPost, "/_matrix/client/v3/login", "",
		`{"type":"password","identifier":{"type":"m.id.user","user":"alice"},"password":"correct-horse"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status=%d body=%s", resp.StatusCode, body)
	}
	var login struct {
		AccessToken string `json:"access_token"`
		UserID      string `json:"user_id"`
		ExpiresInMs int64  `json:"expires_in_ms"`
	}
	if err := json.Unmarshal([]byte(body), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.UserID != "@alice:example.org" || login.ExpiresInMs != 600000 || login.AccessToken == "" {
		t.Fatalf("unexpected login response: %s", body)
	}

	resp, body = call(t, srv, http.MethodGet, "/_matrix/client/v3/account/whoami", login.AccessToken, "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"@alice:example.org"`) {
		t.Fatalf("whoami: status=%d body=%s", resp.StatusCode, body)
	}

	resp, body = call(t, srv, http.MethodPost, "/_matrix/client/v3/logout", login.AccessToken, "")
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(body) != "{}" {
		t.Fatalf("logout: status=%d body=%s", resp.StatusCode, body)
	}

	resp, body = call(t, srv, http.MethodPost, "/_matrix/client/v3/logout", login.AccessToken, "")
	if resp.StatusCode != http.StatusUnauthorized || !strings.Contains(body, "M_UNKNOWN_TOKEN") {
		t.Fatalf("second logout: status=%d body=%s", resp.StatusCode, body)
	}
}

func TestApp_LoginLogout_Memory(t *testing.T) {
	_, srv := newTestApp(t, nil)
	runLoginLogout(t, srv)
}

func TestApp_LoginLogout_Badger(t *testing.T) {
	a, srv := newTestApp(t, func(c *Config) {
		c.Storage.Backend = BackendBadger
		c.Storage.Badger = BadgerConfig{InMemory: true}
	})
	if a.Stores().Backend != BackendBadger {
		t.Fatalf("backend=%q", a.Stores().Backend)
	}
	runLoginLogout(t, srv)
}

func TestApp_OperationalEndpoints(t *testing.T) {
	_, srv := newTestApp(t, nil)

	resp, body := call(t, srv, http.MethodGet, "/healthz", "", "")
	if resp.StatusCode != http.StatusOK || body != "ok\n" {
		t.Fatalf("healthz: status=%d body=%q", resp.StatusCode, body)
	}

	resp, _ = call(t, srv, http.MethodGet, "/readyz", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz: status=%d", resp.StatusCode)
	}

	call(t, srv, http.MethodPost, "/_matrix/client/v3/login", "", `{"type":"m.login.password","user":"alice","password":"nope"}`)

	resp, body = call(t, srv, http.MethodGet, "/metrics", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics: status=%d", resp.StatusCode)
	}
	if !strings.Contains(body, `haven_auth_login_attempts_total{outcome="credentials_invalid"} 1`) {
		t.Fatalf("login counter missing from metrics:\n%s", body)
	}

	resp, _ = call(t, srv, http.MethodGet, "/_matrix/client/versions", "", "")
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected CORS on client API, got %q", got)
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("expected security headers, got %q", got)
	}
}

func TestApp_MetricsDisabled(t *testing.T) {
	_, srv := newTestApp(t, func(c *Config) { c.Metrics.Enabled = false })

	resp, _ := call(t, srv, http.MethodGet, "/metrics", "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 without metrics, got %d", resp.StatusCode)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := validConfig(t)
	cfg.Server.Name = ""

	if _, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatalf("expected config error")
	}
}
