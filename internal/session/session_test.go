package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func loginHandler(t *testing.T, lastDevice *string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
			t.Errorf("意外的请求: %s %s", r.Method, r.URL.Path)
		}
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode login request: %v", err)
		}
		if lastDevice != nil {
			*lastDevice = req.DeviceID
		}
		if req.Password != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(loginResponse{
			Token:     "tok-abc",
			ExpiresIn: 3600,
			User:      User{ID: "u1", Username: req.Username, Name: "Ana"},
		})
	})
}

func TestLoginPersistsToken(t *testing.T) {
	srv := httptest.NewServer(loginHandler(t, nil))
	t.Cleanup(srv.Close)

	tokenFile := filepath.Join(t.TempDir(), "session", "token.json")
	c := NewClient(Options{BaseURL: srv.URL, TokenFile: tokenFile}, zerolog.Nop())

	user, err := c.Login(context.Background(), "ana", "hunter2")
	if err != nil {
		t.Fatalf("登录失败: %v", err)
	}
	if user.Username != "ana" {
		t.Fatalf("返回的用户不符: %+v", user)
	}
	if !c.IsAuthenticated() {
		t.Fatal("登录后应视为已认证")
	}
	if c.TokenValue() != "tok-abc" {
		t.Fatalf("bearer token 不符: %q", c.TokenValue())
	}

	// A fresh client picks the session up from disk.
	c2 := NewClient(Options{BaseURL: srv.URL, TokenFile: tokenFile}, zerolog.Nop())
	if !c2.IsAuthenticated() {
		t.Fatal("新实例应从 token 文件恢复会话")
	}
	if got := c2.CurrentUser(); got == nil || got.ID != "u1" {
		t.Fatalf("恢复的用户不符: %+v", got)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(loginHandler(t, nil))
	t.Cleanup(srv.Close)

	c := NewClient(Options{BaseURL: srv.URL}, zerolog.Nop())
	_, err := c.Login(context.Background(), "ana", "wrong")
	if err != ErrInvalidCredentials {
		t.Fatalf("期望 ErrInvalidCredentials, 实际 %v", err)
	}
	if c.IsAuthenticated() {
		t.Fatal("登录失败不应产生会话")
	}
}

func TestDeviceIDStableAcrossLogins(t *testing.T) {
	var device string
	srv := httptest.NewServer(loginHandler(t, &device))
	t.Cleanup(srv.Close)

	tokenFile := filepath.Join(t.TempDir(), "token.json")
	c := NewClient(Options{BaseURL: srv.URL, TokenFile: tokenFile}, zerolog.Nop())

	if _, err := c.Login(context.Background(), "ana", "hunter2"); err != nil {
		t.Fatalf("登录失败: %v", err)
	}
	first := device
	if first == "" {
		t.Fatal("登录请求应携带 device_id")
	}

	if _, err := c.Login(context.Background(), "ana", "hunter2"); err != nil {
		t.Fatalf("二次登录失败: %v", err)
	}
	if device != first {
		t.Fatalf("device_id 应在重新登录时保持稳定: %s vs %s", first, device)
	}
}

func TestLogoutRemovesTokenFile(t *testing.T) {
	srv := httptest.NewServer(loginHandler(t, nil))
	t.Cleanup(srv.Close)

	tokenFile := filepath.Join(t.TempDir(), "token.json")
	c := NewClient(Options{BaseURL: srv.URL, TokenFile: tokenFile}, zerolog.Nop())

	if _, err := c.Login(context.Background(), "ana", "hunter2"); err != nil {
		t.Fatalf("登录失败: %v", err)
	}
	if err := c.Logout(); err != nil {
		t.Fatalf("登出失败: %v", err)
	}
	if c.IsAuthenticated() {
		t.Fatal("登出后不应再有会话")
	}
	if _, err := os.Stat(tokenFile); !os.IsNotExist(err) {
		t.Fatal("登出应删除 token 文件")
	}
	// Logging out twice is harmless.
	if err := c.Logout(); err != nil {
		t.Fatalf("重复登出不应报错: %v", err)
	}
}

func TestExpiredTokenIgnored(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	expired, _ := json.Marshal(Token{
		Value:     "tok-old",
		DeviceID:  "dev-1",
		ExpiresAt: time.Now().Add(-time.Hour),
	})
	if err := os.WriteFile(tokenFile, expired, 0o600); err != nil {
		t.Fatal(err)
	}

	c := NewClient(Options{TokenFile: tokenFile}, zerolog.Nop())
	if c.IsAuthenticated() {
		t.Fatal("过期 token 不应视为已认证")
	}
	if c.TokenValue() != "" {
		t.Fatal("过期 token 不应再用于请求")
	}
	if c.CurrentUser() != nil {
		t.Fatal("过期会话不应返回用户")
	}
}

type recordingNavigator struct {
	resets []string
}

func (n *recordingNavigator) GoTo(route string)    {}
func (n *recordingNavigator) ResetTo(route string) { n.resets = append(n.resets, route) }

func TestGateRedirectsWhenUnauthenticated(t *testing.T) {
	nav := &recordingNavigator{}
	c := NewClient(Options{}, zerolog.Nop())
	gate := NewGate(c, nav, zerolog.Nop())

	if gate.Ensure() {
		t.Fatal("无会话时 Ensure 应返回 false")
	}
	if len(nav.resets) != 1 || nav.resets[0] != RouteLogin {
		t.Fatalf("应重置到登录页: %v", nav.resets)
	}
}

func TestGatePassesWithSession(t *testing.T) {
	srv := httptest.NewServer(loginHandler(t, nil))
	t.Cleanup(srv.Close)

	nav := &recordingNavigator{}
	c := NewClient(Options{BaseURL: srv.URL}, zerolog.Nop())
	if _, err := c.Login(context.Background(), "ana", "hunter2"); err != nil {
		t.Fatalf("登录失败: %v", err)
	}

	gate := NewGate(c, nav, zerolog.Nop())
	if !gate.Ensure() {
		t.Fatal("已认证时 Ensure 应返回 true")
	}
	if len(nav.resets) != 0 {
		t.Fatalf("已认证时不应导航: %v", nav.resets)
	}
}
