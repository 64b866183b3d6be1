package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidCredentials is returned when the API rejects the login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNotAuthenticated is returned for operations that require a live session.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// User identifies the logged-in account.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// Token is the persisted session credential. DeviceID is generated once
// per installation and sent with every login so the API can tell client
// instances apart.
type Token struct {
	Value     string    `json:"value"`
	DeviceID  string    `json:"device_id"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Options parameterise the session client.
type Options struct {
	BaseURL   string
	TokenFile string
	Timeout   time.Duration
	UserAgent string
}

// Client manages the authenticated session against the station API and
// keeps the token on disk so the CLI stays logged in across invocations.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string

	mu    sync.Mutex
	token *Token
}

// NewClient constructs a session client.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	c := &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "session").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
	c.token = c.loadToken()
	return c
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	DeviceID string `json:"device_id"`
}

type loginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
	User      User   `json:"user"`
}

// Login authenticates against the station API and persists the session
// token.
func (c *Client) Login(ctx context.Context, username, password string) (User, error) {
	if c.baseURL == "" {
		return User{}, errors.New("session base url not configured")
	}
	if username == "" || password == "" {
		return User{}, errors.New("username and password required")
	}

	deviceID := c.deviceID()

	body, err := json.Marshal(loginRequest{Username: username, Password: password, DeviceID: deviceID})
	if err != nil {
		return User{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return User{}, ErrInvalidCredentials
	}
	if resp.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("login failed: status %d", resp.StatusCode)
	}

	var payload loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return User{}, fmt.Errorf("decode login response: %w", err)
	}
	if payload.Token == "" {
		return User{}, errors.New("login response missing token")
	}

	expiresIn := payload.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = int64((24 * time.Hour).Seconds())
	}

	token := &Token{
		Value:     payload.Token,
		DeviceID:  deviceID,
		User:      payload.User,
		ExpiresAt: time.Now().Add(time.Duration(expiresIn) * time.Second),
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()

	if err := c.saveToken(token); err != nil {
		c.logger.Warn().Err(err).Msg("failed to persist session token")
	}

	c.logger.Info().Str("username", payload.User.Username).Msg("logged in")
	return payload.User, nil
}

// Logout clears the in-memory session and removes the token file.
func (c *Client) Logout() error {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()

	if c.opts.TokenFile == "" {
		return nil
	}
	if err := os.Remove(c.opts.TokenFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// IsAuthenticated reports whether a non-expired session exists.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token != nil && time.Now().Before(c.token.ExpiresAt)
}

// CurrentUser returns the logged-in user, or nil without a live session.
func (c *Client) CurrentUser() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil || !time.Now().Before(c.token.ExpiresAt) {
		return nil
	}
	user := c.token.User
	return &user
}

// TokenValue returns the bearer token for outbound requests, empty when
// no live session exists.
func (c *Client) TokenValue() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == nil || !time.Now().Before(c.token.ExpiresAt) {
		return ""
	}
	return c.token.Value
}

// deviceID reuses the persisted device id when present so re-logins keep
// a stable identity.
func (c *Client) deviceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != nil && c.token.DeviceID != "" {
		return c.token.DeviceID
	}
	return uuid.NewString()
}

func (c *Client) loadToken() *Token {
	if c.opts.TokenFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.opts.TokenFile)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Warn().Err(err).Msg("failed to read token file")
		}
		return nil
	}
	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		c.logger.Warn().Err(err).Msg("token file corrupt; ignoring")
		return nil
	}
	return &token
}

func (c *Client) saveToken(token *Token) error {
	if c.opts.TokenFile == "" {
		return nil
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(c.opts.TokenFile); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(c.opts.TokenFile, data, 0o600)
}
