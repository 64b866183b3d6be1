package session

import "github.com/rs/zerolog"

// Route names the gate can navigate to.
const (
	RouteLogin     = "login"
	RouteDashboard = "dashboard"
)

// Navigator abstracts screen navigation. The orchestration core never
// calls it; only the gate does, when a session is missing.
type Navigator interface {
	GoTo(route string)
	ResetTo(route string)
}

// Gate enforces the session check in front of dashboard loads: no live
// session, no fetch, navigate to login instead.
type Gate struct {
	sessions *Client
	nav      Navigator
	logger   zerolog.Logger
}

// NewGate builds the gate from a session client and a navigator.
func NewGate(sessions *Client, nav Navigator, logger zerolog.Logger) *Gate {
	return &Gate{
		sessions: sessions,
		nav:      nav,
		logger:   logger.With().Str("component", "session_gate").Logger(),
	}
}

// Ensure reports whether a live session exists. When it does not, the
// navigator is reset to the login route and false returns; the caller
// must not issue any fetch.
func (g *Gate) Ensure() bool {
	if g.sessions.IsAuthenticated() {
		return true
	}
	g.logger.Warn().Msg("no authenticated session; redirecting to login")
	if g.nav != nil {
		g.nav.ResetTo(RouteLogin)
	}
	return false
}
