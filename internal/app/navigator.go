package app

import (
	"github.com/rs/zerolog"

	"hydrowatch/internal/session"
)

// logNavigator is the headless stand-in for screen navigation: route
// changes are logged instead of rendered. A UI embedding this module
// supplies its own session.Navigator.
type logNavigator struct {
	logger zerolog.Logger
}

func newLogNavigator(logger zerolog.Logger) session.Navigator {
	return &logNavigator{logger: logger.With().Str("component", "navigator").Logger()}
}

func (n *logNavigator) GoTo(route string) {
	n.logger.Info().Str("route", route).Msg("navigate")
}

func (n *logNavigator) ResetTo(route string) {
	n.logger.Info().Str("route", route).Msg("navigate (reset stack)")
}
