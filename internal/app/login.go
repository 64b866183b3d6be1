package app

import (
	"context"
	"fmt"
	"os"
)

// Login authenticates against the station API and persists the session
// token for subsequent commands.
func (a *App) Login(ctx context.Context, username, password string) error {
	user, err := a.sessions.Login(ctx, username, password)
	if err != nil {
		return err
	}
	name := user.Name
	if name == "" {
		name = user.Username
	}
	fmt.Fprintf(os.Stdout, "logged in as %s\n", name)
	return nil
}

// Logout drops the persisted session. Dashboard state is per-process, so
// there is nothing further to clear here; embedders holding a store call
// its Reset on logout.
func (a *App) Logout() error {
	if err := a.sessions.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, "logged out")
	return nil
}

// WhoAmI prints the current session's user, if any.
func (a *App) WhoAmI() error {
	user := a.sessions.CurrentUser()
	if user == nil {
		fmt.Fprintln(os.Stdout, "not logged in")
		return nil
	}
	fmt.Fprintf(os.Stdout, "%s (%s)\n", user.Username, user.ID)
	return nil
}
