package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/desertthunder/m3usync/internal/services"
	"github.com/desertthunder/m3usync/internal/shared"
	"github.com/urfave/cli/v3"
)

// profiler is implemented by services that can describe the authorised user.
type profiler interface {
	Me(ctx context.Context) (*services.SpotifyUser, error)
}

func (r *Runner) authorizer() (Authorizer, error) {
	if _, err := r.remote(); err != nil {
		return nil, err
	}
	if r.authority == nil {
		return nil, fmt.Errorf("%w: token authority not initialized", shared.ErrInvalidConfig)
	}
	return r.authority, nil
}

// AuthLogin discards the saved token and runs a new grant, opening the browser when the
// authorization code flow is configured.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	authority, err := r.authorizer()
	if err != nil {
		return err
	}

	r.logger.Info("requesting new access token", "user_auth", r.config.Auth.UserAuth)
	if _, err := authority.Authorize(ctx, false, true); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	r.writePlainln("%s Authorization successful", styles.OK("✓"))
	r.writePlain("%s Token saved to %s\n", styles.OK("✓"), r.config.DataPath(r.config.Auth.TokenFile))
	return nil
}

// AuthStatus validates the saved token, refreshing it when needed, and shows its expiry and
// the authorised user.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	authority, err := r.authorizer()
	if err != nil {
		return err
	}

	if _, err := authority.Authorize(ctx, true, false); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	tok := authority.Token()

	var user *services.SpotifyUser
	if p, ok := r.service.(profiler); ok && r.config.Auth.UserAuth {
		if user, err = p.Me(ctx); err != nil {
			r.logger.Warn("failed to fetch user profile", "error", err)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"token": tok.Redacted(), "user": user}, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Authentication")
	r.writePlain("Token:   %s\n", styles.OK("valid"))
	if expiry := tok.Expiry(); !expiry.IsZero() {
		r.writePlain("Expires: %s (in %s)\n", expiry.Local().Format(time.RFC1123), time.Until(expiry).Round(time.Second))
	}
	if tok.Scope != "" {
		r.writePlain("Scope:   %s\n", tok.Scope)
	}
	if user != nil {
		r.writePlain("User:    %s (%s)\n", user.DisplayName, user.ID)
	}
	return nil
}

// AuthLogout deletes the saved token file.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	path := r.config.DataPath(r.config.Auth.TokenFile)
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return r.writePlain("%s\n", styles.Help("No saved token"))
		}
		return fmt.Errorf("failed to remove token: %w", err)
	}
	r.logger.Info("token removed", "path", path)
	return r.writePlain("%s Token removed\n", styles.OK("✓"))
}
