package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/m3usync/internal/models"
	"github.com/desertthunder/m3usync/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Tester checks a token against the live API using the given authorization headers.
type Tester func(ctx context.Context, header http.Header) bool

// UserAuthorizer obtains an authorization code by sending the user to authURL.
// The returned code must come from a redirect carrying the same state.
type UserAuthorizer interface {
	Authorize(ctx context.Context, authURL, state string) (code string, err error)
}

// Config configures an [Authority].
type Config struct {
	OAuth      *oauth2.Config  // client, endpoints, redirect URL and scopes
	UserAuth   bool            // authorization code flow; client credentials otherwise
	Authorizer UserAuthorizer  // required when UserAuth is set
	TokenFile  string          // persisted token, empty disables persistence
	TestExpiry time.Duration   // minimum remaining lifetime, zero disables the check
	Tester     Tester          // optional live check
	Client     *http.Client    // used for token endpoint calls
	Logger     *log.Logger
}

// Authority issues authorization headers, refreshing or regranting its token as needed.
type Authority struct {
	cfg     Config
	logger  *log.Logger
	now     func() time.Time
	mu      sync.Mutex
	token   *models.Token
	refresh string
}

// New creates an [Authority] from cfg.
func New(cfg Config) (*Authority, error) {
	if cfg.OAuth == nil || cfg.OAuth.ClientID == "" {
		return nil, fmt.Errorf("%w: client id is required", shared.ErrMissingCredentials)
	}
	if cfg.UserAuth && cfg.Authorizer == nil {
		return nil, fmt.Errorf("%w: user authorization requires an authorizer", shared.ErrInvalidConfig)
	}
	if cfg.Logger == nil {
		cfg.Logger = shared.NewLogger(nil)
	}

	return &Authority{cfg: cfg, logger: cfg.Logger, now: time.Now}, nil
}

// Token returns a copy of the current token, or nil.
func (a *Authority) Token() *models.Token {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token == nil {
		return nil
	}
	tok := *a.token
	return &tok
}

// Authorize returns headers for a valid token.
//
// forceReload rereads the token file even when a token is loaded. forceNew discards the
// current token and requests a new grant.
func (a *Authority) Authorize(ctx context.Context, forceReload, forceNew bool) (http.Header, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if forceNew {
		a.setToken(nil)
	} else if a.token == nil || forceReload {
		tok, err := LoadToken(a.cfg.TokenFile)
		if err != nil {
			return nil, err
		}
		if tok != nil {
			a.logger.Debug("saved access token found", "file", a.cfg.TokenFile)
		}
		a.setToken(tok)
	}

	if a.token == nil {
		a.logger.Debug("no usable token, generating new token")
		if err := a.grant(ctx); err != nil {
			return nil, err
		}
	}

	return a.validate(ctx)
}

// Headers returns headers for the current token, authorizing first when no token is held
// or it is about to expire. The live test is skipped.
func (a *Authority) Headers(ctx context.Context) (http.Header, error) {
	a.mu.Lock()
	if a.token != nil && a.token.Error == "" && a.token.AccessToken != "" && a.fresh(a.token) {
		h := header(a.token)
		a.mu.Unlock()
		return h, nil
	}
	a.mu.Unlock()

	return a.Authorize(ctx, false, false)
}

// Reauthorize replaces a token the API rejected: it refreshes when possible and regrants otherwise.
func (a *Authority) Reauthorize(ctx context.Context) (http.Header, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.logger.Info("access token rejected, reauthorizing")
	if a.token != nil {
		a.token.Error = "rejected"
	}
	return a.validate(ctx)
}

// validate runs the test, refresh and regrant cascade on the loaded token and saves the result.
func (a *Authority) validate(ctx context.Context) (http.Header, error) {
	valid := a.test(ctx, a.token)
	refreshed := false

	if !valid && a.refresh != "" {
		a.logger.Debug("access token is not valid and refresh token found, refreshing")
		if err := a.refreshToken(ctx); err != nil {
			return nil, err
		}
		valid = a.test(ctx, a.token)
		refreshed = true
	}

	if !valid {
		if refreshed {
			a.logger.Debug("refreshed access token is still not valid, generating new token")
		} else {
			a.logger.Debug("access token is not valid and no refresh token found, generating new token")
		}
		if err := a.grant(ctx); err != nil {
			return nil, err
		}
		valid = a.test(ctx, a.token)
	}

	if a.token == nil {
		return nil, fmt.Errorf("%w: token not generated", shared.ErrAuthFailed)
	}
	if !valid {
		return nil, fmt.Errorf("%w: %+v", shared.ErrTokenInvalid, a.token.Redacted())
	}

	a.logger.Debug("access token is valid, saving")
	if err := SaveToken(a.cfg.TokenFile, a.token); err != nil {
		return nil, err
	}
	return header(a.token), nil
}

// test reports whether tok carries no error, passes the live test and outlives the expiry margin.
func (a *Authority) test(ctx context.Context, tok *models.Token) bool {
	if tok == nil || tok.Error != "" || tok.AccessToken == "" {
		return false
	}
	if a.cfg.Tester != nil && !a.cfg.Tester(ctx, header(tok)) {
		a.logger.Debug("token failed live test")
		return false
	}
	return a.fresh(tok)
}

func (a *Authority) fresh(tok *models.Token) bool {
	if a.cfg.TestExpiry <= 0 || tok.ExpiresAt == 0 {
		return true
	}
	return tok.Expiry().Sub(a.now()) > a.cfg.TestExpiry
}

// grant requests a token from scratch.
func (a *Authority) grant(ctx context.Context) error {
	ctx = a.clientContext(ctx)

	var (
		tok *oauth2.Token
		err error
	)

	if a.cfg.UserAuth {
		state := shared.GenerateState()
		authURL := a.cfg.OAuth.AuthCodeURL(state)

		a.logger.Info("authorizing user privilege access")
		code, aerr := a.cfg.Authorizer.Authorize(ctx, authURL, state)
		if aerr != nil {
			return fmt.Errorf("%w: %v", shared.ErrAuthFailed, aerr)
		}
		if code == "" {
			return shared.ErrAuthCodeMissing
		}
		tok, err = a.cfg.OAuth.Exchange(ctx, code)
	} else {
		cc := &clientcredentials.Config{
			ClientID:     a.cfg.OAuth.ClientID,
			ClientSecret: a.cfg.OAuth.ClientSecret,
			TokenURL:     a.cfg.OAuth.Endpoint.TokenURL,
			Scopes:       a.cfg.OAuth.Scopes,
			AuthStyle:    a.cfg.OAuth.Endpoint.AuthStyle,
		}
		tok, err = cc.Token(ctx)
	}

	return a.accept(tok, err, shared.ErrAuthFailed)
}

func (a *Authority) refreshToken(ctx context.Context) error {
	src := a.cfg.OAuth.TokenSource(a.clientContext(ctx), &oauth2.Token{RefreshToken: a.refresh})
	tok, err := src.Token()
	return a.accept(tok, err, shared.ErrRefreshFailed)
}

// accept stores a grant response. Rejections by the token endpoint become a token carrying
// the error so that the cascade can continue; other failures abort it.
func (a *Authority) accept(tok *oauth2.Token, err error, sentinel error) error {
	now := a.now()

	var re *oauth2.RetrieveError
	switch {
	case errors.As(err, &re):
		a.logger.Warn("token request rejected", "error", re.ErrorCode, "description", re.ErrorDescription)
		a.setToken(fromRetrieveError(re, now))
		return nil
	case err != nil:
		return fmt.Errorf("%w: %v", sentinel, err)
	}

	next := fromOAuth(tok, now)
	if next.RefreshToken == "" {
		next.RefreshToken = a.refresh
	}
	a.setToken(next)
	a.logger.Debug("new token generated", "token", next.Redacted())
	return nil
}

// setToken replaces the held token, remembering the last refresh token seen.
func (a *Authority) setToken(tok *models.Token) {
	a.token = tok
	if tok != nil && tok.RefreshToken != "" {
		a.refresh = tok.RefreshToken
	}
}

func (a *Authority) clientContext(ctx context.Context) context.Context {
	if a.cfg.Client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.cfg.Client)
}

func header(tok *models.Token) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+tok.AccessToken)
	return h
}
