package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/m3usync/internal/shared"
)

// DefaultCallbackTimeout bounds how long [CallbackServer.Authorize] waits for the redirect.
const DefaultCallbackTimeout = 2 * time.Minute

// CallbackServer obtains an authorization code through the user's browser.
type CallbackServer struct {
	RedirectURL string             // the registered redirect; its host and path are served
	Timeout     time.Duration      // zero uses DefaultCallbackTimeout
	Out         io.Writer          // user facing instructions
	Open        func(string) error // opens the authorization page; defaults to the system browser
	Logger      *log.Logger

	mu   sync.Mutex
	addr string
}

// Addr returns the address the server is listening on, or "" when idle.
func (s *CallbackServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Authorize serves the redirect URL, opens authURL and returns the code from the first
// redirect carrying state.
func (s *CallbackServer) Authorize(ctx context.Context, authURL, state string) (string, error) {
	redirect, err := url.Parse(s.RedirectURL)
	if err != nil || redirect.Host == "" {
		return "", fmt.Errorf("%w: redirect url %q", shared.ErrInvalidConfig, s.RedirectURL)
	}

	logger := s.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	out := s.Out
	if out == nil {
		out = io.Discard
	}
	open := s.Open
	if open == nil {
		open = shared.OpenBrowser
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultCallbackTimeout
	}

	ln, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return "", fmt.Errorf("failed to listen on %s: %w", redirect.Host, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.addr = ""
		s.mu.Unlock()
	}()

	handler := NewCallbackHandler(redirect.Path, state)
	router := NewBasicRouter()
	router.Use(LogRequests(logger))
	router.Handler(handler)

	srv := &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	serverErrors := make(chan error, 1)
	go func() {
		logger.Infof("listening for authorization callback at %v", ln.Addr())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("error shutting down callback server", "error", err)
		}
	}()

	fmt.Fprintf(out, "→ Opening %s authorization in your browser...\n", shared.AppName)
	if err := open(authURL); err != nil {
		logger.Warnf("failed to open browser automatically %v", err)
		fmt.Fprintf(out, "Please open this URL in your browser:\n%s\n\n", authURL)
	}
	fmt.Fprintf(out, "→ Waiting for code, timeout in %v...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case result := <-handler.Result():
		if result.Error() != nil {
			return "", result.Error()
		}
		fmt.Fprintln(out, "✓ Code received")
		return result.Code, nil
	case err := <-serverErrors:
		return "", fmt.Errorf("callback server error: %w", err)
	case <-timer.C:
		return "", fmt.Errorf("%w: no authorization received after %v", shared.ErrTimeout, timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
