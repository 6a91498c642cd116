package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/m3usync/internal/shared"
)

// CallbackResult is the outcome of a single authorization redirect.
type CallbackResult struct {
	Code string
	err  error
}

func (c *CallbackResult) Error() error {
	return c.err
}

// CallbackHandler receives the authorization redirect and reports the code it carries.
// Implements the [Handler] interface for registration with a [Router].
type CallbackHandler struct {
	path    string
	state   string
	results chan CallbackResult
	once    sync.Once
	mu      sync.Mutex
	hit     bool
}

// NewCallbackHandler creates a handler serving path that accepts only redirects carrying state.
func NewCallbackHandler(path, state string) *CallbackHandler {
	if path == "" {
		path = "/"
	}
	return &CallbackHandler{path: path, state: state, results: make(chan CallbackResult, 1)}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{h.path}
}

// ServeHTTP handles the redirect. Only the first request is processed.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.hit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.hit = true
	h.mu.Unlock()

	q := r.URL.Query()
	if q.Get("state") != h.state {
		h.Send(CallbackResult{err: shared.ErrStateMismatch})
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		h.Send(CallbackResult{err: fmt.Errorf("%w: %s %s", shared.ErrAuthCodeMissing, q.Get("error"), q.Get("error_description"))})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	h.Send(CallbackResult{Code: code})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>%[1]s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Code received</h1>
        <p>You may now close this window and return to %[1]s.</p>
    </div>
</body>
</html>
`, shared.AppName)
}

// Send delivers the result through the channel (only once).
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result returns the channel receiving exactly one result before it is closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.results
}
