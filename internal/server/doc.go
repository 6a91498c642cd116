// Package server provides the local HTTP listener that completes interactive authorization.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first).
// The [BasicRouter] implementation uses [http.ServeMux] method patterns.
//
// # Authorization Callback
//
// [CallbackHandler] receives the redirect from the accounts service, checks the state
// parameter and passes the authorization code through a channel. Only the first callback
// is processed.
//
// [CallbackServer] ties these together for the token authority: it listens on the host and
// port of the configured redirect URL, sends the user to the authorization page and waits
// for the code, failing after a timeout (two minutes by default).
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
