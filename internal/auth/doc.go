// Package auth implements the token authority used to sign every request to the remote API.
//
// [Authority.Authorize] walks the token lifecycle: a stored token is loaded from disk and
// tested, an invalid token is refreshed when a refresh token is known, and a token that is
// still invalid is replaced by a full grant. Full grants use either client credentials or
// the authorization code flow, where the code is obtained from a [UserAuthorizer].
//
// Tokens are persisted as JSON after every successful validation.
package auth
