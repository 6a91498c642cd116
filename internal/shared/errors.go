package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed      = fmt.Errorf("authentication failed")
	ErrTokenInvalid    = fmt.Errorf("token is still not valid")
	ErrRefreshFailed   = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken  = fmt.Errorf("no refresh token available")
	ErrTimeout         = fmt.Errorf("operation timed out")
	ErrStateMismatch   = fmt.Errorf("invalid state parameter")
	ErrAuthCodeMissing = fmt.Errorf("authorization code missing")

	// API and service errors
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrForbidden        = fmt.Errorf("not authorised for this action")
	ErrNotFound         = fmt.Errorf("resource not found")
	ErrBadRequest       = fmt.Errorf("bad request")
	ErrRetryTooLong     = fmt.Errorf("retry time is greater than timeout")
	ErrMaxRetries       = fmt.Errorf("max retries exceeded")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")
	ErrTrackNotFound    = fmt.Errorf("track not found")

	// Local library errors
	ErrUnsupportedFormat = fmt.Errorf("unsupported audio format")
	ErrNoTags            = fmt.Errorf("no tags found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
