// Package api is the request layer used to talk to the remote service.
//
// A [Requester] wraps every call with authorization headers from a [HeaderSource], optional
// client side rate limiting, a response [Cache] for GET requests and a retry loop:
//
//   - 400, 403 and 404 fail immediately with a [*StatusError]
//   - a Retry-After longer than the [Backoff] budget fails immediately
//   - everything else is retried with exponential backoff until [Backoff.Count] is exhausted
//
// [Requester.Paginate] follows "next" cursors and [Requester.Batch] splits id lists over
// bulk endpoints. Requests are issued one at a time.
package api
