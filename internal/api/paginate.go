package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Paginate follows the "next" URL of page until it is null, appending each page's
// "items" onto page["items"] in place. page["next"] is left null on return.
func (r *Requester) Paginate(ctx context.Context, page map[string]any, opts *Options) error {
	skip := opts != nil && opts.SkipCache

	items, _ := page["items"].([]any)
	for {
		next, _ := page["next"].(string)
		if next == "" {
			break
		}

		resp, err := r.Get(ctx, next, &Options{SkipCache: skip})
		if err != nil {
			return fmt.Errorf("failed to fetch next page: %w", err)
		}

		more, _ := resp["items"].([]any)
		items = append(items, more...)
		page["next"] = resp["next"]
	}

	page["items"] = items
	page["next"] = nil
	return nil
}

// Chunk splits ids into groups of size, clamped to [1, limit].
func Chunk(ids []string, size, limit int) [][]string {
	limit = max(limit, 1)
	size = min(max(size, 1), limit)

	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// Batch requests rawURL once per chunk of ids, passing the chunk as a comma separated
// "ids" parameter, and collects the list found under key in each response.
func (r *Requester) Batch(ctx context.Context, rawURL string, ids []string, size, limit int, key string, opts *Options) ([]any, error) {
	var out []any
	for _, chunk := range Chunk(ids, size, limit) {
		o := &Options{Params: url.Values{}}
		if opts != nil {
			o.SkipCache = opts.SkipCache
			for k, vs := range opts.Params {
				o.Params[k] = vs
			}
		}
		o.Params.Set("ids", strings.Join(chunk, ","))

		resp, err := r.Get(ctx, rawURL, o)
		if err != nil {
			return out, err
		}
		list, _ := resp[key].([]any)
		out = append(out, list...)
	}
	return out, nil
}

// Decode converts a decoded JSON value (as returned by [Requester.Do]) into v.
func Decode(src any, v any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("failed to re-encode response: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
