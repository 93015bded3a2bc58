package main

import "net/url"

// buildHref returns a link to the current page with one query parameter
// overridden and every other parameter preserved. Encode sorts keys, so the
// serialized form is deterministic.
func buildHref(q url.Values, key, value string) string {
	next := make(url.Values, len(q)+1)
	for k, vs := range q {
		next[k] = append([]string(nil), vs...)
	}
	next.Set(key, value)
	return "?" + next.Encode()
}
