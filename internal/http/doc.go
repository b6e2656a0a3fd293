// Package http provides the HTTP client used to fetch resources.
//
// The Client in this package handles:
//   - User-Agent headers
//   - A fixed per-request timeout (25s by default)
//   - Single-attempt fetches, classified into success or *FetchError
//
// # Basic Usage
//
//	client := http.NewClient()
//
//	data, err := client.Fetch(ctx, "https://example.com/sprites/1.png")
//	if err != nil {
//	    // err is a *http.FetchError
//	}
//
// Only a 200 OK response with a complete body is a success. Any other
// status, a transport error, a timeout or a truncated body is a failure
// with a human-readable Reason.
package http
