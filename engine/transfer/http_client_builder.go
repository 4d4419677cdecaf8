package transfer

import "net/http"

// HTTPClientBuilderOption is a functional option for configuring an HTTP
// transfer client via NewHTTPClient.
type HTTPClientBuilderOption func(*httpClient)

// WithHTTPClient is an option builder that sets the underlying *http.Client,
// allowing callers to control timeouts, proxies, and transports.
//
// Parameters:
//   - h: the HTTP client to use for all requests
//
// Returns:
//   - HTTPClientBuilderOption: a function that applies the HTTP client option
func WithHTTPClient(h *http.Client) HTTPClientBuilderOption {
	return func(c *httpClient) {
		if h != nil {
			c.http = h
		}
	}
}

// WithChunkSize is an option builder that sets the read buffer size used while
// streaming model bytes. The cancellation context is checked once per chunk,
// so smaller chunks abort faster at the cost of more read calls.
//
// Parameters:
//   - n: the chunk size in bytes (values <= 0 keep the default)
//
// Returns:
//   - HTTPClientBuilderOption: a function that applies the chunk size option
func WithChunkSize(n int) HTTPClientBuilderOption {
	return func(c *httpClient) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}
