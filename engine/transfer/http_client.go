package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
)

const defaultChunkSize = 64 * 1024

// httpClient is the implementation of the Client interface over plain HTTP.
// It speaks the scene service's wire format: a JSON manifest endpoint and a
// chunked byte stream per model.
type httpClient struct {
	baseURL   string
	http      *http.Client
	chunkSize int
}

var _ Client = &httpClient{}

// NewHTTPClient creates a Client that talks to a scene service at the given
// base URL (e.g. "http://localhost:8080") with the provided options applied.
//
// Parameters:
//   - baseURL: the scene service root URL, without a trailing slash
//   - options: a variadic list of HTTPClientBuilderOption functions to configure the client
//
// Returns:
//   - Client: the newly created HTTP transfer client
func NewHTTPClient(baseURL string, options ...HTTPClientBuilderOption) Client {
	c := &httpClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{},
		chunkSize: defaultChunkSize,
	}

	for _, option := range options {
		option(c)
	}
	return c
}

func (c *httpClient) FetchManifest(ctx context.Context, sceneID string) (*Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.manifestURL(sceneID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("manifest request for %q failed: %w", sceneID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("scene %q: %w", sceneID, ErrNotFound)
	default:
		return nil, fmt.Errorf("manifest request for %q returned status %d", sceneID, resp.StatusCode)
	}

	var manifest Manifest
	if err := json.NewDecoder(resp.Body).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("failed to decode manifest for %q: %w", sceneID, err)
	}
	return &manifest, nil
}

func (c *httpClient) StreamModel(ctx context.Context, sceneID, relPath, dest string, totalBytes int64, onProgress ProgressFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.modelURL(sceneID, relPath), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("model stream for %s/%s failed: %w", sceneID, relPath, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("model %s/%s: %w", sceneID, relPath, ErrNotFound)
	default:
		return fmt.Errorf("model stream for %s/%s returned status %d", sceneID, relPath, resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	received, err := c.copyChunks(ctx, out, resp.Body, totalBytes, onProgress)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && received != totalBytes {
		err = fmt.Errorf("%s/%s: got %d of %d bytes: %w", sceneID, relPath, received, totalBytes, ErrSizeMismatch)
	}
	if err != nil {
		// Completion logic downstream treats file presence as full, valid
		// content, so a failed stream must not leave a partial file behind.
		os.Remove(dest)
		return err
	}
	return nil
}

// copyChunks copies body to out in chunkSize pieces, reporting progress after
// each chunk and checking ctx between chunks so cancellation aborts promptly.
func (c *httpClient) copyChunks(ctx context.Context, out io.Writer, body io.Reader, totalBytes int64, onProgress ProgressFunc) (int64, error) {
	buf := make([]byte, c.chunkSize)
	var received int64
	for {
		if err := ctx.Err(); err != nil {
			return received, err
		}
		n, err := body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return received, werr
			}
			received += int64(n)
			if onProgress != nil {
				onProgress(received, totalBytes)
			}
		}
		if err == io.EOF {
			return received, nil
		}
		if err != nil {
			return received, err
		}
	}
}

func (c *httpClient) manifestURL(sceneID string) string {
	return c.baseURL + "/scenes/" + url.PathEscape(sceneID) + "/manifest"
}

func (c *httpClient) modelURL(sceneID, relPath string) string {
	// Relative paths may contain separators; escape each segment individually.
	segments := strings.Split(path.Clean(relPath), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.baseURL + "/scenes/" + url.PathEscape(sceneID) + "/models/" + strings.Join(segments, "/")
}
