package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type GetOptions struct {
	MaxSize  int
	Timeout  time.Duration
	Cache    bool
	CacheTTL time.Duration
}

// A thing capable of fetching a network archive, optionally with
// caching
type Downloader interface {
	Get(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error)
}

// Fetches url without caching. http(s) URLs are downloaded, while
// file:// URLs and plain paths are read from disk. Provided as
// convenience for implementing custom Downloaders.
func Fetch(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error) {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return HTTPGet(ctx, url, headers, options)
	}
	return FileGet(strings.TrimPrefix(url, "file://"), options)
}

// Gets a file over HTTP. Doesn't cache.
func HTTPGet(ctx context.Context, url string, headers map[string]string, options GetOptions) ([]byte, error) {
	client := &http.Client{
		Timeout: options.Timeout,
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for k, v := range headers {
		req.Header.Add(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	return readLimited(resp.Body, options.MaxSize)
}

// Reads a local file, respecting MaxSize.
func FileGet(path string, options GetOptions) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening: %w", err)
	}
	defer f.Close()

	return readLimited(f, options.MaxSize)
}

// Reads r in full. Data beyond maxSize bytes (if positive) is an
// error rather than silently truncated.
func readLimited(r io.Reader, maxSize int) ([]byte, error) {
	if maxSize > 0 {
		r = io.LimitReader(r, int64(maxSize)+1)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	if maxSize > 0 && len(body) > maxSize {
		return nil, fmt.Errorf("exceeds max size of %d bytes", maxSize)
	}

	return body, nil
}
