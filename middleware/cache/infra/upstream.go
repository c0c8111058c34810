package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultUpstreamTimeout = 5 * time.Second
	MaxResponseSize        = 1 * 1024 * 1024 // 1MB
)

// UpstreamStatusError é devolvido quando o upstream responde fora de 2xx.
type UpstreamStatusError struct {
	URL        string
	StatusCode int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream %s: status %d", e.URL, e.StatusCode)
}

// HTTPFetcher busca um documento JSON remoto. Fetch serve como domain.Fetcher.
type HTTPFetcher struct {
	Client  *http.Client
	URL     string
	Timeout time.Duration
}

func NewHTTPFetcher(url string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultUpstreamTimeout
	}
	return &HTTPFetcher{Client: http.DefaultClient, URL: url, Timeout: timeout}
}

func (f *HTTPFetcher) Fetch(ctx context.Context) (any, error) {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream get %s: %w", f.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxResponseSize))
		return nil, &UpstreamStatusError{URL: f.URL, StatusCode: resp.StatusCode}
	}

	var out any
	if err := json.NewDecoder(io.LimitReader(resp.Body, MaxResponseSize)).Decode(&out); err != nil {
		return nil, fmt.Errorf("upstream decode %s: %w", f.URL, err)
	}
	return out, nil
}
