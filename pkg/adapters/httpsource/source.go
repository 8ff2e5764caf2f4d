// Package httpsource reads the raw flow document from a URL.
package httpsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxBodyBytes caps the size of a fetched document.
const MaxBodyBytes = 4 << 20

// Source implements ports.Source with an HTTP GET.
type Source struct {
	url    string
	client *http.Client
	header http.Header
}

// Option configures a Source.
type Option func(*Source)

// WithClient replaces the default client (10s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Source) {
		if c != nil {
			s.client = c
		}
	}
}

// WithHeader adds a request header, e.g. an authorization token.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		s.header.Add(key, value)
	}
}

// New creates a Source for url.
func New(url string, opts ...Option) *Source {
	s := &Source{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		header: make(http.Header),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch downloads the document. Non-2xx responses are errors.
func (s *Source) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build flow source request: %w", err)
	}
	for k, vs := range s.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "application/json, application/yaml;q=0.9, */*;q=0.1")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch flow source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch flow source: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read flow source: %w", err)
	}
	if len(data) > MaxBodyBytes {
		return nil, fmt.Errorf("flow source exceeds %d bytes", MaxBodyBytes)
	}
	return data, nil
}
