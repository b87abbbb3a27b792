package instruments

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gocarina/gocsv"

	"kiteclient/logger"
)

// DumpURL is the production instrument dump endpoint.
const DumpURL = "https://api.kite.trade/instruments"

// FetchError is returned when the instrument dump cannot be downloaded.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to fetch instrument dump from %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("failed to fetch instrument dump from %s: [%d]", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError is returned when the dump body is not well-formed CSV.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse instrument dump: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type fetchOptions struct {
	url    string
	client *http.Client
}

type FetchOption func(*fetchOptions)

// WithURL overrides the dump endpoint.
func WithURL(u string) FetchOption {
	return func(o *fetchOptions) {
		o.url = u
	}
}

// WithHTTPClient overrides the HTTP client used for the download.
func WithHTTPClient(c *http.Client) FetchOption {
	return func(o *fetchOptions) {
		o.client = c
	}
}

// Fetch downloads and parses the instrument dump. The dump is large (~100k
// rows) and refreshed by the exchange once per day.
func Fetch(ctx context.Context, opts ...FetchOption) (*Catalog, error) {
	log := logger.GetLogger()

	o := fetchOptions{
		url:    DumpURL,
		client: &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(&o)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return nil, &FetchError{URL: o.url, Err: err}
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: o.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &FetchError{URL: o.url, StatusCode: resp.StatusCode}
	}

	var list []Instrument
	if err := gocsv.Unmarshal(resp.Body, &list); err != nil {
		return nil, &ParseError{Err: err}
	}

	log.Info("Downloaded instrument dump", map[string]interface{}{
		"url":   o.url,
		"count": len(list),
	})

	return NewCatalog(list), nil
}
