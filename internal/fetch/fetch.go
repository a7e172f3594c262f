// Package fetch retrieves uploaded spreadsheets over HTTP for the
// conversion pipeline and removes them again once they were processed.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	appLog "shiftcal/internal/log"
)

// Error reports a failed interaction with the blob host. StatusCode is
// zero for transport-level failures.
type Error struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", redactURL(e.URL), e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", redactURL(e.URL), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Client downloads and deletes source files. The zero value is not
// usable; construct with NewClient.
type Client struct {
	hc       *http.Client
	maxBytes int64
}

// NewClient returns a Client whose requests time out after timeout and
// whose downloads are capped at maxBytes.
func NewClient(timeout time.Duration, maxBytes int64) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Client{
		hc:       &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Fetch downloads the file at rawURL. Non-2xx responses and bodies
// larger than the configured cap are errors; the conversion never sees
// partial bytes.
func (c *Client) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, &Error{URL: rawURL, Err: fmt.Errorf("empty url")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}

	appLog.Debug("fetching source file", "url", redactURL(rawURL))
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}
	if int64(len(body)) > c.maxBytes {
		return nil, &Error{URL: rawURL, Err: fmt.Errorf("file exceeds %d byte limit", c.maxBytes)}
	}

	appLog.Debug("fetched source file", "url", redactURL(rawURL), "bytes", len(body))
	return body, nil
}

// Delete removes the file at rawURL. A 404 means the file is already
// gone and counts as success; callers treat any remaining error as a
// cleanup problem to log, not to surface.
func (c *Client) Delete(ctx context.Context, rawURL string) error {
	if rawURL == "" {
		return &Error{URL: rawURL, Err: fmt.Errorf("empty url")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, rawURL, nil)
	if err != nil {
		return &Error{URL: rawURL, Err: err}
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return &Error{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return nil
}

// redactURL keeps only the scheme and host so logs never leak signed
// query strings or private paths.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "(unparseable url)"
	}
	return u.Scheme + "://" + u.Host + "/..."
}
