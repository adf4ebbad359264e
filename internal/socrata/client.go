package socrata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MetadataError reports a failed metadata fetch. NotFound distinguishes a
// missing dataset from a transport failure so callers can map the two to
// different responses.
type MetadataError struct {
	NotFound bool
	msg      string
}

func (e *MetadataError) Error() string {
	return e.msg
}

// Client is an HTTP client for the Socrata API.
//
// Scheme exists so tests can point the client at an httptest server;
// production callers leave it empty and get https.
type Client struct {
	meta   *http.Client
	stream *http.Client
	Scheme string
}

// NewClient returns a Client whose metadata and row-count calls are
// bounded by timeout. The row-export stream is deliberately unbounded
// here: it can run for the whole import and is cancelled through its
// context instead.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		meta:   &http.Client{Timeout: timeout},
		stream: &http.Client{},
	}
}

func (c *Client) scheme() string {
	if c.Scheme != "" {
		return c.Scheme
	}
	return "https"
}

// FetchMetadata retrieves the dataset's metadata document. A non-200
// response means the dataset does not exist; any transport failure is
// reported as such. Both come back as *MetadataError.
func (c *Client) FetchMetadata(ctx context.Context, src Source) (json.RawMessage, error) {
	metadataURL := fmt.Sprintf("%s://%s/api/views/%s.json", c.scheme(), src.Domain, src.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metadataURL, nil)
	if err != nil {
		return nil, &MetadataError{msg: fmt.Sprintf("HTTP error fetching metadata for dataset: %v", err)}
	}

	resp, err := c.meta.Do(req)
	if err != nil {
		return nil, &MetadataError{msg: fmt.Sprintf("HTTP error fetching metadata for dataset: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &MetadataError{NotFound: true, msg: "Dataset not found"}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &MetadataError{msg: fmt.Sprintf("HTTP error fetching metadata for dataset: %v", err)}
	}
	if !json.Valid(body) {
		return nil, &MetadataError{msg: "HTTP error fetching metadata for dataset: invalid JSON body"}
	}

	return json.RawMessage(body), nil
}

// CountRows probes the dataset's row count. Best-effort: every failure
// path reports the count as unknown and never fails the caller.
func (c *Client) CountRows(ctx context.Context, src Source) (int64, bool) {
	countURL := fmt.Sprintf("%s://%s/resource/%s.json?$select=count(*)", c.scheme(), src.Domain, src.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, countURL, nil)
	if err != nil {
		return 0, false
	}

	resp, err := c.meta.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}

	// The endpoint answers [{"count": "123"}] with a key that starts
	// with "count" (the alias varies by Socrata version).
	var payload []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, false
	}
	if len(payload) != 1 {
		return 0, false
	}
	for key, value := range payload[0] {
		if !strings.HasPrefix(key, "count") {
			continue
		}
		switch v := value.(type) {
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return 0, false
			}
			return n, true
		case float64:
			return int64(v), true
		}
	}
	return 0, false
}

// OpenRowStream opens the chunked CSV row export for the dataset. The
// caller owns the returned body and must close it; cancelling ctx aborts
// the stream mid-read.
func (c *Client) OpenRowStream(ctx context.Context, src Source) (io.ReadCloser, error) {
	csvURL := fmt.Sprintf("%s://%s/api/views/%s/rows.csv", c.scheme(), src.Domain, src.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, csvURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("row export returned status %d", resp.StatusCode)
	}

	return resp.Body, nil
}
