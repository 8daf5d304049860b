package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/five82/periscope/internal/fetch"
)

// Client exposes the backend verbs on top of a fetch.Client.
type Client struct {
	http         *fetch.Client
	contentField string
}

// Option customises a Client.
type Option func(*Client)

// WithContentField selects the record body field, "text" or "content".
func WithContentField(field string) Option {
	return func(c *Client) {
		c.contentField = normalizeField(field)
	}
}

// New wraps an HTTP client.
func New(hc *fetch.Client, opts ...Option) *Client {
	c := &Client{http: hc, contentField: FieldText}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ContentField reports the schema field used when writing records.
func (c *Client) ContentField() string {
	return c.contentField
}

// HTTPClient returns the transport used for long-lived stream reads.
func (c *Client) HTTPClient() *http.Client {
	return c.http.HTTPClient()
}

// Health pings /healthz/.
func (c *Client) Health(ctx context.Context) (Health, error) {
	parsed, err := c.http.Get(ctx, "/healthz/", nil, nil)
	if err != nil {
		return Health{}, err
	}
	payload, ok := parsed.(map[string]any)
	if !ok {
		return Health{}, fmt.Errorf("healthz: unexpected payload %v", parsed)
	}
	okValue, _ := payload["ok"].(bool)
	return Health{OK: okValue, Raw: payload}, nil
}

// ListData lists records, filtered by search when it is non-blank.
func (c *Client) ListData(ctx context.Context, search string) ([]Record, error) {
	var query url.Values
	if term := strings.TrimSpace(search); term != "" {
		query = url.Values{"search": {term}}
	}
	var records []Record
	if _, err := c.http.Get(ctx, "/data/", query, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// GetData fetches one record.
func (c *Client) GetData(ctx context.Context, id int64) (Record, error) {
	var rec Record
	if _, err := c.http.Get(ctx, recordPath(id), nil, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// CreateData creates a record.
func (c *Client) CreateData(ctx context.Context, text string) (Record, error) {
	var rec Record
	if _, err := c.http.Post(ctx, "/data/", nil, c.body(text), &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// UpdateData replaces a record.
func (c *Client) UpdateData(ctx context.Context, id int64, text string) (Record, error) {
	var rec Record
	if _, err := c.http.Put(ctx, recordPath(id), c.body(text), &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// PatchData partially updates a record.
func (c *Client) PatchData(ctx context.Context, id int64, text string) (Record, error) {
	var rec Record
	if _, err := c.http.Patch(ctx, recordPath(id), c.body(text), &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// DeleteData removes a record.
func (c *Client) DeleteData(ctx context.Context, id int64) error {
	_, err := c.http.Delete(ctx, recordPath(id))
	return err
}

// StreamURL builds the absolute MJPEG URL for q. Empty values are omitted
// and gray is only sent when true; width, client and the token always are.
func (c *Client) StreamURL(q StreamQuery) string {
	values := streamValues(q)
	values.Set("t", strconv.FormatUint(q.Token, 10))
	return c.http.Resolve("/stream/", values)
}

// FetchProof asks the backend to attest the session described by q.
func (c *Client) FetchProof(ctx context.Context, q StreamQuery) (Proof, error) {
	var proof Proof
	if _, err := c.http.Get(ctx, "/stream/proof/", streamValues(q), &proof); err != nil {
		return Proof{}, err
	}
	return proof, nil
}

// AbortStream asks the backend to stop whatever stream clientID holds.
func (c *Client) AbortStream(ctx context.Context, clientID string) (bool, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return false, fmt.Errorf("abort stream: missing client id")
	}
	var result AbortResult
	if _, err := c.http.Post(ctx, "/stream/abort/", url.Values{"client": {clientID}}, nil, &result); err != nil {
		return false, err
	}
	return result.Aborted, nil
}

func (c *Client) body(text string) map[string]string {
	return map[string]string{c.contentField: text}
}

func recordPath(id int64) string {
	return "/data/" + strconv.FormatInt(id, 10) + "/"
}

func streamValues(q StreamQuery) url.Values {
	values := url.Values{}
	if q.Grayscale {
		values.Set("gray", "1")
	}
	if q.Width > 0 {
		values.Set("width", strconv.Itoa(q.Width))
	}
	if src := strings.TrimSpace(q.SourceURL); src != "" {
		values.Set("url", src)
	}
	if q.ClientID != "" {
		values.Set("client", q.ClientID)
	}
	return values
}
