package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"

	"github.com/jihwankim/recheckwatch/pkg/logging"
)

// Config configures a Client. IndexFormat is a Go reference-time layout
// (default "2006.01.02") appended to IndexPrefix ("logstash-" by default)
// to build date-based index names.
type Config struct {
	URL            string
	IndexPrefix    string
	IndexFormat    string
	RequestTimeout time.Duration
}

// Client is a typed wrapper over the log-index backend, applying a
// per-request timeout and translating the backend's raw JSON response
// into a ResultSet.
type Client struct {
	es    *elasticsearch.Client
	cfg   Config
	log   *logging.Logger
	nowFn func() time.Time
}

// New constructs a Client against the configured backend URL.
func New(cfg Config, log *logging.Logger) (*Client, error) {
	if cfg.IndexPrefix == "" {
		cfg.IndexPrefix = "logstash-"
	}
	if cfg.IndexFormat == "" {
		cfg.IndexFormat = "2006.01.02"
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{cfg.URL}})
	if err != nil {
		return nil, fmt.Errorf("search: new client: %w", err)
	}

	return &Client{es: es, cfg: cfg, log: log, nowFn: time.Now}, nil
}

// Search executes query against the log-index backend.
//
// recent restricts the search to the index(es) covering "now" and "one
// hour ago"; an index that doesn't exist yet is silently omitted (backed
// by esapi's IgnoreUnavailable), and if none exist the search returns an
// empty ResultSet. days restricts to the last N daily indexes. Otherwise
// the request names no index, so the search runs across every index on
// the backend.
func (c *Client) Search(ctx context.Context, q Query, size int, recent bool, days *int) (*ResultSet, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var indices []string
	switch {
	case recent:
		indices = c.recentIndices()
	case days != nil:
		indices = c.dailyIndices(*days)
	}

	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("search: encode query: %w", err)
	}

	req := esapi.SearchRequest{
		Body:              bytes.NewReader(body),
		Size:              &size,
		IgnoreUnavailable: boolPtr(true),
	}
	if len(indices) > 0 {
		req.Index = indices
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return nil, &TransientBackendError{Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		// A 404 with every requested index missing (recent search at
		// startup, before logstash has rolled today's index) is an
		// empty result, not a backend failure.
		if res.StatusCode == 404 && (recent || days != nil) {
			return &ResultSet{}, nil
		}
		return nil, &TransientBackendError{Err: fmt.Errorf("status %s", res.Status())}
	}

	var raw rawResponse
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return nil, &BackendProtocolError{Err: err}
	}

	rs := raw.toResultSet()
	c.log.Debug("search completed", "indices", indices, "hits", len(rs.Hits), "took", rs.Took)
	return rs, nil
}

// recentIndices returns today's index and, if the wall clock is within an
// hour of UTC midnight, yesterday's as well, so a query near midnight
// still covers entries logged just before the rollover.
func (c *Client) recentIndices() []string {
	now := c.nowFn().UTC()
	lastHour := now.Add(-1 * time.Hour)
	today := c.indexName(now)
	yesterday := c.indexName(lastHour)
	if yesterday != today {
		return []string{today, yesterday}
	}
	return []string{today}
}

// dailyIndices returns the last n daily index names, most recent first.
func (c *Client) dailyIndices(n int) []string {
	now := c.nowFn().UTC()
	indices := make([]string, 0, n)
	for i := 0; i < n; i++ {
		indices = append(indices, c.indexName(now.AddDate(0, 0, -i)))
	}
	return indices
}

func (c *Client) indexName(t time.Time) string {
	return c.cfg.IndexPrefix + t.Format(c.cfg.IndexFormat)
}

func boolPtr(b bool) *bool { return &b }

// rawResponse mirrors the backend's JSON response shape:
// {took, timed_out, hits:{total, hits:[{_index, _source}]}, facets?}.
type rawResponse struct {
	Took     int  `json:"took"`
	TimedOut bool `json:"timed_out"`
	Hits     struct {
		Hits []struct {
			Index  string         `json:"_index"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Facets map[string]struct {
		Terms []struct {
			Term  json.RawMessage `json:"term"`
			Count int             `json:"count"`
		} `json:"terms"`
	} `json:"facets"`
}

func (r rawResponse) toResultSet() *ResultSet {
	rs := &ResultSet{
		Took:     time.Duration(r.Took) * time.Millisecond,
		TimedOut: r.TimedOut,
	}
	for _, h := range r.Hits.Hits {
		rs.Hits = append(rs.Hits, Hit{Index: h.Index, Source: h.Source})
	}
	if tag, ok := r.Facets["tag"]; ok {
		for _, t := range tag.Terms {
			rs.Terms = append(rs.Terms, Term{Term: rawTermString(t.Term), Count: t.Count})
		}
	}
	return rs
}

// rawTermString unwraps a facet term value that the backend may render as
// either a JSON string or a bare number.
func rawTermString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// TransientBackendError reports a backend transport failure. The
// Readiness Gate treats it the same as "not yet ready"; other callers log
// a warning and skip.
type TransientBackendError struct{ Err error }

func (e *TransientBackendError) Error() string { return fmt.Sprintf("search: transient: %v", e.Err) }
func (e *TransientBackendError) Unwrap() error { return e.Err }

// BackendProtocolError reports a malformed backend response, handled
// identically to TransientBackendError by callers.
type BackendProtocolError struct{ Err error }

func (e *BackendProtocolError) Error() string { return fmt.Sprintf("search: malformed response: %v", e.Err) }
func (e *BackendProtocolError) Unwrap() error  { return e.Err }
