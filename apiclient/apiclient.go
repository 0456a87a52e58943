package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/carlmjohnson/requests"

	"github.com/kjk/diary/api"
	"github.com/kjk/diary/diary"
)

// Client talks to a diary http server started with "diary serve"
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	// per request, 0 means no timeout
	Timeout time.Duration
}

// New returns a client for server at baseURL e.g. "http://127.0.0.1:8427"
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

func (c *Client) req(path string) *requests.Builder {
	rb := requests.URL(c.BaseURL).Path(path)
	if c.HTTPClient != nil {
		rb = rb.Client(c.HTTPClient)
	}
	return rb
}

func (c *Client) fetch(ctx context.Context, rb *requests.Builder) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	return rb.Fetch(ctx)
}

func entryPath(date string) string {
	return "/api/entries/" + url.PathEscape(date)
}

// ListAll returns all entries
func (c *Client) ListAll(ctx context.Context) (diary.Collection, error) {
	var entries []*diary.Entry
	err := c.fetch(ctx, c.req("/api/entries").ToJSON(&entries))
	if err != nil {
		return nil, err
	}
	res := diary.Collection{}
	for _, e := range entries {
		res[e.Date] = e
	}
	return res, nil
}

// GetOne returns entry for date, nil if there's none
func (c *Client) GetOne(ctx context.Context, date string) (*diary.Entry, error) {
	var e diary.Entry
	err := c.fetch(ctx, c.req(entryPath(date)).ToJSON(&e))
	if requests.HasStatusErr(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Upsert saves e on the server. Like diary.Store.Upsert, failures are
// reported in Result, including failure to talk to the server.
func (c *Client) Upsert(ctx context.Context, e *diary.Entry) diary.Result {
	body := api.EntryBody{
		Title:   e.Title,
		Content: e.Content,
	}
	var res diary.Result
	rb := c.req(entryPath(e.Date)).
		Method(http.MethodPut).
		BodyJSON(&body).
		CheckStatus(http.StatusOK, http.StatusBadRequest, http.StatusInternalServerError).
		ToJSON(&res)
	err := c.fetch(ctx, rb)
	if err != nil {
		return diary.Result{Error: err.Error(), Err: err}
	}
	return res
}

// Backups returns backups on the server, most recent first
func (c *Client) Backups(ctx context.Context) ([]diary.Backup, error) {
	var res []diary.Backup
	err := c.fetch(ctx, c.req("/api/backups").ToJSON(&res))
	return res, err
}
