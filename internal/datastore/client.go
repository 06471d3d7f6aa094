package datastore

import (
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/go-resty/resty/v2"
)

// DatasetteClient pushes rows to a remote Datasette through its insert API.
type DatasetteClient struct {
	baseURL  string
	apiToken string
	client   *resty.Client
}

// NewDatasetteClient creates a client for the Datasette at baseURL.
func NewDatasetteClient(baseURL, apiToken string) *DatasetteClient {
	return &DatasetteClient{
		baseURL:  baseURL,
		apiToken: apiToken,
		client:   resty.New().SetTimeout(30 * time.Second),
	}
}

// Connect validates the base URL.
func (c *DatasetteClient) Connect() error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base URL %q: scheme and host required", c.baseURL)
	}
	return nil
}

// CreateTable is a no-op; the insert API creates tables.
func (c *DatasetteClient) CreateTable(string) error {
	return nil
}

// BatchInsert posts records to /-/insert/<database>/<table>, replacing rows
// with the same primary key.
func (c *DatasetteClient) BatchInsert(database string, table string, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = path.Join(u.Path, "-/insert", database, table)

	req := c.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{"rows": records, "replace": true}).
		SetError(map[string]any{})
	if c.apiToken != "" {
		req.SetAuthToken(c.apiToken)
	}

	resp, err := req.Post(u.String())
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	if resp.IsError() {
		if apiErr, ok := resp.Error().(*map[string]any); ok && len(*apiErr) > 0 {
			return fmt.Errorf("API error (status %d): %v", resp.StatusCode(), *apiErr)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode())
	}
	return nil
}

// Close is a no-op.
func (c *DatasetteClient) Close() error {
	return nil
}
