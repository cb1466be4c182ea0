package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jomei/notionapi"

	"github.com/zombor/receipt-pipeline/internal/scanning"
)

const (
	// DefaultBaseURL is the public Notion API endpoint
	DefaultBaseURL = "https://api.notion.com"

	// APIVersion is the Notion-Version header sent with every request
	APIVersion = "2022-06-28"
)

// ErrMissingCredentials is returned when the API key or database id is empty
var ErrMissingCredentials = errors.New("notion api key and database id are required")

// Credentials identify the integration and the target database
type Credentials struct {
	APIKey     string
	DatabaseID string
}

// Validate checks that both values are present
func (c Credentials) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" || strings.TrimSpace(c.DatabaseID) == "" {
		return ErrMissingCredentials
	}
	return nil
}

// baseURLTransport sends requests to a different Notion host, e.g. a local fake
type baseURLTransport struct {
	base *url.URL
	next http.RoundTripper
}

func (t *baseURLTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = t.base.Scheme
	r.URL.Host = t.base.Host
	r.URL.Path = strings.TrimSuffix(t.base.Path, "/") + req.URL.Path
	r.Host = t.base.Host
	return t.next.RoundTrip(r)
}

// Client creates pages in a Notion database
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new Client; an empty baseURL means DefaultBaseURL
func NewClient(baseURL string) *Client {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
	}

	baseURL = strings.TrimSuffix(baseURL, "/")
	if baseURL != "" && baseURL != DefaultBaseURL {
		if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
			httpClient.Transport = &baseURLTransport{base: u, next: http.DefaultTransport}
		}
	}
	return &Client{httpClient: httpClient}
}

// api builds a notionapi client for one integration token. Retries are off: a failed
// save fails the item.
func (c *Client) api(token string) *notionapi.Client {
	return notionapi.NewClient(notionapi.Token(token),
		notionapi.WithHTTPClient(c.httpClient),
		notionapi.WithVersion(APIVersion),
		notionapi.WithRetry(0),
	)
}

// Save creates one new page for the receipt and returns its id.
// Saving the same receipt twice creates two pages.
func (c *Client) Save(ctx context.Context, record *scanning.ReceiptData, creds Credentials) (string, error) {
	if err := creds.Validate(); err != nil {
		return "", &PersistenceError{Message: err.Error(), Err: err}
	}
	if record == nil {
		return "", &PersistenceError{Message: "no receipt data to save"}
	}

	page, err := c.api(strings.TrimSpace(creds.APIKey)).Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(strings.TrimSpace(creds.DatabaseID)),
		},
		Properties: buildProperties(record),
	})
	if err != nil {
		return "", newPersistenceError(err)
	}
	if page == nil || page.ID == "" {
		return "", &PersistenceError{Message: "response did not include a page id"}
	}
	return string(page.ID), nil
}

// newPersistenceError maps a notionapi error onto PersistenceError
func newPersistenceError(err error) *PersistenceError {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return &PersistenceError{
			StatusCode: apiErr.Status,
			Code:       string(apiErr.Code),
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	return &PersistenceError{Err: fmt.Errorf("calling notion API: %w", err)}
}
