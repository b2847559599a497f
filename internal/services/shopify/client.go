package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storelens/internal/logger"
	"storelens/internal/metrics"

	"github.com/tomnomnom/linkheader"
)

const (
	DefaultAPIVersion = "2024-01"
	DefaultTimeout    = 30 * time.Second
	DefaultPageSize   = 250

	accessTokenHeader = "X-Shopify-Access-Token"
)

// APIError is returned for any non-2xx response from the Admin API.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify API %s failed with status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

type Client struct {
	shopDomain  string
	accessToken string
	apiVersion  string
	baseURL     string
	pageSize    int
	timeout     time.Duration
	httpClient  *http.Client
	metrics     *metrics.Metrics
	logger      *logger.Logger
}

type ClientOption func(*Client)

// WithBaseURL replaces https://<shop> as the request origin.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithAPIVersion(version string) ClientOption {
	return func(c *Client) {
		if version != "" {
			c.apiVersion = version
		}
	}
}

// WithTimeout bounds every individual request, not the whole sync.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 && n <= DefaultPageSize {
			c.pageSize = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient resolves the credential once; a stored token that cannot be
// decrypted fails here rather than on the first request.
func NewClient(shopDomain string, cred Credential, decrypter Decrypter, opts ...ClientOption) (*Client, error) {
	token, err := cred.Resolve(decrypter)
	if err != nil {
		return nil, err
	}

	c := &Client{
		shopDomain:  shopDomain,
		accessToken: token,
		apiVersion:  DefaultAPIVersion,
		pageSize:    DefaultPageSize,
		timeout:     DefaultTimeout,
		httpClient:  &http.Client{},
		logger:      logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) ShopDomain() string {
	return c.shopDomain
}

func (c *Client) CountProducts(ctx context.Context) (int64, error) {
	return c.count(ctx, "products", nil)
}

func (c *Client) CountCustomers(ctx context.Context) (int64, error) {
	return c.count(ctx, "customers", nil)
}

// CountOrders counts orders of any status created at or after createdAtMin.
func (c *Client) CountOrders(ctx context.Context, createdAtMin time.Time) (int64, error) {
	return c.count(ctx, "orders", orderFilter(createdAtMin))
}

// ListProducts fetches one page. An empty cursor requests the first page.
func (c *Client) ListProducts(ctx context.Context, cursor string) (*ProductPage, error) {
	var resp ProductsResponse
	next, err := c.list(ctx, "products", cursor, nil, &resp)
	if err != nil {
		return nil, err
	}
	return &ProductPage{Products: resp.Products, NextCursor: next}, nil
}

func (c *Client) ListCustomers(ctx context.Context, cursor string) (*CustomerPage, error) {
	var resp CustomersResponse
	next, err := c.list(ctx, "customers", cursor, nil, &resp)
	if err != nil {
		return nil, err
	}
	return &CustomerPage{Customers: resp.Customers, NextCursor: next}, nil
}

// ListOrders pages through orders created at or after createdAtMin. The
// filter only applies to the first page; later pages are fully described by
// the cursor.
func (c *Client) ListOrders(ctx context.Context, createdAtMin time.Time, cursor string) (*OrderPage, error) {
	var resp OrdersResponse
	next, err := c.list(ctx, "orders", cursor, orderFilter(createdAtMin), &resp)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Orders: resp.Orders, NextCursor: next}, nil
}

func orderFilter(createdAtMin time.Time) url.Values {
	q := url.Values{}
	q.Set("status", "any")
	if !createdAtMin.IsZero() {
		q.Set("created_at_min", createdAtMin.UTC().Format(time.RFC3339))
	}
	return q
}

func (c *Client) count(ctx context.Context, resource string, filter url.Values) (int64, error) {
	var resp countResponse
	if _, err := c.get(ctx, resource+"/count", filter, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) list(ctx context.Context, resource, cursor string, filter url.Values, out interface{}) (string, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	if cursor != "" {
		// page_info cannot be combined with any other filter.
		q.Set("page_info", cursor)
	} else {
		for k, v := range filter {
			q[k] = v
		}
	}

	header, err := c.get(ctx, resource, q, out)
	if err != nil {
		return "", err
	}
	return nextCursor(header.Get("Link")), nil
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out interface{}) (http.Header, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpointURL(endpoint, query), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(accessTokenHeader, c.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(endpoint, 0)
		return nil, fmt.Errorf("failed to make request to %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveUpstream(endpoint, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("Shopify %s for %s returned %d", endpoint, c.shopDomain, resp.StatusCode)
		return nil, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}

	return resp.Header, nil
}

func (c *Client) endpointURL(endpoint string, query url.Values) string {
	origin := "https://" + c.shopDomain
	if c.baseURL != "" {
		origin = c.baseURL
	}
	u := fmt.Sprintf("%s/admin/api/%s/%s.json", origin, c.apiVersion, endpoint)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// nextCursor extracts page_info from the rel="next" entry of a Link header.
func nextCursor(header string) string {
	if header == "" {
		return ""
	}
	for _, link := range linkheader.Parse(header).FilterByRel("next") {
		u, err := url.Parse(link.URL)
		if err != nil {
			continue
		}
		if info := u.Query().Get("page_info"); info != "" {
			return info
		}
	}
	return ""
}
