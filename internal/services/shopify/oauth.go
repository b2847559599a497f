package shopify

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"storelens/internal/logger"
)

var (
	ErrInvalidShopDomain = errors.New("invalid shop domain")
	ErrInvalidHMAC       = errors.New("invalid hmac signature")
)

// ExchangeError is returned when the token endpoint answers with a non-2xx
// status. Body carries the raw upstream response.
type ExchangeError struct {
	StatusCode int
	Body       string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.StatusCode, e.Body)
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	Scope       string `json:"scope"`
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	RedirectURI  string
}

type OAuthService struct {
	config     OAuthConfig
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

type OAuthOption func(*OAuthService)

// WithOAuthBaseURL sends token exchanges to a fixed origin instead of the
// shop host. Used to point at fake servers.
func WithOAuthBaseURL(baseURL string) OAuthOption {
	return func(s *OAuthService) { s.baseURL = strings.TrimRight(baseURL, "/") }
}

func WithOAuthHTTPClient(c *http.Client) OAuthOption {
	return func(s *OAuthService) { s.httpClient = c }
}

func NewOAuthService(cfg OAuthConfig, log *logger.Logger, opts ...OAuthOption) *OAuthService {
	s := &OAuthService{
		config:     cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     log,
	}
	if s.logger == nil {
		s.logger = logger.NewNop()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GenerateNonce returns 256 bits of randomness, hex encoded.
func GenerateNonce() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// BuildAuthURL returns the consent URL for an already normalized shop host.
func (s *OAuthService) BuildAuthURL(shopDomain, nonce string) (string, error) {
	if !ValidateShopDomain(shopDomain) {
		return "", fmt.Errorf("%w: %q", ErrInvalidShopDomain, shopDomain)
	}

	q := url.Values{}
	q.Set("client_id", s.config.ClientID)
	q.Set("scope", strings.Join(s.config.Scopes, ","))
	q.Set("redirect_uri", s.config.RedirectURI)
	q.Set("state", nonce)

	u := url.URL{
		Scheme:   "https",
		Host:     shopDomain,
		Path:     "/admin/oauth/authorize",
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

// ValidateHMAC checks the signature Shopify attaches to the redirect. The
// message is every other parameter sorted by key and joined as k=v pairs with
// "&". Comparison is constant time; a missing or non-hex signature fails.
func (s *OAuthService) ValidateHMAC(params url.Values) bool {
	return ValidateHMAC(params, s.config.ClientSecret)
}

func ValidateHMAC(params url.Values, secret string) bool {
	provided := params.Get("hmac")
	if provided == "" || secret == "" {
		return false
	}
	want, err := hex.DecodeString(provided)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(hmacMessage(params)))
	return hmac.Equal(want, mac.Sum(nil))
}

// VerifyCallback gates the OAuth redirect: the signature first, then the shop
// host. It returns the verified shop.
func (s *OAuthService) VerifyCallback(params url.Values) (string, error) {
	if !s.ValidateHMAC(params) {
		return "", ErrInvalidHMAC
	}
	shop := params.Get("shop")
	if !ValidateShopDomain(shop) {
		return "", fmt.Errorf("%w: %q", ErrInvalidShopDomain, shop)
	}
	return shop, nil
}

// SignParams produces the hex signature ValidateHMAC expects.
func SignParams(params url.Values, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(hmacMessage(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

func hmacMessage(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "hmac" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+strings.Join(params[k], ","))
	}
	return strings.Join(pairs, "&")
}

// ExchangeCodeForToken trades an authorization code for a permanent access
// token. It makes exactly one request and never retries.
func (s *OAuthService) ExchangeCodeForToken(ctx context.Context, shopDomain, code string) (*TokenResponse, error) {
	if !ValidateShopDomain(shopDomain) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidShopDomain, shopDomain)
	}

	tokenURL := "https://" + shopDomain + "/admin/oauth/access_token"
	if s.baseURL != "" {
		tokenURL = s.baseURL + "/admin/oauth/access_token"
	}

	data := url.Values{}
	data.Set("client_id", s.config.ClientID)
	data.Set("client_secret", s.config.ClientSecret)
	data.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn("Token exchange for %s failed with status %d", shopDomain, resp.StatusCode)
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token: %s", string(body))
	}

	return &tokenResp, nil
}
