package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"storelens/internal/api/middleware"
	"storelens/internal/logger"
	"storelens/internal/models"
	"storelens/internal/repository"
	"storelens/internal/services/shopify"
	"storelens/internal/worker"

	"github.com/gin-gonic/gin"
)

// Encrypter seals access tokens before they are persisted.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// InstallStore is the persistence the install flow needs.
type InstallStore interface {
	CreateOAuthState(ctx context.Context, state *models.OAuthState) error
	ConsumeOAuthState(ctx context.Context, nonce string, now time.Time) (*models.OAuthState, error)
	SaveConnection(ctx context.Context, conn *models.Connection) error
}

type ShopifyHandler struct {
	oauth       *shopify.OAuthService
	store       InstallStore
	cipher      Encrypter
	dispatcher  worker.Dispatcher
	logger      *logger.Logger
	frontendURL string
	stateTTL    time.Duration
	now         func() time.Time
}

func NewShopifyHandler(
	oauth *shopify.OAuthService,
	store InstallStore,
	cipher Encrypter,
	dispatcher worker.Dispatcher,
	logger *logger.Logger,
	frontendURL string,
	stateTTL time.Duration,
) *ShopifyHandler {
	return &ShopifyHandler{
		oauth:       oauth,
		store:       store,
		cipher:      cipher,
		dispatcher:  dispatcher,
		logger:      logger,
		frontendURL: frontendURL,
		stateTTL:    stateTTL,
		now:         time.Now,
	}
}

// Install starts the OAuth flow for the calling tenant and returns the
// consent URL the browser should be sent to.
func (h *ShopifyHandler) Install(c *gin.Context) {
	var request struct {
		Shop string `json:"shop" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	shop, ok := shopify.NormalizeShopDomain(request.Shop)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid shop domain"})
		return
	}

	nonce, err := shopify.GenerateNonce()
	if err != nil {
		h.logger.Error("Failed to generate nonce: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start installation"})
		return
	}

	state := &models.OAuthState{
		Nonce:      nonce,
		TenantID:   middleware.TenantID(c),
		ShopDomain: shop,
		ExpiresAt:  h.now().Add(h.stateTTL),
	}
	if err := h.store.CreateOAuthState(c.Request.Context(), state); err != nil {
		h.logger.Error("Failed to persist oauth state: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start installation"})
		return
	}

	authURL, err := h.oauth.BuildAuthURL(shop, nonce)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auth_url": authURL,
		"shop":     shop,
	})
}

// Callback completes the OAuth flow. It is the one public route: the tenant
// comes from the consumed state, never from the request.
func (h *ShopifyHandler) Callback(c *gin.Context) {
	params := c.Request.URL.Query()

	shop, err := h.oauth.VerifyCallback(params)
	if errors.Is(err, shopify.ErrInvalidHMAC) {
		h.logger.Warn("Rejected callback with invalid signature for shop %q", params.Get("shop"))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid shop domain"})
		return
	}

	code, nonce := params.Get("code"), params.Get("state")
	if code == "" || nonce == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters"})
		return
	}

	ctx := c.Request.Context()
	state, err := h.store.ConsumeOAuthState(ctx, nonce, h.now())
	if errors.Is(err, repository.ErrStateNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown or expired state"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to consume oauth state: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to complete installation"})
		return
	}
	if state.ShopDomain != shop {
		h.logger.Warn("Callback shop %s does not match state shop %s", shop, state.ShopDomain)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Shop does not match installation"})
		return
	}

	token, err := h.oauth.ExchangeCodeForToken(ctx, shop, code)
	if err != nil {
		var exchangeErr *shopify.ExchangeError
		if errors.As(err, &exchangeErr) {
			h.logger.Error("Token exchange for %s rejected with status %d", shop, exchangeErr.StatusCode)
		} else {
			h.logger.Error("Token exchange for %s failed: %v", shop, err)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to exchange authorization code"})
		return
	}

	sealed, err := h.cipher.Encrypt(token.AccessToken)
	if err != nil {
		h.logger.Error("Failed to encrypt access token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to complete installation"})
		return
	}

	conn := &models.Connection{
		TenantID:    state.TenantID,
		ShopDomain:  shop,
		AccessToken: sealed,
		Scope:       token.Scope,
		SyncStatus:  models.ConnectionStatusPending,
	}
	if err := h.store.SaveConnection(ctx, conn); err != nil {
		h.logger.Error("Failed to save connection: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to complete installation"})
		return
	}

	h.logger.Info("Connected %s for tenant %s", shop, state.TenantID)

	if err := h.dispatcher.DispatchSync(ctx, state.TenantID, "install"); err != nil {
		h.logger.Error("Failed to dispatch initial sync for tenant %s: %v", state.TenantID, err)
	}

	c.Redirect(http.StatusFound, h.redirectURL(shop))
}

func (h *ShopifyHandler) redirectURL(shop string) string {
	u, err := url.Parse(h.frontendURL)
	if err != nil {
		return h.frontendURL
	}
	q := u.Query()
	q.Set("shop", shop)
	q.Set("connected", "true")
	u.RawQuery = q.Encode()
	return u.String()
}
