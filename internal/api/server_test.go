package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storelens/internal/config"
	"storelens/internal/database"
	"storelens/internal/logger"
	"storelens/internal/metrics"
	"storelens/internal/models"
	"storelens/internal/repository"
	"storelens/internal/security"
	"storelens/internal/services/shopify"
	"storelens/internal/services/syncer"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "shpss_secret"
	testShop   = "my-store.myshopify.com"
	testTenant = "tenant-1"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	tenants []string
}

func (d *recordingDispatcher) DispatchSync(_ context.Context, tenantID, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tenants = append(d.tenants, tenantID)
	return nil
}

func (d *recordingDispatcher) dispatched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.tenants...)
}

type testEnv struct {
	router     *gin.Engine
	store      *repository.Store
	cipher     *security.Cipher
	dispatcher *recordingDispatcher
	exchanges  *int32
	exchange   func(w http.ResponseWriter, r *http.Request)
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.New("sqlite://file:"+name+"?mode=memory&cache=shared", logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cipher, err := security.NewCipher("test-key")
	require.NoError(t, err)

	env := &testEnv{
		store:      repository.New(db.DB),
		cipher:     cipher,
		dispatcher: &recordingDispatcher{},
		exchanges:  new(int32),
	}
	env.exchange = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"shpat_live","scope":"read_products"}`))
	}

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(env.exchanges, 1)
		env.exchange(w, r)
	}))
	t.Cleanup(tokenSrv.Close)

	cfg := &config.Config{
		FrontendURL:   "http://app.example/settings",
		OAuthStateTTL: 10 * time.Minute,
	}
	oauth := shopify.NewOAuthService(shopify.OAuthConfig{
		ClientID:     "client-id",
		ClientSecret: testSecret,
		Scopes:       []string{"read_products"},
		RedirectURI:  "http://api.example/api/v1/shopify/callback",
	}, logger.NewNop(), shopify.WithOAuthBaseURL(tokenSrv.URL))

	synchronizer := syncer.New(env.store, syncer.NewShopifyClientFactory(cipher))
	server := New(cfg, logger.NewNop(), Deps{
		Store:        env.store,
		OAuth:        oauth,
		Cipher:       cipher,
		Synchronizer: synchronizer,
		Reporter:     syncer.NewReporter(env.store),
		Dispatcher:   env.dispatcher,
		Metrics:      metrics.New(),
	})
	env.router = server.Router()
	return env
}

func (e *testEnv) do(method, target, body string, tenant bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if tenant {
		req.Header.Set("X-Tenant-ID", testTenant)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) install(t *testing.T) string {
	t.Helper()
	w := e.do(http.MethodPost, "/api/v1/shopify/install", `{"shop":"https://My-Store.myshopify.com/admin"}`, true)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		AuthURL string `json:"auth_url"`
		Shop    string `json:"shop"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, testShop, resp.Shop)

	u, err := url.Parse(resp.AuthURL)
	require.NoError(t, err)
	assert.Equal(t, testShop, u.Host)
	nonce := u.Query().Get("state")
	require.Len(t, nonce, 64)
	return nonce
}

func signedCallback(nonce, shop string) string {
	params := url.Values{}
	params.Set("code", "auth-code")
	params.Set("shop", shop)
	params.Set("state", nonce)
	params.Set("timestamp", "1717243200")
	params.Set("hmac", shopify.SignParams(params, testSecret))
	return "/api/v1/shopify/callback?" + params.Encode()
}

func TestInstallAndCallback(t *testing.T) {
	env := newTestEnv(t)
	nonce := env.install(t)

	w := env.do(http.MethodGet, signedCallback(nonce, testShop), "", false)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "http://app.example/settings?connected=true&shop=my-store.myshopify.com", w.Header().Get("Location"))

	conn, err := env.store.GetConnection(context.Background(), testTenant)
	require.NoError(t, err)
	assert.Equal(t, testShop, conn.ShopDomain)
	assert.NotEqual(t, "shpat_live", conn.AccessToken, "token is stored encrypted")
	plain, err := env.cipher.Decrypt(conn.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "shpat_live", plain)
	assert.Equal(t, []string{testTenant}, env.dispatcher.dispatched())

	// The state is single use.
	w = env.do(http.MethodGet, signedCallback(nonce, testShop), "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.EqualValues(t, 1, atomic.LoadInt32(env.exchanges))
}

func TestCallback_ForgedSignatureChangesNothing(t *testing.T) {
	env := newTestEnv(t)
	nonce := env.install(t)

	target := strings.Replace(signedCallback(nonce, testShop), "code=auth-code", "code=evil", 1)
	w := env.do(http.MethodGet, target, "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.EqualValues(t, 0, atomic.LoadInt32(env.exchanges))

	_, err := env.store.GetConnection(context.Background(), testTenant)
	assert.ErrorIs(t, err, repository.ErrConnectionNotFound)

	// The state was not consumed by the forged request.
	w = env.do(http.MethodGet, signedCallback(nonce, testShop), "", false)
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestCallback_RejectsForeignShop(t *testing.T) {
	env := newTestEnv(t)
	nonce := env.install(t)

	w := env.do(http.MethodGet, signedCallback(nonce, "evil.example.com"), "", false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodGet, signedCallback(nonce, "other-store.myshopify.com"), "", false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.EqualValues(t, 0, atomic.LoadInt32(env.exchanges))
}

func TestCallback_ExchangeFailureIsBadGateway(t *testing.T) {
	env := newTestEnv(t)
	env.exchange = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
	}
	nonce := env.install(t)

	w := env.do(http.MethodGet, signedCallback(nonce, testShop), "", false)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.EqualValues(t, 1, atomic.LoadInt32(env.exchanges))
	assert.Empty(t, env.dispatcher.dispatched())
}

func TestInstall_Validation(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/shopify/install", `{"shop":"my-store.myshopify.com"}`, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "tenant header required")

	w = env.do(http.MethodPost, "/api/v1/shopify/install", `{"shop":"-bad-"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/v1/shopify/install", `{}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSyncEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	w := env.do(http.MethodPost, "/api/v1/sync", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, env.store.SaveConnection(ctx, &models.Connection{
		TenantID: testTenant, ShopDomain: testShop, AccessToken: "sealed",
	}))

	w = env.do(http.MethodPost, "/api/v1/sync", "", true)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{testTenant}, env.dispatcher.dispatched())

	require.NoError(t, env.store.MarkSyncStarted(ctx, testTenant, time.Now()))
	w = env.do(http.MethodPost, "/api/v1/sync", "", true)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Len(t, env.dispatcher.dispatched(), 1)

	w = env.do(http.MethodGet, "/api/v1/sync/status", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data syncer.SyncStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ConnectionStatusSyncing, resp.Data.Status)
	require.Len(t, resp.Data.Runs, 3)
	assert.Equal(t, syncer.RunStateWaiting, resp.Data.Runs[0].State)
}

func TestConnectionEndpoints(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/connection", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, env.store.SaveConnection(context.Background(), &models.Connection{
		TenantID: testTenant, ShopDomain: testShop, AccessToken: "sealed",
	}))

	w = env.do(http.MethodGet, "/api/v1/connection", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), testShop)
	assert.NotContains(t, w.Body.String(), "sealed", "credential never leaves the server")

	w = env.do(http.MethodDelete, "/api/v1/connection", "", true)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(http.MethodDelete, "/api/v1/connection", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/metrics", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
}
