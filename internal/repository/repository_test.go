package repository

import (
	"context"
	"testing"
	"time"

	"storelens/internal/database"
	"storelens/internal/logger"
	"storelens/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.New("sqlite://file:"+t.Name()+"?mode=memory&cache=shared", logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db.DB)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestUpsertProduct_IsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &models.Product{
		TenantID:   "tenant-1",
		ExternalID: "100",
		Title:      "Shirt",
		Price:      money("10.00"),
		Variants: []models.ProductVariant{
			{ExternalID: "1", Title: "S", Price: money("10.00")},
			{ExternalID: "2", Title: "M", Price: money("12.50")},
		},
	}

	id1, err := s.UpsertProduct(ctx, p)
	require.NoError(t, err)
	require.NotEmpty(t, id1)

	p.Title = "Shirt v2"
	p.Variants[1].Price = money("13.00")
	id2, err := s.UpsertProduct(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, id1, id2, "upsert must keep the original row")

	n, err := s.Count(ctx, "tenant-1", models.EntityProducts)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	var stored models.Product
	require.NoError(t, s.db.Preload("Variants").First(&stored, "id = ?", id1).Error)
	assert.Equal(t, "Shirt v2", stored.Title)
	require.Len(t, stored.Variants, 2)

	var medium models.ProductVariant
	require.NoError(t, s.db.First(&medium, "product_id = ? AND external_id = ?", id1, "2").Error)
	assert.True(t, medium.Price.Equal(money("13")), "got %s", medium.Price)
}

func TestUpsertProduct_TenantsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.UpsertProduct(ctx, &models.Product{TenantID: "a", ExternalID: "1", Title: "A"})
	require.NoError(t, err)
	b, err := s.UpsertProduct(ctx, &models.Product{TenantID: "b", ExternalID: "1", Title: "B"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	ids, err := s.FindProductIDs(ctx, "a", []string{"1", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"1": a}, ids)
}

func TestUpsertCustomerAndFind(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := &models.Customer{TenantID: "t", ExternalID: "55", Email: "a@b.c", TotalSpent: money("99.95")}
	id, err := s.UpsertCustomer(ctx, c)
	require.NoError(t, err)
	assert.Empty(t, c.ID, "caller's struct is not mutated")

	found, err := s.FindCustomerID(ctx, "t", "55")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, id, *found)

	missing, err := s.FindCustomerID(ctx, "t", "56")
	require.NoError(t, err)
	assert.Nil(t, missing)

	missingProduct, err := s.FindProductID(ctx, "t", "55")
	require.NoError(t, err)
	assert.Nil(t, missingProduct)
}

func lineItemIDs(t *testing.T, s *Store, orderID string) []string {
	t.Helper()
	var items []models.LineItem
	require.NoError(t, s.db.Where("order_id = ?", orderID).Order("external_id").Find(&items).Error)
	out := make([]string, len(items))
	for i, li := range items {
		out[i] = li.ExternalID
	}
	return out
}

func TestUpsertOrder_ReplacesLineItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	order := &models.Order{TenantID: "t", ExternalID: "9001", Name: "#1001", TotalPrice: money("30.00")}

	id, err := s.UpsertOrder(ctx, order, []models.LineItem{
		{ExternalID: "A", Quantity: 1, Price: money("10.00")},
		{ExternalID: "B", Quantity: 2, Price: money("10.00")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, lineItemIDs(t, s, id))

	id2, err := s.UpsertOrder(ctx, order, []models.LineItem{
		{ExternalID: "A", Quantity: 1, Price: money("10.00")},
		{ExternalID: "C", Quantity: 1, Price: money("20.00")},
	})
	require.NoError(t, err)
	assert.Equal(t, id, id2)
	assert.Equal(t, []string{"A", "C"}, lineItemIDs(t, s, id))

	require.NoError(t, s.ReplaceLineItems(ctx, id, nil))
	assert.Empty(t, lineItemIDs(t, s, id))
}

func TestUpsertOrder_NullableReferences(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.UpsertOrder(ctx, &models.Order{TenantID: "t", ExternalID: "1"}, []models.LineItem{
		{ExternalID: "X", Title: "Custom item"},
	})
	require.NoError(t, err)

	var item models.LineItem
	require.NoError(t, s.db.First(&item, "order_id = ?", id).Error)
	assert.Nil(t, item.ProductID)
	assert.Nil(t, item.CustomerID)
}

func TestCount_UnknownKind(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Count(context.Background(), "t", models.EntityKind("refunds"))
	assert.Error(t, err)
}

func TestConnectionLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetConnection(ctx, "t")
	assert.ErrorIs(t, err, ErrConnectionNotFound)
	assert.ErrorIs(t, s.MarkSyncStarted(ctx, "t", time.Now()), ErrConnectionNotFound)

	require.NoError(t, s.SaveConnection(ctx, &models.Connection{
		TenantID: "t", ShopDomain: "a.myshopify.com", AccessToken: "enc-1", Scope: "read_products",
	}))

	conn, err := s.GetConnection(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, models.ConnectionStatusPending, conn.SyncStatus)

	started := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.MarkSyncStarted(ctx, "t", started))
	conn, _ = s.GetConnection(ctx, "t")
	assert.Equal(t, models.ConnectionStatusSyncing, conn.SyncStatus)
	require.NotNil(t, conn.SyncStartedAt)

	require.NoError(t, s.MarkSyncCompleted(ctx, "t", started.Add(time.Minute), SyncCounts{Products: 3, Customers: 2, Orders: 1}))
	conn, _ = s.GetConnection(ctx, "t")
	assert.Equal(t, models.ConnectionStatusCompleted, conn.SyncStatus)
	assert.EqualValues(t, 3, conn.ProductCount)
	assert.EqualValues(t, 2, conn.CustomerCount)
	assert.EqualValues(t, 1, conn.OrderCount)
	require.NotNil(t, conn.LastSyncedAt)

	// Re-install replaces the credential but keeps sync state.
	require.NoError(t, s.SaveConnection(ctx, &models.Connection{
		TenantID: "t", ShopDomain: "a.myshopify.com", AccessToken: "enc-2", Scope: "read_products,read_orders",
	}))
	conn, _ = s.GetConnection(ctx, "t")
	assert.Equal(t, "enc-2", conn.AccessToken)
	assert.Equal(t, "read_products,read_orders", conn.Scope)
	assert.Equal(t, models.ConnectionStatusCompleted, conn.SyncStatus)

	require.NoError(t, s.UpdateConnectionStatus(ctx, "t", models.ConnectionStatusFailed))
	conn, _ = s.GetConnection(ctx, "t")
	assert.Equal(t, models.ConnectionStatusFailed, conn.SyncStatus)

	require.NoError(t, s.DeleteConnection(ctx, "t"))
	assert.ErrorIs(t, s.DeleteConnection(ctx, "t"), ErrConnectionNotFound)
}

func TestOAuthStateConsumedOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.CreateOAuthState(ctx, &models.OAuthState{
		Nonce: "n1", TenantID: "t", ShopDomain: "a.myshopify.com", ExpiresAt: now.Add(10 * time.Minute),
	}))
	require.NoError(t, s.CreateOAuthState(ctx, &models.OAuthState{
		Nonce: "old", TenantID: "t", ShopDomain: "a.myshopify.com", ExpiresAt: now.Add(-time.Minute),
	}))

	state, err := s.ConsumeOAuthState(ctx, "n1", now)
	require.NoError(t, err)
	assert.Equal(t, "t", state.TenantID)
	assert.Equal(t, "a.myshopify.com", state.ShopDomain)

	_, err = s.ConsumeOAuthState(ctx, "n1", now)
	assert.ErrorIs(t, err, ErrStateNotFound)

	_, err = s.ConsumeOAuthState(ctx, "old", now)
	assert.ErrorIs(t, err, ErrStateNotFound)

	_, err = s.ConsumeOAuthState(ctx, "never-issued", now)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestPurgeExpiredOAuthStates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.CreateOAuthState(ctx, &models.OAuthState{Nonce: "a", TenantID: "t", ShopDomain: "x.myshopify.com", ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, s.CreateOAuthState(ctx, &models.OAuthState{Nonce: "b", TenantID: "t", ShopDomain: "x.myshopify.com", ExpiresAt: now.Add(time.Hour)}))

	n, err := s.PurgeExpiredOAuthStates(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSyncRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	run, err := s.CreateSyncRun(ctx, "t", models.EntityProducts)
	require.NoError(t, err)
	assert.Equal(t, models.SyncRunPending, run.Status)

	require.NoError(t, s.StartSyncRun(ctx, run.ID, 500, now))
	require.NoError(t, s.UpdateSyncProgress(ctx, run.ID, 250))

	got, err := s.GetSyncRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SyncRunInProgress, got.Status)
	require.NotNil(t, got.TotalCount)
	assert.EqualValues(t, 500, *got.TotalCount)
	assert.EqualValues(t, 250, got.SyncedCount)

	require.NoError(t, s.FinishSyncRun(ctx, run.ID, models.SyncRunFailed, "boom", now))
	got, _ = s.GetSyncRun(ctx, run.ID)
	assert.Equal(t, models.SyncRunFailed, got.Status)
	assert.Equal(t, "boom", got.ErrorMessage)
	assert.EqualValues(t, 250, got.SyncedCount, "committed progress is kept on failure")

	assert.Error(t, s.FinishSyncRun(ctx, run.ID, models.SyncRunInProgress, "", now))
	assert.ErrorIs(t, s.UpdateSyncProgress(ctx, "missing", 1), ErrSyncRunNotFound)
}

func TestLatestSyncRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateSyncRun(ctx, "t", models.EntityProducts)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := s.CreateSyncRun(ctx, "t", models.EntityProducts)
	require.NoError(t, err)
	customers, err := s.CreateSyncRun(ctx, "t", models.EntityCustomers)
	require.NoError(t, err)
	_, err = s.CreateSyncRun(ctx, "other", models.EntityOrders)
	require.NoError(t, err)

	latest, err := s.LatestSyncRuns(ctx, "t")
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, second.ID, latest[models.EntityProducts].ID)
	assert.NotEqual(t, first.ID, latest[models.EntityProducts].ID)
	assert.Equal(t, customers.ID, latest[models.EntityCustomers].ID)
	assert.Nil(t, latest[models.EntityOrders])
}
