// Package syncer imports a tenant's catalog (products, customers, orders)
// from its storefront into local storage and reports progress.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storelens/internal/logger"
	"storelens/internal/metrics"
	"storelens/internal/models"
	"storelens/internal/repository"
	"storelens/internal/services/shopify"
)

// Store is the persistence the synchronizer needs. *repository.Store
// implements it.
type Store interface {
	GetConnection(ctx context.Context, tenantID string) (*models.Connection, error)
	UpdateConnectionStatus(ctx context.Context, tenantID string, status models.ConnectionStatus) error
	MarkSyncStarted(ctx context.Context, tenantID string, at time.Time) error
	MarkSyncCompleted(ctx context.Context, tenantID string, at time.Time, counts repository.SyncCounts) error

	CreateSyncRun(ctx context.Context, tenantID string, kind models.EntityKind) (*models.SyncRun, error)
	StartSyncRun(ctx context.Context, runID string, total int64, at time.Time) error
	UpdateSyncProgress(ctx context.Context, runID string, synced int64) error
	FinishSyncRun(ctx context.Context, runID string, status models.SyncRunStatus, errMsg string, at time.Time) error

	UpsertProduct(ctx context.Context, p *models.Product) (string, error)
	UpsertCustomer(ctx context.Context, c *models.Customer) (string, error)
	UpsertOrder(ctx context.Context, o *models.Order, items []models.LineItem) (string, error)
	FindProductIDs(ctx context.Context, tenantID string, externalIDs []string) (map[string]string, error)
	FindCustomerIDs(ctx context.Context, tenantID string, externalIDs []string) (map[string]string, error)
	Count(ctx context.Context, tenantID string, kind models.EntityKind) (int64, error)
}

// ShopClient is the read side of the storefront API. *shopify.Client
// implements it.
type ShopClient interface {
	CountProducts(ctx context.Context) (int64, error)
	ListProducts(ctx context.Context, cursor string) (*shopify.ProductPage, error)
	CountCustomers(ctx context.Context) (int64, error)
	ListCustomers(ctx context.Context, cursor string) (*shopify.CustomerPage, error)
	CountOrders(ctx context.Context, createdAtMin time.Time) (int64, error)
	ListOrders(ctx context.Context, createdAtMin time.Time, cursor string) (*shopify.OrderPage, error)
}

// ClientFactory builds a client for a persisted connection.
type ClientFactory func(conn *models.Connection) (ShopClient, error)

// NewShopifyClientFactory decrypts the stored credential of each connection.
func NewShopifyClientFactory(decrypter shopify.Decrypter, opts ...shopify.ClientOption) ClientFactory {
	return func(conn *models.Connection) (ShopClient, error) {
		return shopify.NewClient(conn.ShopDomain, shopify.EncryptedCredential(conn.AccessToken), decrypter, opts...)
	}
}

type Synchronizer struct {
	store         Store
	newClient     ClientFactory
	locker        Locker
	transformer   *shopify.Transformer
	metrics       *metrics.Metrics
	logger        *logger.Logger
	now           func() time.Time
	orderLookback time.Duration
	staleAfter    time.Duration
}

type Option func(*Synchronizer)

func WithLocker(l Locker) Option {
	return func(s *Synchronizer) { s.locker = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synchronizer) { s.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(s *Synchronizer) { s.logger = l }
}

// WithOrderLookback bounds the order import to orders created within d.
func WithOrderLookback(d time.Duration) Option {
	return func(s *Synchronizer) { s.orderLookback = d }
}

// WithStaleAfter sets how long a SYNCING connection blocks new syncs when
// no lock holder exists, e.g. after a crash.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Synchronizer) { s.staleAfter = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *Synchronizer) { s.now = now }
}

func New(store Store, newClient ClientFactory, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:         store,
		newClient:     newClient,
		locker:        NewMemoryLocker(),
		transformer:   shopify.NewTransformer(),
		logger:        logger.NewNop(),
		now:           time.Now,
		orderLookback: 90 * 24 * time.Hour,
		staleAfter:    2 * time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InProgress reports whether the tenant's connection is inside a live sync.
// It is a fast check for callers that want to reject before dispatching;
// StartFullSync enforces the same rule under the lock.
func (s *Synchronizer) InProgress(conn *models.Connection) bool {
	if conn.SyncStatus != models.ConnectionStatusSyncing {
		return false
	}
	if conn.SyncStartedAt == nil {
		return true
	}
	return s.now().Sub(*conn.SyncStartedAt) < s.staleAfter
}

// StartFullSync imports products, customers and orders strictly in that
// order. The first failure marks the connection FAILED and stops the chain.
// A second call for a tenant with a sync in flight returns ErrSyncInProgress.
func (s *Synchronizer) StartFullSync(ctx context.Context, tenantID string) error {
	release, err := s.locker.TryAcquire(ctx, tenantID)
	if err != nil {
		return err
	}
	defer release()

	conn, err := s.store.GetConnection(ctx, tenantID)
	if err != nil {
		return err
	}
	if s.InProgress(conn) {
		return ErrSyncInProgress
	}

	log := s.logger.With("tenant_id", tenantID, "shop", conn.ShopDomain)
	// Terminal writes must land even if the caller's context is cancelled.
	finalCtx := context.WithoutCancel(ctx)

	if err := s.store.MarkSyncStarted(ctx, tenantID, s.now()); err != nil {
		return err
	}

	client, err := s.newClient(conn)
	if err != nil {
		log.Error("Failed to build storefront client: %v", err)
		s.markFailed(finalCtx, log, tenantID)
		return err
	}

	runs := make(map[models.EntityKind]*models.SyncRun, len(models.EntityKinds))
	for _, kind := range models.EntityKinds {
		run, err := s.store.CreateSyncRun(ctx, tenantID, kind)
		if err != nil {
			s.markFailed(finalCtx, log, tenantID)
			return err
		}
		runs[kind] = run
	}

	log.Info("Starting full sync")
	for i, kind := range models.EntityKinds {
		if err := s.syncEntity(ctx, client, runs[kind]); err != nil {
			log.Error("Full sync halted at %s: %v", kind, err)
			for _, skipped := range models.EntityKinds[i+1:] {
				s.finishRun(finalCtx, runs[skipped], models.SyncRunFailed, fmt.Sprintf("not started: %s sync failed", kind))
			}
			s.markFailed(finalCtx, log, tenantID)
			return err
		}
	}

	counts, err := s.localCounts(ctx, tenantID)
	if err != nil {
		s.markFailed(finalCtx, log, tenantID)
		return err
	}
	if err := s.store.MarkSyncCompleted(finalCtx, tenantID, s.now(), counts); err != nil {
		return err
	}

	log.Info("Full sync completed: %d products, %d customers, %d orders", counts.Products, counts.Customers, counts.Orders)
	return nil
}

// SyncProducts runs a standalone product import.
func (s *Synchronizer) SyncProducts(ctx context.Context, tenantID string, client ShopClient) error {
	return s.syncStandalone(ctx, tenantID, models.EntityProducts, client)
}

func (s *Synchronizer) SyncCustomers(ctx context.Context, tenantID string, client ShopClient) error {
	return s.syncStandalone(ctx, tenantID, models.EntityCustomers, client)
}

// SyncOrders imports orders created within the lookback window.
func (s *Synchronizer) SyncOrders(ctx context.Context, tenantID string, client ShopClient) error {
	return s.syncStandalone(ctx, tenantID, models.EntityOrders, client)
}

func (s *Synchronizer) syncStandalone(ctx context.Context, tenantID string, kind models.EntityKind, client ShopClient) error {
	run, err := s.store.CreateSyncRun(ctx, tenantID, kind)
	if err != nil {
		return err
	}
	return s.syncEntity(ctx, client, run)
}

// pageFunc fetches the page at cursor, persists every record in it and
// returns how many were written plus the next cursor.
type pageFunc func(ctx context.Context, cursor string) (written int, next string, err error)

func (s *Synchronizer) syncEntity(ctx context.Context, client ShopClient, run *models.SyncRun) error {
	kind := run.EntityKind
	started := s.now()
	log := s.logger.With("tenant_id", run.TenantID, "entity", string(kind), "run_id", run.ID)

	var (
		total int64
		page  pageFunc
		err   error
	)
	switch kind {
	case models.EntityProducts:
		total, err = client.CountProducts(ctx)
		page = s.productPage(client, run.TenantID)
	case models.EntityCustomers:
		total, err = client.CountCustomers(ctx)
		page = s.customerPage(client, run.TenantID)
	case models.EntityOrders:
		since := started.Add(-s.orderLookback)
		total, err = client.CountOrders(ctx, since)
		page = s.orderPage(client, run.TenantID, since)
	default:
		err = fmt.Errorf("unknown entity kind %q", kind)
	}
	if err != nil {
		return s.failRun(ctx, log, run, started, err)
	}

	if err := s.store.StartSyncRun(ctx, run.ID, total, started); err != nil {
		return s.failRun(ctx, log, run, started, err)
	}
	log.Info("Syncing %d %s", total, kind)

	var synced int64
	cursor := ""
	for {
		written, next, err := page(ctx, cursor)
		if err != nil {
			return s.failRun(ctx, log, run, started, err)
		}

		synced += int64(written)
		if err := s.store.UpdateSyncProgress(ctx, run.ID, synced); err != nil {
			return s.failRun(ctx, log, run, started, err)
		}
		s.metrics.AddSyncedRecords(string(kind), written)
		log.Debug("Committed page of %d %s (%d/%d)", written, kind, synced, total)

		if next == "" {
			break
		}
		cursor = next
	}

	s.finishRun(context.WithoutCancel(ctx), run, models.SyncRunCompleted, "")
	s.metrics.ObserveSyncRun(string(kind), string(models.SyncRunCompleted), s.now().Sub(started))
	log.Info("Synced %d %s", synced, kind)
	return nil
}

func (s *Synchronizer) productPage(client ShopClient, tenantID string) pageFunc {
	return func(ctx context.Context, cursor string) (int, string, error) {
		page, err := client.ListProducts(ctx, cursor)
		if err != nil {
			return 0, "", err
		}
		for i := range page.Products {
			p := s.transformer.TransformProduct(tenantID, &page.Products[i])
			if _, err := s.store.UpsertProduct(ctx, p); err != nil {
				return 0, "", err
			}
		}
		return len(page.Products), page.NextCursor, nil
	}
}

func (s *Synchronizer) customerPage(client ShopClient, tenantID string) pageFunc {
	return func(ctx context.Context, cursor string) (int, string, error) {
		page, err := client.ListCustomers(ctx, cursor)
		if err != nil {
			return 0, "", err
		}
		for i := range page.Customers {
			c := s.transformer.TransformCustomer(tenantID, &page.Customers[i])
			if _, err := s.store.UpsertCustomer(ctx, c); err != nil {
				return 0, "", err
			}
		}
		return len(page.Customers), page.NextCursor, nil
	}
}

func (s *Synchronizer) orderPage(client ShopClient, tenantID string, since time.Time) pageFunc {
	return func(ctx context.Context, cursor string) (int, string, error) {
		page, err := client.ListOrders(ctx, since, cursor)
		if err != nil {
			return 0, "", err
		}

		productIDs, customerIDs, err := s.resolveReferences(ctx, tenantID, page.Orders)
		if err != nil {
			return 0, "", err
		}

		for i := range page.Orders {
			src := &page.Orders[i]
			order := s.transformer.TransformOrder(tenantID, src)
			if src.Customer != nil {
				if id, ok := customerIDs[shopify.ExternalID(src.Customer.ID)]; ok {
					order.CustomerID = &id
				}
			}

			items := make([]models.LineItem, 0, len(src.LineItems))
			for j := range src.LineItems {
				li := &src.LineItems[j]
				item := s.transformer.TransformLineItem(li)
				if li.ProductID != nil {
					if id, ok := productIDs[shopify.ExternalID(*li.ProductID)]; ok {
						item.ProductID = &id
					}
				}
				item.CustomerID = order.CustomerID
				items = append(items, item)
			}

			if _, err := s.store.UpsertOrder(ctx, order, items); err != nil {
				return 0, "", err
			}
		}
		return len(page.Orders), page.NextCursor, nil
	}
}

// resolveReferences looks up every product and customer a page of orders
// points at. References to records never synced are simply absent.
func (s *Synchronizer) resolveReferences(ctx context.Context, tenantID string, orders []shopify.Order) (map[string]string, map[string]string, error) {
	var productExt, customerExt []string
	seenProduct := map[string]bool{}
	seenCustomer := map[string]bool{}

	for _, o := range orders {
		if o.Customer != nil {
			id := shopify.ExternalID(o.Customer.ID)
			if !seenCustomer[id] {
				seenCustomer[id] = true
				customerExt = append(customerExt, id)
			}
		}
		for _, li := range o.LineItems {
			if li.ProductID == nil {
				continue
			}
			id := shopify.ExternalID(*li.ProductID)
			if !seenProduct[id] {
				seenProduct[id] = true
				productExt = append(productExt, id)
			}
		}
	}

	productIDs, err := s.store.FindProductIDs(ctx, tenantID, productExt)
	if err != nil {
		return nil, nil, err
	}
	customerIDs, err := s.store.FindCustomerIDs(ctx, tenantID, customerExt)
	if err != nil {
		return nil, nil, err
	}
	return productIDs, customerIDs, nil
}

func (s *Synchronizer) failRun(ctx context.Context, log *logger.Logger, run *models.SyncRun, started time.Time, cause error) error {
	log.Error("Sync of %s failed: %v", run.EntityKind, cause)
	s.finishRun(context.WithoutCancel(ctx), run, models.SyncRunFailed, cause.Error())
	s.metrics.ObserveSyncRun(string(run.EntityKind), string(models.SyncRunFailed), s.now().Sub(started))
	return fmt.Errorf("%s sync failed: %w", run.EntityKind, cause)
}

func (s *Synchronizer) finishRun(ctx context.Context, run *models.SyncRun, status models.SyncRunStatus, errMsg string) {
	if err := s.store.FinishSyncRun(ctx, run.ID, status, errMsg, s.now()); err != nil {
		s.logger.Error("Failed to record %s state for sync run %s: %v", status, run.ID, err)
	}
}

func (s *Synchronizer) markFailed(ctx context.Context, log *logger.Logger, tenantID string) {
	if err := s.store.UpdateConnectionStatus(ctx, tenantID, models.ConnectionStatusFailed); err != nil && !errors.Is(err, repository.ErrConnectionNotFound) {
		log.Error("Failed to mark connection failed: %v", err)
	}
}

func (s *Synchronizer) localCounts(ctx context.Context, tenantID string) (repository.SyncCounts, error) {
	var counts repository.SyncCounts
	var err error
	if counts.Products, err = s.store.Count(ctx, tenantID, models.EntityProducts); err != nil {
		return counts, err
	}
	if counts.Customers, err = s.store.Count(ctx, tenantID, models.EntityCustomers); err != nil {
		return counts, err
	}
	if counts.Orders, err = s.store.Count(ctx, tenantID, models.EntityOrders); err != nil {
		return counts, err
	}
	return counts, nil
}
