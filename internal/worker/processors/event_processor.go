package processors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storelens/internal/logger"
	"storelens/internal/services/syncer"
)

const EventSyncRequested = "sync.requested"

// Event is the envelope carried on the sync topic.
type Event struct {
	Type        string    `json:"type"`
	TenantID    string    `json:"tenant_id"`
	Source      string    `json:"source,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

// SyncRunner is satisfied by *syncer.Synchronizer.
type SyncRunner interface {
	StartFullSync(ctx context.Context, tenantID string) error
}

type EventProcessor struct {
	runner SyncRunner
	logger *logger.Logger
}

func NewEventProcessor(runner SyncRunner, logger *logger.Logger) *EventProcessor {
	return &EventProcessor{
		runner: runner,
		logger: logger,
	}
}

// Process handles one event. A sync that is already running for the tenant
// is not an error; the request is dropped.
func (ep *EventProcessor) Process(ctx context.Context, event Event) error {
	ep.logger.Debug("Processing %s event for tenant %s", event.Type, event.TenantID)

	switch event.Type {
	case EventSyncRequested:
		if event.TenantID == "" {
			return errors.New("sync.requested event without tenant_id")
		}
		err := ep.runner.StartFullSync(ctx, event.TenantID)
		if errors.Is(err, syncer.ErrSyncInProgress) {
			ep.logger.Info("Sync for tenant %s already running, dropping request", event.TenantID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("full sync for tenant %s failed: %w", event.TenantID, err)
		}
		ep.logger.Info("Full sync for tenant %s completed", event.TenantID)
		return nil
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
}
