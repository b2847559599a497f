package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"storelens/internal/config"
	"storelens/internal/logger"
	"storelens/internal/worker/processors"

	"github.com/segmentio/kafka-go"
)

// Dispatcher hands a full sync off to run outside the request that asked
// for it.
type Dispatcher interface {
	DispatchSync(ctx context.Context, tenantID, source string) error
}

// InProcessDispatcher runs each sync on its own goroutine in this process.
type InProcessDispatcher struct {
	processor *processors.EventProcessor
	logger    *logger.Logger
	wg        sync.WaitGroup
}

func NewInProcessDispatcher(processor *processors.EventProcessor, logger *logger.Logger) *InProcessDispatcher {
	return &InProcessDispatcher{processor: processor, logger: logger}
}

func (d *InProcessDispatcher) DispatchSync(ctx context.Context, tenantID, source string) error {
	event := processors.Event{
		Type:        processors.EventSyncRequested,
		TenantID:    tenantID,
		Source:      source,
		RequestedAt: time.Now().UTC(),
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// The sync outlives the HTTP request that triggered it.
		if err := d.processor.Process(context.WithoutCancel(ctx), event); err != nil {
			d.logger.Error("Background sync for tenant %s failed: %v", tenantID, err)
		}
	}()
	return nil
}

// Wait blocks until every dispatched sync has returned.
func (d *InProcessDispatcher) Wait() {
	d.wg.Wait()
}

// MessageWriter is the subset of *kafka.Writer the dispatcher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes sync requests for cmd/worker to consume. Messages
// are keyed by tenant so one tenant's requests land on one partition.
type KafkaDispatcher struct {
	writer MessageWriter
}

func NewKafkaWriter(cfg *config.Config) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers()...),
		Topic:        cfg.KafkaSyncTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
}

func NewKafkaDispatcher(writer MessageWriter) *KafkaDispatcher {
	return &KafkaDispatcher{writer: writer}
}

func (d *KafkaDispatcher) DispatchSync(ctx context.Context, tenantID, source string) error {
	payload, err := json.Marshal(processors.Event{
		Type:        processors.EventSyncRequested,
		TenantID:    tenantID,
		Source:      source,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode sync request: %w", err)
	}

	if err := d.writer.WriteMessages(ctx, kafka.Message{Key: []byte(tenantID), Value: payload}); err != nil {
		return fmt.Errorf("failed to publish sync request: %w", err)
	}
	return nil
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
