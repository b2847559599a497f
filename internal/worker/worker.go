package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"storelens/internal/config"
	"storelens/internal/logger"
	"storelens/internal/worker/processors"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the subset of *kafka.Reader the worker uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Worker struct {
	logger    *logger.Logger
	reader    MessageReader
	processor *processors.EventProcessor
}

func NewKafkaReader(cfg *config.Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers(),
		GroupID:  cfg.KafkaGroupID,
		Topic:    cfg.KafkaSyncTopic,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  time.Second,
	})
}

func New(reader MessageReader, processor *processors.EventProcessor, logger *logger.Logger) *Worker {
	return &Worker{
		logger:    logger,
		reader:    reader,
		processor: processor,
	}
}

// Run consumes sync requests until ctx is cancelled. Every message is
// committed after one processing attempt, successful or not.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("Worker started, listening for sync requests...")

	for {
		message, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Error("Failed to read message: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		w.logger.Debug("Received message: %s", string(message.Value))
		w.handle(ctx, message)

		if err := w.reader.CommitMessages(context.WithoutCancel(ctx), message); err != nil {
			w.logger.Error("Failed to commit message at offset %d: %v", message.Offset, err)
		}
	}
}

func (w *Worker) handle(ctx context.Context, message kafka.Message) {
	var event processors.Event
	if err := json.Unmarshal(message.Value, &event); err != nil {
		w.logger.Error("Failed to parse event: %v", err)
		return
	}

	if err := w.processor.Process(ctx, event); err != nil {
		w.logger.Error("Failed to process event: %v", err)
		return
	}

	w.logger.Debug("Event processed successfully")
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	if err := w.reader.Close(); err != nil {
		w.logger.Warn("Failed to close reader: %v", err)
	}
}
