package bookgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/kibook/order-engine/internal/kafka"
	"github.com/kibook/order-engine/internal/orders"
	"github.com/kibook/order-engine/internal/redisx"
)

// ContentStore is the narrow write surface the worker gets: the one
// post-purchase field it owns.
type ContentStore interface {
	HasGeneratedContent(ctx context.Context, orderID string) (bool, error)
	StoreGeneratedContent(ctx context.Context, orderID, content string) error
}

// Generator produces the book prose for one completed personalized order.
// Possibly slow, possibly failing; failures are retried by the consumer.
type Generator interface {
	Generate(ctx context.Context, snap orders.PersonalizedSnapshot) (string, error)
}

type Service struct {
	Store       ContentStore
	Redis       *redis.Client    // nil disables event dedup
	Producer    orders.Publisher // publishes book.content.generated
	Generator   Generator
	ServiceName string
	Log         *zap.Logger
}

// HandleCheckoutCompleted is mounted as the consumer handler. Returning an
// error keeps the offset uncommitted so the event is retried; orders whose
// content already exists are skipped, which makes the retry safe.
func (s *Service) HandleCheckoutCompleted(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != orders.EventCheckoutCompleted {
		return nil // ignore
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "bookgen", env.EventID)
	if s.Redis != nil {
		if exists, _ := redisx.Exists(ctx, s.Redis, dkey); exists {
			return nil
		}
	}

	payload, err := kafkax.UnwrapPayload[orders.CheckoutCompletedPayload](env.Payload)
	if err != nil {
		return err
	}

	for _, snap := range payload.Personalized {
		if err := s.generateOne(ctx, snap); err != nil {
			return err
		}
	}

	if s.Redis != nil {
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}
	return nil
}

func (s *Service) generateOne(ctx context.Context, snap orders.PersonalizedSnapshot) error {
	has, err := s.Store.HasGeneratedContent(ctx, snap.OrderID)
	if errors.Is(err, orders.ErrNotFound) {
		s.Log.Warn("order vanished before generation", zap.String("order_id", snap.OrderID))
		return nil
	}
	if err != nil {
		return err
	}
	if has {
		return nil
	}

	content, err := s.Generator.Generate(ctx, snap)
	if err != nil {
		return fmt.Errorf("generate content for %s: %w", snap.OrderID, err)
	}
	if err := s.Store.StoreGeneratedContent(ctx, snap.OrderID, content); err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			s.Log.Warn("order vanished before store", zap.String("order_id", snap.OrderID))
			return nil
		}
		return err
	}

	s.publishGenerated(snap.OrderID, len(content))
	s.Log.Info("content generated", zap.String("order_id", snap.OrderID), zap.Int("chars", len(content)))
	return nil
}

func (s *Service) publishGenerated(orderID string, chars int) {
	if s.Producer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventContentGenerated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(orders.ContentGeneratedPayload{OrderID: orderID, ContentChars: chars}),
	}
	s.Producer.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventContentGenerated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
