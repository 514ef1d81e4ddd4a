package orders

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kibook/order-engine/internal/identity"
	kafkax "github.com/kibook/order-engine/internal/kafka"
)

// Publisher is the slice of the kafka producer the coordinator needs.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// CheckoutService turns a list of open order refs into COMPLETED orders in a
// single all-or-nothing commit. Payment has already been captured by the time
// it runs; this is bookkeeping, not charging.
type CheckoutService struct {
	store    Store
	producer Publisher // nil disables event publishing
	service  string
	log      *zap.Logger
	now      func() time.Time
}

func NewCheckoutService(store Store, producer Publisher, serviceName string, log *zap.Logger) *CheckoutService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckoutService{
		store:    store,
		producer: producer,
		service:  serviceName,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type CheckoutResult struct {
	Standard     []StandardOrder     `json:"standard"`
	Personalized []PersonalizedOrder `json:"personalized"`
	TotalPrice   int64               `json:"total_price"`
}

func validateRefs(refs []Ref) error {
	if len(refs) == 0 {
		return invalid("refs", "at least one order reference is required")
	}
	for _, ref := range refs {
		if !ref.Kind.Valid() || ref.ID == "" {
			return invalid("refs", "every reference needs a valid kind and id")
		}
	}
	return nil
}

func totalOf(std []StandardOrder, pers []PersonalizedOrder) int64 {
	var total int64
	for _, o := range std {
		total += o.LineTotal()
	}
	for _, o := range pers {
		total += o.CalculatedPrice
	}
	return total
}

// Checkout verifies every ref resolves to exactly one open row owned by the
// caller, then completes them all atomically. Retrying with the same refs
// after success fails the count-match, so no second payment record appears.
func (s *CheckoutService) Checkout(ctx context.Context, id identity.Identity, refs []Ref, method string, details json.RawMessage) (CheckoutResult, error) {
	if !id.WriteCapable() {
		return CheckoutResult{}, identity.ErrIdentityRequired
	}
	if err := validateRefs(refs); err != nil {
		return CheckoutResult{}, err
	}
	if strings.TrimSpace(method) == "" {
		return CheckoutResult{}, invalid("paymentMethod", "required")
	}

	paidAt := s.now()
	std, pers, err := s.store.CompleteAll(ctx, id.Owner(), refs, method, details, paidAt)
	if err != nil {
		return CheckoutResult{}, err
	}
	res := CheckoutResult{Standard: std, Personalized: pers, TotalPrice: totalOf(std, pers)}

	s.log.Info("checkout completed",
		zap.Int("standard", len(std)), zap.Int("personalized", len(pers)),
		zap.Int64("total_price", res.TotalPrice), zap.String("payment_method", method))
	s.publishCompleted(id, refs, method, res)
	return res, nil
}

// PreviewTotal runs the resolution and summing steps without transitioning
// anything, for showing a total before payment capture.
func (s *CheckoutService) PreviewTotal(ctx context.Context, id identity.Identity, refs []Ref) (CheckoutResult, error) {
	if err := validateRefs(refs); err != nil {
		return CheckoutResult{}, err
	}
	std, pers, err := s.store.FetchOpen(ctx, id.Owner(), refs)
	if err != nil {
		return CheckoutResult{}, err
	}
	return CheckoutResult{Standard: std, Personalized: pers, TotalPrice: totalOf(std, pers)}, nil
}

// MigrateGuest re-owns a guest's open orders to the authenticated user. The
// target identity must come from a server-verified channel. Zero moved rows
// means another device migrated first; that is success.
func (s *CheckoutService) MigrateGuest(ctx context.Context, id identity.Identity, guestToken string) (int64, error) {
	if !id.WriteCapable() || id.UserID == "" {
		return 0, identity.ErrIdentityRequired
	}
	if strings.TrimSpace(guestToken) == "" {
		return 0, invalid("guestToken", "required")
	}
	moved, err := s.store.MigrateGuest(ctx, guestToken, id.UserID)
	if err != nil {
		return 0, err
	}
	s.log.Info("guest cart migrated", zap.String("user_id", id.UserID), zap.Int64("moved", moved))
	return moved, nil
}

func (s *CheckoutService) publishCompleted(id identity.Identity, refs []Ref, method string, res CheckoutResult) {
	if s.producer == nil {
		return
	}
	owner := id.Owner()
	snapshots := make([]PersonalizedSnapshot, 0, len(res.Personalized))
	for _, o := range res.Personalized {
		snapshots = append(snapshots, SnapshotOf(o))
	}
	ev := Envelope{
		EventID:      uuid.NewString(),
		EventType:    EventCheckoutCompleted,
		EventVersion: 1,
		OccurredAt:   s.now(),
		Producer:     s.service,
		Payload: kafkax.MustMarshal(CheckoutCompletedPayload{
			UserID:        owner.UserID,
			GuestToken:    owner.GuestToken,
			Refs:          refs,
			PaymentMethod: method,
			TotalPrice:    res.TotalPrice,
			Personalized:  snapshots,
		}),
	}
	s.producer.Publish(PartitionKey(owner.Key()), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventCheckoutCompleted)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
