package orders

import (
	"context"
	"time"

	"github.com/kibook/order-engine/internal/identity"
)

// Store is the owner-scoped persistence surface the cart and checkout
// services run on. The pgx implementation is Repo; tests use an in-memory
// fake. Every method reports missing-or-foreign rows as ErrNotFound.
type Store interface {
	// Standard lines.
	AddOrIncrementStandard(ctx context.Context, owner identity.Owner, bookID string, qty int) (StandardOrder, error)
	SetStandardQuantity(ctx context.Context, owner identity.Owner, bookID string, qty int) (StandardOrder, error)
	DeleteStandard(ctx context.Context, owner identity.Owner, id string) error
	ListStandard(ctx context.Context, owner identity.Owner, statuses []Status) ([]StandardOrder, error)

	// Personalized lines.
	CreatePersonalized(ctx context.Context, o PersonalizedOrder) (PersonalizedOrder, error)
	DeletePersonalized(ctx context.Context, owner identity.Owner, id string) error
	ListPersonalized(ctx context.Context, owner identity.Owner, statuses []Status) ([]PersonalizedOrder, error)
	GetPersonalized(ctx context.Context, owner identity.Owner, id string) (PersonalizedOrder, error)
	SetReadProgress(ctx context.Context, owner identity.Owner, id string, progress int) error

	// Lifecycle.
	GetStatus(ctx context.Context, owner identity.Owner, ref Ref) (Status, error)
	Transition(ctx context.Context, owner identity.Owner, ref Ref, to Status) error

	// Checkout. FetchOpen and CompleteAll both enforce the count-match rule;
	// CompleteAll additionally flips every matched row to COMPLETED inside
	// one transaction, or none of them.
	FetchOpen(ctx context.Context, owner identity.Owner, refs []Ref) ([]StandardOrder, []PersonalizedOrder, error)
	CompleteAll(ctx context.Context, owner identity.Owner, refs []Ref, method string, details []byte, paidAt time.Time) ([]StandardOrder, []PersonalizedOrder, error)

	// Guest-to-account migration: bulk re-own of open guest rows. Zero rows
	// moved is success, not an error.
	MigrateGuest(ctx context.Context, guestToken, userID string) (int64, error)
}
