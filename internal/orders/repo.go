package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kibook/order-engine/internal/identity"
)

type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

const stdCols = `id, book_id, quantity, user_id, guest_token, unit_price, status,
	payment_method, payment_details, paid_at, created_at, updated_at`

func ownerClause(owner identity.Owner, argPos int) (string, any) {
	if owner.UserID != "" {
		return fmt.Sprintf("user_id = $%d", argPos), owner.UserID
	}
	return fmt.Sprintf("guest_token = $%d", argPos), owner.GuestToken
}

func tableFor(kind RefKind) string {
	if kind == RefStandard {
		return "standard_orders"
	}
	return "personalized_orders"
}

func statusStrings(ss []Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

type rowScanner interface{ Scan(dest ...any) error }

func scanStandard(row rowScanner) (StandardOrder, error) {
	var (
		o                  StandardOrder
		userID, guestToken *string
		status             string
		method             *string
		details            []byte
		paidAt             *time.Time
	)
	err := row.Scan(&o.ID, &o.BookID, &o.Quantity, &userID, &guestToken, &o.UnitPrice, &status,
		&method, &details, &paidAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return StandardOrder{}, err
	}
	if userID != nil {
		o.UserID = *userID
	}
	if guestToken != nil {
		o.GuestToken = *guestToken
	}
	o.Status = Status(status)
	if method != nil {
		o.Payment.Method = *method
	}
	if details != nil {
		o.Payment.Details = details
	}
	o.Payment.PaidAt = paidAt
	return o, nil
}

// AddOrIncrementStandard merges into the owner's existing IN_CART line for
// the book, or inserts a new line with the book's current price frozen in.
// The increment is a single UPDATE, so racing adds never lose a quantity.
func (r *Repo) AddOrIncrementStandard(ctx context.Context, owner identity.Owner, bookID string, qty int) (StandardOrder, error) {
	var basePrice int64
	err := r.DB.QueryRow(ctx, `SELECT base_price FROM books WHERE id=$1`, bookID).Scan(&basePrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return StandardOrder{}, invalid("bookId", "unknown book")
	}
	if err != nil {
		return StandardOrder{}, err
	}

	if o, err := r.incrementStandard(ctx, owner, bookID, qty); err == nil {
		return o, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return StandardOrder{}, err
	}

	var userID, guestToken *string
	if owner.UserID != "" {
		userID = &owner.UserID
	} else {
		guestToken = &owner.GuestToken
	}

	row := r.DB.QueryRow(ctx, `
		INSERT INTO standard_orders(id, book_id, quantity, user_id, guest_token, unit_price, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'IN_CART')
		RETURNING `+stdCols,
		uuid.NewString(), bookID, qty, userID, guestToken, basePrice)
	o, err := scanStandard(row)
	if err == nil {
		return o, nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		// lost the insert race to a concurrent add; fold into that line
		return r.incrementStandard(ctx, owner, bookID, qty)
	}
	return StandardOrder{}, err
}

func (r *Repo) incrementStandard(ctx context.Context, owner identity.Owner, bookID string, qty int) (StandardOrder, error) {
	ownerSQL, ownerArg := ownerClause(owner, 3)
	row := r.DB.QueryRow(ctx, `
		UPDATE standard_orders SET quantity = quantity + $1, updated_at = now()
		WHERE book_id = $2 AND `+ownerSQL+` AND status = 'IN_CART'
		RETURNING `+stdCols,
		qty, bookID, ownerArg)
	return scanStandard(row)
}

// SetStandardQuantity replaces the quantity on the owner's IN_CART line for
// the book. Rows the caller does not own surface as ErrNotFound.
func (r *Repo) SetStandardQuantity(ctx context.Context, owner identity.Owner, bookID string, qty int) (StandardOrder, error) {
	ownerSQL, ownerArg := ownerClause(owner, 3)
	row := r.DB.QueryRow(ctx, `
		UPDATE standard_orders SET quantity = $1, updated_at = now()
		WHERE book_id = $2 AND `+ownerSQL+` AND status = 'IN_CART'
		RETURNING `+stdCols,
		qty, bookID, ownerArg)
	o, err := scanStandard(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return StandardOrder{}, ErrNotFound
	}
	return o, err
}

func (r *Repo) DeleteStandard(ctx context.Context, owner identity.Owner, id string) error {
	return r.deleteLine(ctx, owner, Ref{Kind: RefStandard, ID: id})
}

func (r *Repo) deleteLine(ctx context.Context, owner identity.Owner, ref Ref) error {
	ownerSQL, ownerArg := ownerClause(owner, 2)
	ct, err := r.DB.Exec(ctx,
		`DELETE FROM `+tableFor(ref.Kind)+` WHERE id = $1 AND `+ownerSQL+` AND status = 'IN_CART'`,
		ref.ID, ownerArg)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	status, err := r.GetStatus(ctx, owner, ref)
	if err != nil {
		return err
	}
	if status.Terminal() {
		return ErrAlreadyFinalized
	}
	// PENDING rows are no longer cart lines; abandon them via Cancel instead.
	return ErrNotFound
}

func (r *Repo) ListStandard(ctx context.Context, owner identity.Owner, statuses []Status) ([]StandardOrder, error) {
	ownerSQL, ownerArg := ownerClause(owner, 1)
	q := `SELECT ` + stdCols + ` FROM standard_orders WHERE ` + ownerSQL
	args := []any{ownerArg}
	if len(statuses) > 0 {
		q += ` AND status = ANY($2)`
		args = append(args, statusStrings(statuses))
	}
	q += ` ORDER BY created_at DESC`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StandardOrder
	for rows.Next() {
		o, err := scanStandard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) GetStatus(ctx context.Context, owner identity.Owner, ref Ref) (Status, error) {
	ownerSQL, ownerArg := ownerClause(owner, 2)
	var s string
	err := r.DB.QueryRow(ctx,
		`SELECT status FROM `+tableFor(ref.Kind)+` WHERE id = $1 AND `+ownerSQL,
		ref.ID, ownerArg).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return Status(s), nil
}

// Transition moves one order forward in its lifecycle. Repeating an already
// applied transition is a no-op; terminal rows reject everything.
func (r *Repo) Transition(ctx context.Context, owner identity.Owner, ref Ref, to Status) error {
	sources := TransitionSources(to)
	ownerSQL, ownerArg := ownerClause(owner, 3)
	ct, err := r.DB.Exec(ctx,
		`UPDATE `+tableFor(ref.Kind)+` SET status = $1, updated_at = now()
		 WHERE id = $2 AND `+ownerSQL+` AND status = ANY($4)`,
		string(to), ref.ID, ownerArg, statusStrings(sources))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	current, err := r.GetStatus(ctx, owner, ref)
	if err != nil {
		return err
	}
	if current == to {
		return nil
	}
	return ErrAlreadyFinalized
}
