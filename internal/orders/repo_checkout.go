package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kibook/order-engine/internal/identity"
)

var openStatuses = []Status{StatusInCart, StatusPending}

type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func partitionRefs(refs []Ref) (stdIDs, persIDs []string) {
	for _, ref := range refs {
		if ref.Kind == RefStandard {
			stdIDs = append(stdIDs, ref.ID)
		} else {
			persIDs = append(persIDs, ref.ID)
		}
	}
	return stdIDs, persIDs
}

// FetchOpen resolves a ref list against the owner's open rows and enforces
// the count-match rule. Read-only half of checkout, used for price preview.
func (r *Repo) FetchOpen(ctx context.Context, owner identity.Owner, refs []Ref) ([]StandardOrder, []PersonalizedOrder, error) {
	stdIDs, persIDs := partitionRefs(refs)

	std, err := r.fetchOpenStandard(ctx, r.DB, owner, stdIDs, false)
	if err != nil {
		return nil, nil, err
	}
	pers, err := r.fetchOpenPersonalized(ctx, r.DB, owner, persIDs, false)
	if err != nil {
		return nil, nil, err
	}
	if len(std) != len(stdIDs) {
		return nil, nil, &RefCountError{Kind: RefStandard, Requested: len(stdIDs), Found: len(std)}
	}
	if len(pers) != len(persIDs) {
		return nil, nil, &RefCountError{Kind: RefPersonalized, Requested: len(persIDs), Found: len(pers)}
	}
	return std, pers, nil
}

// CompleteAll locks every referenced open row, verifies the count per kind,
// and flips them all to COMPLETED with the payment recorded. Any mismatch or
// failure rolls the whole thing back; no order is left half-updated.
func (r *Repo) CompleteAll(ctx context.Context, owner identity.Owner, refs []Ref, method string, details []byte, paidAt time.Time) ([]StandardOrder, []PersonalizedOrder, error) {
	stdIDs, persIDs := partitionRefs(refs)

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: begin: %v", ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	std, err := r.fetchOpenStandard(ctx, tx, owner, stdIDs, true)
	if err != nil {
		return nil, nil, err
	}
	if len(std) != len(stdIDs) {
		return nil, nil, &RefCountError{Kind: RefStandard, Requested: len(stdIDs), Found: len(std)}
	}
	pers, err := r.fetchOpenPersonalized(ctx, tx, owner, persIDs, true)
	if err != nil {
		return nil, nil, err
	}
	if len(pers) != len(persIDs) {
		return nil, nil, &RefCountError{Kind: RefPersonalized, Requested: len(persIDs), Found: len(pers)}
	}

	if len(stdIDs) > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE standard_orders
			SET status = 'COMPLETED', payment_method = $1, payment_details = $2, paid_at = $3, updated_at = now()
			WHERE id = ANY($4)`,
			method, details, paidAt, stdIDs); err != nil {
			return nil, nil, fmt.Errorf("%w: complete standard: %v", ErrTransactionFailed, err)
		}
	}
	if len(persIDs) > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE personalized_orders
			SET status = 'COMPLETED', payment_method = $1, payment_details = $2, paid_at = $3,
			    read_progress = 0, updated_at = now()
			WHERE id = ANY($4)`,
			method, details, paidAt, persIDs); err != nil {
			return nil, nil, fmt.Errorf("%w: complete personalized: %v", ErrTransactionFailed, err)
		}
	}

	// read the characters on the tx, before commit: once this returns, any
	// error means nothing happened, and any success means rows plus payload
	// are all in hand.
	pers, err = r.attachCharacters(ctx, tx, pers)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: load characters: %v", ErrTransactionFailed, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}

	for i := range std {
		std[i].Status = StatusCompleted
		std[i].Payment = Payment{Method: method, Details: details, PaidAt: &paidAt}
	}
	for i := range pers {
		pers[i].Status = StatusCompleted
		pers[i].Payment = Payment{Method: method, Details: details, PaidAt: &paidAt}
		pers[i].ReadProgress = 0
	}
	return std, pers, nil
}

func (r *Repo) fetchOpenStandard(ctx context.Context, q pgxQuerier, owner identity.Owner, ids []string, lock bool) ([]StandardOrder, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ownerSQL, ownerArg := ownerClause(owner, 2)
	sql := `SELECT ` + stdCols + ` FROM standard_orders
		WHERE id = ANY($1) AND ` + ownerSQL + ` AND status = ANY($3) ORDER BY id`
	if lock {
		sql += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, sql, ids, ownerArg, statusStrings(openStatuses))
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

func (r *Repo) fetchOpenPersonalized(ctx context.Context, q pgxQuerier, owner identity.Owner, ids []string, lock bool) ([]PersonalizedOrder, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ownerSQL, ownerArg := ownerClause(owner, 2)
	sql := `SELECT ` + persCols + ` FROM personalized_orders
		WHERE id = ANY($1) AND ` + ownerSQL + ` AND status = ANY($3) ORDER BY id`
	if lock {
		sql += ` FOR UPDATE`
	}
	rows, err := q.Query(ctx, sql, ids, ownerArg, statusStrings(openStatuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PersonalizedOrder
	for rows.Next() {
		o, err := scanPersonalized(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// MigrateGuest re-owns every open guest row to the user in one transaction.
// Standard IN_CART lines for a book the user already has in cart are merged
// into the user's line so the one-line-per-book invariant survives the move.
// A second migration of the same token finds nothing and succeeds.
func (r *Repo) MigrateGuest(ctx context.Context, guestToken, userID string) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", ErrTransactionFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	merge, err := tx.Exec(ctx, `
		UPDATE standard_orders u
		SET quantity = u.quantity + g.quantity, updated_at = now()
		FROM standard_orders g
		WHERE g.guest_token = $1 AND g.status = 'IN_CART'
		  AND u.user_id = $2 AND u.status = 'IN_CART' AND u.book_id = g.book_id`,
		guestToken, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: merge lines: %v", ErrTransactionFailed, err)
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM standard_orders g
		USING standard_orders u
		WHERE g.guest_token = $1 AND g.status = 'IN_CART'
		  AND u.user_id = $2 AND u.status = 'IN_CART' AND u.book_id = g.book_id`,
		guestToken, userID); err != nil {
		return 0, fmt.Errorf("%w: drop merged lines: %v", ErrTransactionFailed, err)
	}

	moved := merge.RowsAffected()
	ct, err := tx.Exec(ctx, `
		UPDATE standard_orders SET user_id = $2, guest_token = NULL, updated_at = now()
		WHERE guest_token = $1 AND status = ANY($3)`,
		guestToken, userID, statusStrings(openStatuses))
	if err != nil {
		return 0, fmt.Errorf("%w: re-own standard: %v", ErrTransactionFailed, err)
	}
	moved += ct.RowsAffected()

	ct, err = tx.Exec(ctx, `
		UPDATE personalized_orders SET user_id = $2, guest_token = NULL, updated_at = now()
		WHERE guest_token = $1 AND status = ANY($3)`,
		guestToken, userID, statusStrings(openStatuses))
	if err != nil {
		return 0, fmt.Errorf("%w: re-own personalized: %v", ErrTransactionFailed, err)
	}
	moved += ct.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrTransactionFailed, err)
	}
	return moved, nil
}
