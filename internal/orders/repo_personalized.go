package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kibook/order-engine/internal/identity"
)

const persCols = `id, book_id, user_id, guest_token, pack_tier, calculated_price, original_book_price,
	hero_name, hero_age, theme, location, message, languages, value_ids, image_refs,
	generated_content, read_progress, status, payment_method, payment_details, paid_at, created_at, updated_at`

func scanPersonalized(row rowScanner) (PersonalizedOrder, error) {
	var (
		o                  PersonalizedOrder
		userID, guestToken *string
		content            *string
		status             string
		method             *string
		details            []byte
		paidAt             *time.Time
	)
	err := row.Scan(&o.ID, &o.BookID, &userID, &guestToken, &o.PackTier, &o.CalculatedPrice, &o.OriginalBookPrice,
		&o.HeroName, &o.HeroAge, &o.Theme, &o.Location, &o.Message, &o.Languages, &o.ValueIDs, &o.ImageRefs,
		&content, &o.ReadProgress, &status, &method, &details, &paidAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return PersonalizedOrder{}, err
	}
	if userID != nil {
		o.UserID = *userID
	}
	if guestToken != nil {
		o.GuestToken = *guestToken
	}
	if content != nil {
		o.GeneratedContent = *content
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

// CreatePersonalized persists the order and its characters as one unit.
// Either everything lands or nothing is visible.
func (r *Repo) CreatePersonalized(ctx context.Context, o PersonalizedOrder) (PersonalizedOrder, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PersonalizedOrder{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o.ID = uuid.NewString()
	o.Status = StatusInCart
	o.ReadProgress = 0

	var userID, guestToken *string
	if o.UserID != "" {
		userID = &o.UserID
	} else {
		guestToken = &o.GuestToken
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO personalized_orders(id, book_id, user_id, guest_token, pack_tier,
			calculated_price, original_book_price, hero_name, hero_age, theme, location,
			message, languages, value_ids, image_refs, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,'IN_CART')
		RETURNING created_at, updated_at`,
		o.ID, o.BookID, userID, guestToken, o.PackTier,
		o.CalculatedPrice, o.OriginalBookPrice, o.HeroName, o.HeroAge, o.Theme, o.Location,
		o.Message, o.Languages, o.ValueIDs, o.ImageRefs)
	if err := row.Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		return PersonalizedOrder{}, err
	}

	for i := range o.Characters {
		c := &o.Characters[i]
		c.ID = uuid.NewString()
		c.OrderID = o.ID
		if _, err := tx.Exec(ctx, `
			INSERT INTO characters(id, order_id, name, relationship, animal_type, sex, age_band, photo_url, position)
			VALUES ($1,$2,$3,$4,NULLIF($5,''),NULLIF($6,''),NULLIF($7,''),NULLIF($8,''),$9)`,
			c.ID, c.OrderID, c.Name, c.Relationship, c.AnimalType, c.Sex, c.AgeBand, c.PhotoURL, i); err != nil {
			return PersonalizedOrder{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return PersonalizedOrder{}, err
	}
	return o, nil
}

func (r *Repo) DeletePersonalized(ctx context.Context, owner identity.Owner, id string) error {
	// characters go with the row (FK cascade)
	return r.deleteLine(ctx, owner, Ref{Kind: RefPersonalized, ID: id})
}

func (r *Repo) ListPersonalized(ctx context.Context, owner identity.Owner, statuses []Status) ([]PersonalizedOrder, error) {
	ownerSQL, ownerArg := ownerClause(owner, 1)
	q := `SELECT ` + persCols + ` FROM personalized_orders WHERE ` + ownerSQL
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

	var out []PersonalizedOrder
	for rows.Next() {
		o, err := scanPersonalized(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return r.attachCharacters(ctx, r.DB, out)
}

func (r *Repo) GetPersonalized(ctx context.Context, owner identity.Owner, id string) (PersonalizedOrder, error) {
	ownerSQL, ownerArg := ownerClause(owner, 2)
	row := r.DB.QueryRow(ctx, `SELECT `+persCols+` FROM personalized_orders WHERE id = $1 AND `+ownerSQL, id, ownerArg)
	o, err := scanPersonalized(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PersonalizedOrder{}, ErrNotFound
	}
	if err != nil {
		return PersonalizedOrder{}, err
	}
	withChars, err := r.attachCharacters(ctx, r.DB, []PersonalizedOrder{o})
	if err != nil {
		return PersonalizedOrder{}, err
	}
	return withChars[0], nil
}

func (r *Repo) attachCharacters(ctx context.Context, q pgxQuerier, os []PersonalizedOrder) ([]PersonalizedOrder, error) {
	if len(os) == 0 {
		return os, nil
	}
	ids := make([]string, len(os))
	byID := make(map[string]*PersonalizedOrder, len(os))
	for i := range os {
		ids[i] = os[i].ID
		byID[os[i].ID] = &os[i]
	}

	rows, err := q.Query(ctx, `
		SELECT id, order_id, name, relationship,
		       COALESCE(animal_type,''), COALESCE(sex,''), COALESCE(age_band,''), COALESCE(photo_url,'')
		FROM characters WHERE order_id = ANY($1) ORDER BY order_id, position`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c Character
		if err := rows.Scan(&c.ID, &c.OrderID, &c.Name, &c.Relationship, &c.AnimalType, &c.Sex, &c.AgeBand, &c.PhotoURL); err != nil {
			return nil, err
		}
		if o := byID[c.OrderID]; o != nil {
			o.Characters = append(o.Characters, c)
		}
	}
	return os, rows.Err()
}

// SetReadProgress is one of the two narrow writes allowed after completion.
func (r *Repo) SetReadProgress(ctx context.Context, owner identity.Owner, id string, progress int) error {
	ownerSQL, ownerArg := ownerClause(owner, 3)
	ct, err := r.DB.Exec(ctx, `
		UPDATE personalized_orders SET read_progress = $1, updated_at = now()
		WHERE id = $2 AND `+ownerSQL+` AND status = 'COMPLETED'`,
		progress, id, ownerArg)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.GetStatus(ctx, owner, Ref{Kind: RefPersonalized, ID: id}); err != nil {
		return err
	}
	return invalid("readProgress", "order is not completed")
}

// StoreGeneratedContent records the content generator's output. Worker path,
// not owner-scoped.
func (r *Repo) StoreGeneratedContent(ctx context.Context, id, content string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE personalized_orders SET generated_content = $1, updated_at = now()
		WHERE id = $2 AND status = 'COMPLETED'`,
		content, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) HasGeneratedContent(ctx context.Context, id string) (bool, error) {
	var has bool
	err := r.DB.QueryRow(ctx, `
		SELECT generated_content IS NOT NULL FROM personalized_orders WHERE id = $1`, id).Scan(&has)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	return has, err
}
