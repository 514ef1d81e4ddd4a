package books

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("book not found")

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) List(ctx context.Context) ([]Book, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, title, base_price, tags, created_at
	                              FROM books ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Book
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.ID, &b.Title, &b.BasePrice, &b.Tags, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id string) (Book, error) {
	var b Book
	err := r.DB.QueryRow(ctx, `SELECT id, title, base_price, tags, created_at
	                           FROM books WHERE id=$1`, id).
		Scan(&b.ID, &b.Title, &b.BasePrice, &b.Tags, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Book{}, ErrNotFound
	}
	if err != nil {
		return Book{}, err
	}
	return b, nil
}
