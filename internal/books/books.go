package books

import "time"

// Book is an immutable catalog entry. Orders reference it by id and copy its
// price at creation time; nothing in the engine ever rewrites a book.
type Book struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	BasePrice int64     `json:"base_price"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
}
