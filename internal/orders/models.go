package orders

import (
	"encoding/json"
	"time"
)

// RefKind tags a cart line with its order kind so both kinds flow through one
// code path in listing and checkout.
type RefKind string

const (
	RefStandard     RefKind = "STANDARD"
	RefPersonalized RefKind = "PERSONALIZED"
)

func (k RefKind) Valid() bool {
	return k == RefStandard || k == RefPersonalized
}

// Ref identifies one cart line of either kind.
type Ref struct {
	Kind RefKind `json:"kind"`
	ID   string  `json:"id"`
}

type Payment struct {
	Method  string          `json:"method,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
	PaidAt  *time.Time      `json:"paid_at,omitempty"`
}

// StandardOrder is a cart line for an unmodified book. UnitPrice is the
// book's base price copied at creation time and never recomputed.
type StandardOrder struct {
	ID         string    `json:"id"`
	BookID     string    `json:"book_id"`
	Quantity   int       `json:"quantity"`
	UserID     string    `json:"user_id,omitempty"`
	GuestToken string    `json:"guest_token,omitempty"`
	UnitPrice  int64     `json:"unit_price"`
	Status     Status    `json:"status"`
	Payment    Payment   `json:"payment"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (o StandardOrder) LineTotal() int64 {
	return o.UnitPrice * int64(o.Quantity)
}

// Character belongs to exactly one personalized order. Created with its
// parent, deleted with its parent, never edited on its own.
type Character struct {
	ID           string `json:"id"`
	OrderID      string `json:"order_id"`
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	AnimalType   string `json:"animal_type,omitempty"`
	Sex          string `json:"sex,omitempty"`
	AgeBand      string `json:"age_band,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

// PersonalizedOrder carries the full customization payload. CalculatedPrice
// is the pack tier price frozen at creation; OriginalBookPrice is display
// only and never enters totals.
type PersonalizedOrder struct {
	ID                string      `json:"id"`
	BookID            string      `json:"book_id"`
	UserID            string      `json:"user_id,omitempty"`
	GuestToken        string      `json:"guest_token,omitempty"`
	PackTier          string      `json:"pack_tier"`
	CalculatedPrice   int64       `json:"calculated_price"`
	OriginalBookPrice int64       `json:"original_book_price"`
	HeroName          string      `json:"hero_name"`
	HeroAge           int         `json:"hero_age"`
	Theme             string      `json:"theme,omitempty"`
	Location          string      `json:"location,omitempty"`
	Message           string      `json:"message,omitempty"`
	Languages         []string    `json:"languages"`
	ValueIDs          []string    `json:"value_ids"`
	ImageRefs         []string    `json:"image_refs,omitempty"`
	Characters        []Character `json:"characters"`
	GeneratedContent  string      `json:"generated_content,omitempty"`
	ReadProgress      int         `json:"read_progress"`
	Status            Status      `json:"status"`
	Payment           Payment     `json:"payment"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Line is one entry of the merged cart view.
type Line struct {
	Kind         RefKind            `json:"kind"`
	Standard     *StandardOrder     `json:"standard,omitempty"`
	Personalized *PersonalizedOrder `json:"personalized,omitempty"`
}

func (l Line) Ref() Ref {
	if l.Kind == RefStandard {
		return Ref{Kind: RefStandard, ID: l.Standard.ID}
	}
	return Ref{Kind: RefPersonalized, ID: l.Personalized.ID}
}
