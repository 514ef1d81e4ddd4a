package orders

import (
	"encoding/json"
	"time"
)

const (
	EventCheckoutCompleted = "CheckoutCompleted"
	EventContentGenerated  = "ContentGenerated"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type CharacterSnapshot struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	AnimalType   string `json:"animal_type,omitempty"`
}

// PersonalizedSnapshot carries everything the content generator needs, so the
// worker never has to re-read the order to build its prompt.
type PersonalizedSnapshot struct {
	OrderID    string              `json:"order_id"`
	BookID     string              `json:"book_id"`
	PackTier   string              `json:"pack_tier"`
	HeroName   string              `json:"hero_name"`
	HeroAge    int                 `json:"hero_age"`
	Theme      string              `json:"theme,omitempty"`
	Location   string              `json:"location,omitempty"`
	Message    string              `json:"message,omitempty"`
	Languages  []string            `json:"languages"`
	ValueIDs   []string            `json:"value_ids"`
	Characters []CharacterSnapshot `json:"characters"`
}

type CheckoutCompletedPayload struct {
	UserID        string                 `json:"user_id,omitempty"`
	GuestToken    string                 `json:"guest_token,omitempty"`
	Refs          []Ref                  `json:"refs"`
	PaymentMethod string                 `json:"payment_method"`
	TotalPrice    int64                  `json:"total_price"`
	Personalized  []PersonalizedSnapshot `json:"personalized,omitempty"`
}

type ContentGeneratedPayload struct {
	OrderID      string `json:"order_id"`
	ContentChars int    `json:"content_chars"`
}

func SnapshotOf(o PersonalizedOrder) PersonalizedSnapshot {
	chars := make([]CharacterSnapshot, 0, len(o.Characters))
	for _, c := range o.Characters {
		chars = append(chars, CharacterSnapshot{Name: c.Name, Relationship: c.Relationship, AnimalType: c.AnimalType})
	}
	return PersonalizedSnapshot{
		OrderID:    o.ID,
		BookID:     o.BookID,
		PackTier:   o.PackTier,
		HeroName:   o.HeroName,
		HeroAge:    o.HeroAge,
		Theme:      o.Theme,
		Location:   o.Location,
		Message:    o.Message,
		Languages:  o.Languages,
		ValueIDs:   o.ValueIDs,
		Characters: chars,
	}
}
