package orders

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/kibook/order-engine/internal/books"
	"github.com/kibook/order-engine/internal/identity"
)

// BookCatalog is the slice of the catalog the cart needs: price lookups at
// order-creation time.
type BookCatalog interface {
	Get(ctx context.Context, id string) (books.Book, error)
}

// CartService merges standard and personalized lines into one cart scoped to
// a single resolved identity. Prices are frozen here, at creation, and never
// recomputed afterwards.
type CartService struct {
	store   Store
	catalog BookCatalog
	log     *zap.Logger
}

func NewCartService(store Store, catalog BookCatalog, log *zap.Logger) *CartService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CartService{store: store, catalog: catalog, log: log}
}

// ListOptions narrows the merged cart view. Zero value = IN_CART, both kinds.
type ListOptions struct {
	AllStatuses bool
	Kind        RefKind // optional filter
}

func (s *CartService) List(ctx context.Context, id identity.Identity, opts ListOptions) ([]Line, error) {
	statuses := []Status{StatusInCart}
	if opts.AllStatuses {
		statuses = nil
	}

	var out []Line
	if opts.Kind == "" || opts.Kind == RefStandard {
		std, err := s.store.ListStandard(ctx, id.Owner(), statuses)
		if err != nil {
			return nil, err
		}
		for i := range std {
			out = append(out, Line{Kind: RefStandard, Standard: &std[i]})
		}
	}
	if opts.Kind == "" || opts.Kind == RefPersonalized {
		pers, err := s.store.ListPersonalized(ctx, id.Owner(), statuses)
		if err != nil {
			return nil, err
		}
		for i := range pers {
			out = append(out, Line{Kind: RefPersonalized, Personalized: &pers[i]})
		}
	}
	return out, nil
}

// AddStandard merges by book id: one line per book per cart. Personalized
// orders never merge; see CreatePersonalized.
func (s *CartService) AddStandard(ctx context.Context, id identity.Identity, bookID string, qty int) (StandardOrder, error) {
	if !id.WriteCapable() {
		return StandardOrder{}, identity.ErrIdentityRequired
	}
	if strings.TrimSpace(bookID) == "" {
		return StandardOrder{}, invalid("bookId", "required")
	}
	if qty < 1 {
		return StandardOrder{}, invalid("quantity", "must be at least 1")
	}
	o, err := s.store.AddOrIncrementStandard(ctx, id.Owner(), bookID, qty)
	if err != nil {
		return StandardOrder{}, err
	}
	s.log.Info("standard line added", zap.String("order_id", o.ID), zap.String("book_id", bookID), zap.Int("quantity", o.Quantity))
	return o, nil
}

type CharacterInput struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	AnimalType   string `json:"animal_type,omitempty"`
	Sex          string `json:"sex,omitempty"`
	AgeBand      string `json:"age_band,omitempty"`
	PhotoURL     string `json:"photo_url,omitempty"`
}

type PersonalizedInput struct {
	BookID     string           `json:"book_id"`
	PackTier   string           `json:"pack_tier"`
	HeroName   string           `json:"hero_name"`
	HeroAge    int              `json:"hero_age"`
	Theme      string           `json:"theme"`
	Location   string           `json:"location"`
	Message    string           `json:"message"`
	Languages  []string         `json:"languages"`
	ValueIDs   []string         `json:"value_ids"`
	ImageRefs  []string         `json:"image_refs"`
	Characters []CharacterInput `json:"characters"`
}

// CreatePersonalized validates the payload against its pack tier, freezes the
// tier price, and persists order plus characters as one unit. Every wizard
// submission is its own line, even for the same book.
func (s *CartService) CreatePersonalized(ctx context.Context, id identity.Identity, in PersonalizedInput) (PersonalizedOrder, error) {
	if !id.WriteCapable() {
		return PersonalizedOrder{}, identity.ErrIdentityRequired
	}
	tier, err := TierByName(in.PackTier)
	if err != nil {
		return PersonalizedOrder{}, err
	}
	price, err := PriceAndValidatePersonalized(tier, len(in.Characters), len(in.Languages), len(in.ValueIDs))
	if err != nil {
		return PersonalizedOrder{}, err
	}
	if strings.TrimSpace(in.HeroName) == "" {
		return PersonalizedOrder{}, invalid("heroName", "required")
	}
	if in.HeroAge < 0 {
		return PersonalizedOrder{}, invalid("heroAge", "must not be negative")
	}
	chars := make([]Character, 0, len(in.Characters))
	for _, c := range in.Characters {
		if strings.TrimSpace(c.Name) == "" {
			return PersonalizedOrder{}, invalid("characters", "character name is required")
		}
		if strings.TrimSpace(c.Relationship) == "" {
			return PersonalizedOrder{}, invalid("characters", "character relationship is required")
		}
		if strings.EqualFold(c.Relationship, "animal") && strings.TrimSpace(c.AnimalType) == "" {
			return PersonalizedOrder{}, invalid("characters", "animal characters need an animal type")
		}
		chars = append(chars, Character{
			Name:         c.Name,
			Relationship: c.Relationship,
			AnimalType:   c.AnimalType,
			Sex:          c.Sex,
			AgeBand:      c.AgeBand,
			PhotoURL:     c.PhotoURL,
		})
	}

	book, err := s.catalog.Get(ctx, in.BookID)
	if err != nil {
		if errors.Is(err, books.ErrNotFound) {
			return PersonalizedOrder{}, invalid("bookId", "unknown book")
		}
		return PersonalizedOrder{}, err
	}

	owner := id.Owner()
	o := PersonalizedOrder{
		BookID:            book.ID,
		UserID:            owner.UserID,
		GuestToken:        owner.GuestToken,
		PackTier:          tier.Name,
		CalculatedPrice:   price,
		OriginalBookPrice: book.BasePrice,
		HeroName:          in.HeroName,
		HeroAge:           in.HeroAge,
		Theme:             in.Theme,
		Location:          in.Location,
		Message:           in.Message,
		Languages:         in.Languages,
		ValueIDs:          in.ValueIDs,
		ImageRefs:         in.ImageRefs,
		Characters:        chars,
	}
	created, err := s.store.CreatePersonalized(ctx, o)
	if err != nil {
		return PersonalizedOrder{}, err
	}
	s.log.Info("personalized line created",
		zap.String("order_id", created.ID), zap.String("book_id", book.ID),
		zap.String("pack_tier", tier.Name), zap.Int64("calculated_price", price))
	return created, nil
}

func (s *CartService) UpdateStandardQuantity(ctx context.Context, id identity.Identity, bookID string, qty int) (StandardOrder, error) {
	if !id.WriteCapable() {
		return StandardOrder{}, identity.ErrIdentityRequired
	}
	if qty < 1 {
		return StandardOrder{}, invalid("quantity", "must be at least 1")
	}
	return s.store.SetStandardQuantity(ctx, id.Owner(), bookID, qty)
}

func (s *CartService) Remove(ctx context.Context, id identity.Identity, ref Ref) error {
	if !id.WriteCapable() {
		return identity.ErrIdentityRequired
	}
	if !ref.Kind.Valid() || ref.ID == "" {
		return invalid("ref", "kind and id are required")
	}
	if ref.Kind == RefStandard {
		return s.store.DeleteStandard(ctx, id.Owner(), ref.ID)
	}
	return s.store.DeletePersonalized(ctx, id.Owner(), ref.ID)
}

type ClearFailure struct {
	Ref    Ref    `json:"ref"`
	Reason string `json:"reason"`
}

// ClearResult tells the caller exactly which lines went and which did not;
// one failed deletion never silently drops the rest.
type ClearResult struct {
	Removed []Ref          `json:"removed"`
	Failed  []ClearFailure `json:"failed,omitempty"`
}

func (s *CartService) Clear(ctx context.Context, id identity.Identity) (ClearResult, error) {
	if !id.WriteCapable() {
		return ClearResult{}, identity.ErrIdentityRequired
	}
	lines, err := s.List(ctx, id, ListOptions{})
	if err != nil {
		return ClearResult{}, err
	}

	var res ClearResult
	for _, line := range lines {
		ref := line.Ref()
		if err := s.Remove(ctx, id, ref); err != nil {
			res.Failed = append(res.Failed, ClearFailure{Ref: ref, Reason: err.Error()})
			continue
		}
		res.Removed = append(res.Removed, ref)
	}
	if len(res.Failed) > 0 {
		s.log.Warn("cart clear left lines behind", zap.Int("failed", len(res.Failed)))
	}
	return res, nil
}

// BeginCheckout moves one line to PENDING. No price recomputation happens.
func (s *CartService) BeginCheckout(ctx context.Context, id identity.Identity, ref Ref) error {
	if !id.WriteCapable() {
		return identity.ErrIdentityRequired
	}
	if !ref.Kind.Valid() || ref.ID == "" {
		return invalid("ref", "kind and id are required")
	}
	return s.store.Transition(ctx, id.Owner(), ref, StatusPending)
}

// Cancel abandons an open line.
func (s *CartService) Cancel(ctx context.Context, id identity.Identity, ref Ref) error {
	if !id.WriteCapable() {
		return identity.ErrIdentityRequired
	}
	if !ref.Kind.Valid() || ref.ID == "" {
		return invalid("ref", "kind and id are required")
	}
	return s.store.Transition(ctx, id.Owner(), ref, StatusCancelled)
}

// UpdateReadProgress is the post-purchase write COMPLETED orders still allow.
func (s *CartService) UpdateReadProgress(ctx context.Context, id identity.Identity, orderID string, progress int) error {
	if !id.WriteCapable() {
		return identity.ErrIdentityRequired
	}
	if progress < 0 || progress > 100 {
		return invalid("readProgress", "must be between 0 and 100")
	}
	return s.store.SetReadProgress(ctx, id.Owner(), orderID, progress)
}

// GetPersonalized returns one order with its characters, whatever its status.
func (s *CartService) GetPersonalized(ctx context.Context, id identity.Identity, orderID string) (PersonalizedOrder, error) {
	if orderID == "" {
		return PersonalizedOrder{}, invalid("id", "required")
	}
	return s.store.GetPersonalized(ctx, id.Owner(), orderID)
}

func (s *CartService) Status(ctx context.Context, id identity.Identity, ref Ref) (Status, error) {
	if !ref.Kind.Valid() || ref.ID == "" {
		return "", invalid("ref", "kind and id are required")
	}
	return s.store.GetStatus(ctx, id.Owner(), ref)
}
