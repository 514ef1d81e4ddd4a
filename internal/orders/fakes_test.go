package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/kibook/order-engine/internal/books"
	"github.com/kibook/order-engine/internal/identity"
)

// memStore is an in-memory Store with the same ownership, merge, and
// count-match semantics as the pgx repo.
type memStore struct {
	mu     sync.Mutex
	seq    int
	clock  time.Time
	prices map[string]int64
	std    map[string]*StandardOrder
	pers   map[string]*PersonalizedOrder

	failDelete      map[string]error // order id -> injected delete failure
	failCompleteAll error
}

func newMemStore() *memStore {
	return &memStore{
		clock:      time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC),
		prices:     map[string]int64{},
		std:        map[string]*StandardOrder{},
		pers:       map[string]*PersonalizedOrder{},
		failDelete: map[string]error{},
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%04d", prefix, m.seq)
}

func ownedBy(userID, guestToken string, owner identity.Owner) bool {
	if owner.UserID != "" {
		return userID == owner.UserID
	}
	return guestToken != "" && guestToken == owner.GuestToken
}

func statusIn(s Status, statuses []Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, want := range statuses {
		if s == want {
			return true
		}
	}
	return false
}

func (m *memStore) AddOrIncrementStandard(_ context.Context, owner identity.Owner, bookID string, qty int) (StandardOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	price, ok := m.prices[bookID]
	if !ok {
		return StandardOrder{}, invalid("bookId", "unknown book")
	}
	for _, o := range m.std {
		if o.BookID == bookID && o.Status == StatusInCart && ownedBy(o.UserID, o.GuestToken, owner) {
			o.Quantity += qty
			o.UpdatedAt = m.tick()
			return *o, nil
		}
	}
	now := m.tick()
	o := &StandardOrder{
		ID:         m.nextID("std"),
		BookID:     bookID,
		Quantity:   qty,
		UserID:     owner.UserID,
		GuestToken: owner.GuestToken,
		UnitPrice:  price,
		Status:     StatusInCart,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.std[o.ID] = o
	return *o, nil
}

func (m *memStore) SetStandardQuantity(_ context.Context, owner identity.Owner, bookID string, qty int) (StandardOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.std {
		if o.BookID == bookID && o.Status == StatusInCart && ownedBy(o.UserID, o.GuestToken, owner) {
			o.Quantity = qty
			o.UpdatedAt = m.tick()
			return *o, nil
		}
	}
	return StandardOrder{}, ErrNotFound
}

func (m *memStore) DeleteStandard(_ context.Context, owner identity.Owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failDelete[id]; ok {
		return err
	}
	o, ok := m.std[id]
	if !ok || !ownedBy(o.UserID, o.GuestToken, owner) {
		return ErrNotFound
	}
	if o.Status.Terminal() {
		return ErrAlreadyFinalized
	}
	if o.Status != StatusInCart {
		return ErrNotFound
	}
	delete(m.std, id)
	return nil
}

func (m *memStore) ListStandard(_ context.Context, owner identity.Owner, statuses []Status) ([]StandardOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []StandardOrder
	for _, o := range m.std {
		if ownedBy(o.UserID, o.GuestToken, owner) && statusIn(o.Status, statuses) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) CreatePersonalized(_ context.Context, o PersonalizedOrder) (PersonalizedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.tick()
	o.ID = m.nextID("pers")
	o.Status = StatusInCart
	o.CreatedAt = now
	o.UpdatedAt = now
	for i := range o.Characters {
		o.Characters[i].ID = m.nextID("char")
		o.Characters[i].OrderID = o.ID
	}
	cp := o
	m.pers[o.ID] = &cp
	return o, nil
}

func (m *memStore) DeletePersonalized(_ context.Context, owner identity.Owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failDelete[id]; ok {
		return err
	}
	o, ok := m.pers[id]
	if !ok || !ownedBy(o.UserID, o.GuestToken, owner) {
		return ErrNotFound
	}
	if o.Status.Terminal() {
		return ErrAlreadyFinalized
	}
	if o.Status != StatusInCart {
		return ErrNotFound
	}
	delete(m.pers, id)
	return nil
}

func (m *memStore) ListPersonalized(_ context.Context, owner identity.Owner, statuses []Status) ([]PersonalizedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []PersonalizedOrder
	for _, o := range m.pers {
		if ownedBy(o.UserID, o.GuestToken, owner) && statusIn(o.Status, statuses) {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) GetPersonalized(_ context.Context, owner identity.Owner, id string) (PersonalizedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.pers[id]
	if !ok || !ownedBy(o.UserID, o.GuestToken, owner) {
		return PersonalizedOrder{}, ErrNotFound
	}
	return *o, nil
}

func (m *memStore) SetReadProgress(_ context.Context, owner identity.Owner, id string, progress int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.pers[id]
	if !ok || !ownedBy(o.UserID, o.GuestToken, owner) {
		return ErrNotFound
	}
	if o.Status != StatusCompleted {
		return invalid("readProgress", "order is not completed")
	}
	o.ReadProgress = progress
	o.UpdatedAt = m.tick()
	return nil
}

func (m *memStore) status(owner identity.Owner, ref Ref) (Status, error) {
	if ref.Kind == RefStandard {
		if o, ok := m.std[ref.ID]; ok && ownedBy(o.UserID, o.GuestToken, owner) {
			return o.Status, nil
		}
		return "", ErrNotFound
	}
	if o, ok := m.pers[ref.ID]; ok && ownedBy(o.UserID, o.GuestToken, owner) {
		return o.Status, nil
	}
	return "", ErrNotFound
}

func (m *memStore) setStatus(ref Ref, to Status) {
	if ref.Kind == RefStandard {
		m.std[ref.ID].Status = to
		m.std[ref.ID].UpdatedAt = m.tick()
		return
	}
	m.pers[ref.ID].Status = to
	m.pers[ref.ID].UpdatedAt = m.tick()
}

func (m *memStore) GetStatus(_ context.Context, owner identity.Owner, ref Ref) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status(owner, ref)
}

func (m *memStore) Transition(_ context.Context, owner identity.Owner, ref Ref, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, err := m.status(owner, ref)
	if err != nil {
		return err
	}
	if CanTransition(current, to) {
		m.setStatus(ref, to)
		return nil
	}
	if current == to {
		return nil
	}
	return ErrAlreadyFinalized
}

func (m *memStore) fetchOpen(owner identity.Owner, refs []Ref) ([]StandardOrder, []PersonalizedOrder, error) {
	var stdRefs, persRefs int
	var std []StandardOrder
	var pers []PersonalizedOrder
	for _, ref := range refs {
		if ref.Kind == RefStandard {
			stdRefs++
			if o, ok := m.std[ref.ID]; ok && ownedBy(o.UserID, o.GuestToken, owner) && !o.Status.Terminal() {
				std = append(std, *o)
			}
			continue
		}
		persRefs++
		if o, ok := m.pers[ref.ID]; ok && ownedBy(o.UserID, o.GuestToken, owner) && !o.Status.Terminal() {
			pers = append(pers, *o)
		}
	}
	if len(std) != stdRefs {
		return nil, nil, &RefCountError{Kind: RefStandard, Requested: stdRefs, Found: len(std)}
	}
	if len(pers) != persRefs {
		return nil, nil, &RefCountError{Kind: RefPersonalized, Requested: persRefs, Found: len(pers)}
	}
	return std, pers, nil
}

func (m *memStore) FetchOpen(_ context.Context, owner identity.Owner, refs []Ref) ([]StandardOrder, []PersonalizedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchOpen(owner, refs)
}

func (m *memStore) CompleteAll(_ context.Context, owner identity.Owner, refs []Ref, method string, details []byte, paidAt time.Time) ([]StandardOrder, []PersonalizedOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failCompleteAll != nil {
		return nil, nil, m.failCompleteAll
	}
	std, pers, err := m.fetchOpen(owner, refs)
	if err != nil {
		return nil, nil, err
	}
	pay := Payment{Method: method, Details: details, PaidAt: &paidAt}
	for i := range std {
		row := m.std[std[i].ID]
		row.Status = StatusCompleted
		row.Payment = pay
		row.UpdatedAt = m.tick()
		std[i] = *row
	}
	for i := range pers {
		row := m.pers[pers[i].ID]
		row.Status = StatusCompleted
		row.Payment = pay
		row.ReadProgress = 0
		row.UpdatedAt = m.tick()
		pers[i] = *row
	}
	return std, pers, nil
}

func (m *memStore) MigrateGuest(_ context.Context, guestToken, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var moved int64
	for id, g := range m.std {
		if g.GuestToken != guestToken || g.Status.Terminal() {
			continue
		}
		if g.Status == StatusInCart {
			merged := false
			for _, u := range m.std {
				if u.UserID == userID && u.Status == StatusInCart && u.BookID == g.BookID {
					u.Quantity += g.Quantity
					u.UpdatedAt = m.tick()
					delete(m.std, id)
					moved++
					merged = true
					break
				}
			}
			if merged {
				continue
			}
		}
		g.UserID = userID
		g.GuestToken = ""
		g.UpdatedAt = m.tick()
		moved++
	}
	for _, o := range m.pers {
		if o.GuestToken == guestToken && !o.Status.Terminal() {
			o.UserID = userID
			o.GuestToken = ""
			o.UpdatedAt = m.tick()
			moved++
		}
	}
	return moved, nil
}

var _ Store = (*memStore)(nil)

type fakeCatalog struct {
	books map[string]books.Book
}

func (c *fakeCatalog) Get(_ context.Context, id string) (books.Book, error) {
	b, ok := c.books[id]
	if !ok {
		return books.Book{}, books.ErrNotFound
	}
	return b, nil
}

type publishedMsg struct {
	key     []byte
	value   []byte
	headers []kafkago.Header
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []publishedMsg
}

func (p *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, publishedMsg{key: key, value: value, headers: headers})
}

func (p *fakePublisher) all() []publishedMsg {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedMsg(nil), p.messages...)
}

func testFixture() (*memStore, *CartService, *CheckoutService, *fakePublisher) {
	st := newMemStore()
	st.prices["bk-dragon"] = 5000
	st.prices["bk-ocean"] = 7500
	cat := &fakeCatalog{books: map[string]books.Book{
		"bk-dragon": {ID: "bk-dragon", Title: "The Dragon Next Door", BasePrice: 5000},
		"bk-ocean":  {ID: "bk-ocean", Title: "Under the Ocean", BasePrice: 7500},
	}}
	pub := &fakePublisher{}
	cart := NewCartService(st, cat, zap.NewNop())
	checkout := NewCheckoutService(st, pub, "order-engine-test", zap.NewNop())
	return st, cart, checkout, pub
}

func basicInput(bookID string) PersonalizedInput {
	return PersonalizedInput{
		BookID:     bookID,
		PackTier:   TierBasic,
		HeroName:   "Mia",
		HeroAge:    5,
		Theme:      "space",
		Languages:  []string{"en"},
		ValueIDs:   []string{"courage"},
		Characters: []CharacterInput{{Name: "Mia", Relationship: "self"}},
	}
}

func prestigeInput(bookID string) PersonalizedInput {
	return PersonalizedInput{
		BookID:   bookID,
		PackTier: TierPrestige,
		HeroName: "Noah",
		HeroAge:  7,
		Theme:    "pirates",
		Location: "Lisbon",
		Languages: []string{
			"en", "pt",
		},
		ValueIDs: []string{"honesty", "patience"},
		Characters: []CharacterInput{
			{Name: "Noah", Relationship: "self"},
			{Name: "Ana", Relationship: "mother"},
			{Name: "Rui", Relationship: "father"},
			{Name: "Ben", Relationship: "brother"},
			{Name: "Rex", Relationship: "animal", AnimalType: "dog"},
		},
	}
}
