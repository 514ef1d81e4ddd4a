package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kibook/order-engine/internal/books"
	"github.com/kibook/order-engine/internal/identity"
	"github.com/kibook/order-engine/internal/orders"
	"github.com/kibook/order-engine/internal/redisx"
)

// Catalog is the read surface the API exposes from the book catalog.
type Catalog interface {
	List(ctx context.Context) ([]books.Book, error)
}

type API struct {
	Cart     *orders.CartService
	Checkout *orders.CheckoutService
	Books    Catalog
	Resolver IdentityResolver
	Redis    *redis.Client // nil disables the status cache
	Log      *zap.Logger
}

func (a *API) Register(r *chi.Mux) {
	r.Get("/books", a.listBooks)
	r.Get("/packs", a.listPacks)

	r.Group(func(g chi.Router) {
		g.Use(requireIdentity(a.Resolver))
		g.Get("/cart", a.listCart)
		g.Post("/cart/standard", a.addStandard)
		g.Patch("/cart/standard/{bookID}", a.updateQuantity)
		g.Post("/cart/personalized", a.createPersonalized)
		g.Delete("/cart/{kind}/{id}", a.removeLine)
		g.Delete("/cart", a.clearCart)
		g.Post("/cart/claim", a.claimGuestCart)
		g.Get("/orders/{kind}/{id}/status", a.orderStatus)
		g.Get("/orders/personalized/{id}", a.getPersonalized)
		g.Post("/orders/{kind}/{id}/checkout", a.beginCheckout)
		g.Post("/orders/{kind}/{id}/cancel", a.cancelOrder)
		g.Patch("/orders/{kind}/{id}/progress", a.updateProgress)
		g.Post("/checkout", a.checkout)
		g.Post("/checkout/preview", a.previewCheckout)
	})
}

func kindParam(r *http.Request) (orders.RefKind, error) {
	switch strings.ToLower(chi.URLParam(r, "kind")) {
	case "standard":
		return orders.RefStandard, nil
	case "personalized":
		return orders.RefPersonalized, nil
	}
	return "", &orders.ValidationError{Field: "kind", Reason: "must be standard or personalized"}
}

func (a *API) listBooks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	bs, err := a.Books.List(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"books": bs})
}

func (a *API) listPacks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"packs": orders.Tiers()})
}

func (a *API) orderStatus(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ref := orders.Ref{Kind: kind, ID: chi.URLParam(r, "id")}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	id := identityFrom(ctx)

	// cache first, DB is the truth. The key carries the owner, so a cache
	// warmed by the owner never answers for anyone else.
	if a.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, id.Owner().Key(), ref.Kind, ref.ID)
		if s, err := a.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	status, err := a.Cart.Status(ctx, id, ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.cacheStatus(ctx, id.Owner(), ref, status)
	writeJSON(w, http.StatusOK, map[string]any{"status": status})
}

// getPersonalized returns the full order, characters and generated content
// included. This is where a buyer reads their finished book.
func (a *API) getPersonalized(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := a.Cart.GetPersonalized(ctx, identityFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders.Line{Kind: orders.RefPersonalized, Personalized: &o})
}

func (a *API) cacheStatus(ctx context.Context, owner identity.Owner, ref orders.Ref, status orders.Status) {
	if a.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, owner.Key(), ref.Kind, ref.ID)
	b, _ := json.Marshal(map[string]any{"status": status})
	_ = a.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
}
