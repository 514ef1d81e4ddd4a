package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kibook/order-engine/internal/identity"
	"github.com/kibook/order-engine/internal/orders"
)

type addStandardReq struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
}

type updateQuantityReq struct {
	Quantity int `json:"quantity"`
}

func (a *API) listCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	opts := orders.ListOptions{}
	if r.URL.Query().Get("status") == "all" {
		opts.AllStatuses = true
	}
	switch strings.ToLower(r.URL.Query().Get("kind")) {
	case "standard":
		opts.Kind = orders.RefStandard
	case "personalized":
		opts.Kind = orders.RefPersonalized
	}

	lines, err := a.Cart.List(ctx, identityFrom(ctx), opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines": lines})
}

func (a *API) addStandard(w http.ResponseWriter, r *http.Request) {
	var req addStandardReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := a.Cart.AddStandard(ctx, identityFrom(ctx), req.BookID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders.Line{Kind: orders.RefStandard, Standard: &o})
}

func (a *API) updateQuantity(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := a.Cart.UpdateStandardQuantity(ctx, identityFrom(ctx), chi.URLParam(r, "bookID"), req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orders.Line{Kind: orders.RefStandard, Standard: &o})
}

func (a *API) createPersonalized(w http.ResponseWriter, r *http.Request) {
	var in orders.PersonalizedInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := a.Cart.CreatePersonalized(ctx, identityFrom(ctx), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, orders.Line{Kind: orders.RefPersonalized, Personalized: &o})
}

func (a *API) removeLine(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ref := orders.Ref{Kind: kind, ID: chi.URLParam(r, "id")}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := a.Cart.Remove(ctx, identityFrom(ctx), ref); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": 1, "ref": ref})
}

func (a *API) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := a.Cart.Clear(ctx, identityFrom(ctx))
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusOK
	if len(res.Failed) > 0 {
		code = http.StatusMultiStatus
	}
	writeJSON(w, code, res)
}

func (a *API) beginCheckout(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, (*orders.CartService).BeginCheckout, orders.StatusPending)
}

func (a *API) cancelOrder(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, (*orders.CartService).Cancel, orders.StatusCancelled)
}

func (a *API) transition(w http.ResponseWriter, r *http.Request,
	move func(*orders.CartService, context.Context, identity.Identity, orders.Ref) error, to orders.Status) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ref := orders.Ref{Kind: kind, ID: chi.URLParam(r, "id")}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := identityFrom(ctx)
	if err := move(a.Cart, ctx, id, ref); err != nil {
		writeError(w, r, err)
		return
	}
	a.cacheStatus(ctx, id.Owner(), ref, to)
	writeJSON(w, http.StatusOK, map[string]any{"ref": ref, "status": to})
}

type progressReq struct {
	Progress int `json:"progress"`
}

func (a *API) updateProgress(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if kind != orders.RefPersonalized {
		writeError(w, r, &orders.ValidationError{Field: "kind", Reason: "read progress applies to personalized orders"})
		return
	}
	var req progressReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := a.Cart.UpdateReadProgress(ctx, identityFrom(ctx), chi.URLParam(r, "id"), req.Progress); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"read_progress": req.Progress})
}
