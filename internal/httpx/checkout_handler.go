package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kibook/order-engine/internal/orders"
)

type checkoutReq struct {
	Refs           []orders.Ref    `json:"refs"`
	PaymentMethod  string          `json:"payment_method"`
	PaymentDetails json.RawMessage `json:"payment_details"`
}

type previewReq struct {
	Refs []orders.Ref `json:"refs"`
}

func (a *API) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	id := identityFrom(ctx)
	res, err := a.Checkout.Checkout(ctx, id, req.Refs, req.PaymentMethod, req.PaymentDetails)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for _, ref := range req.Refs {
		a.cacheStatus(ctx, id.Owner(), ref, orders.StatusCompleted)
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) previewCheckout(w http.ResponseWriter, r *http.Request) {
	var req previewReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	res, err := a.Checkout.PreviewTotal(ctx, identityFrom(ctx), req.Refs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// claimGuestCart re-owns the guest cart named by X-Guest-Token to the
// authenticated caller. Safe to repeat: a second claim finds nothing to move.
func (a *API) claimGuestCart(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.Header.Get("X-Guest-Token"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	moved, err := a.Checkout.MigrateGuest(ctx, identityFrom(ctx), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"moved": moved})
}
