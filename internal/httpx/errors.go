package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/kibook/order-engine/internal/books"
	"github.com/kibook/order-engine/internal/identity"
	"github.com/kibook/order-engine/internal/orders"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the engine's error taxonomy onto the canonical JSON error
// envelope. Each taxon keeps a distinct code so the UI can branch: stale cart
// refs, retryable bookkeeping failure, and pack-limit violations all read
// differently to a shopper.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := "internal"
	message := "internal error"
	status := http.StatusInternalServerError
	details := map[string]any{}

	var ve *orders.ValidationError
	var rce *orders.RefCountError
	switch {
	case errors.Is(err, identity.ErrIdentityRequired):
		code, message, status = "identity_required", "no resolvable identity for this operation", http.StatusUnauthorized
	case errors.As(err, &ve):
		code, message, status = "validation_failed", ve.Reason, http.StatusUnprocessableEntity
		details["field"] = ve.Field
	case errors.As(err, &rce):
		code, message, status = "invalid_order_references", "some referenced orders are no longer available", http.StatusConflict
		details["kind"] = rce.Kind
		details["requested"] = rce.Requested
		details["found"] = rce.Found
	case errors.Is(err, orders.ErrNotFound), errors.Is(err, books.ErrNotFound):
		code, message, status = "not_found", "not found", http.StatusNotFound
	case errors.Is(err, orders.ErrAlreadyFinalized):
		code, message, status = "already_finalized", "order is already completed or cancelled", http.StatusConflict
	case errors.Is(err, orders.ErrTransactionFailed):
		code, message, status = "transaction_failed", "checkout could not commit; retry with the same references", http.StatusServiceUnavailable
	case errors.Is(err, orders.ErrValidation):
		code, message, status = "validation_failed", err.Error(), http.StatusUnprocessableEntity
	}

	payload := map[string]any{
		"error":   code,
		"message": message,
		"status":  status,
	}
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		payload["request_id"] = reqID
	}
	for k, v := range details {
		payload[k] = v
	}
	writeJSON(w, status, payload)
}
