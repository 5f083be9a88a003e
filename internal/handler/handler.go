// Package handler exposes the discount engine over HTTP. It owns only the
// transport mapping; evaluation semantics live in the domain package.
package handler

import (
	"context"
	"net/http"

	"github.com/openmerce/promo-engine/internal/domain/discount"
)

// Evaluator is the engine contract the handler depends on.
type Evaluator interface {
	Evaluate(ctx context.Context, ec *discount.EvaluationContext, redeem bool) (*discount.EvaluationResult, error)
}

// Handler serves the cart evaluation endpoints.
type Handler struct {
	engine Evaluator
}

// NewHandler constructs a Handler over the given engine.
func NewHandler(engine Evaluator) *Handler {
	return &Handler{engine: engine}
}

// Register mounts the API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/cart/preview", h.preview)
	mux.HandleFunc("POST /api/cart/checkout", h.checkout)
}

// preview is the side-effect-free evaluation: safe to call repeatedly, never
// consumes coupon uses.
func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	h.evaluate(w, r, false)
}

// checkout is the redeeming evaluation: called once per order placement, it
// consumes one use of the supplied coupon code.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	h.evaluate(w, r, true)
}
