// Package handler exposes the discount engine over HTTP: a public evaluation
// endpoint for the storefront checkout, a redemption hook for the order
// pipeline, and an authenticated admin CRUD surface.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/tortilleria/promo-service/internal/domain/discount"
)

// Handler holds the dependencies shared by all HTTP endpoints.
type Handler struct {
	discounts *discount.Service
	defs      discount.DefinitionRepository
	usage     discount.UsageRepository
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(discounts *discount.Service, defs discount.DefinitionRepository, usage discount.UsageRepository) *Handler {
	return &Handler{
		discounts: discounts,
		defs:      defs,
		usage:     usage,
	}
}

// Register mounts all routes on the mux. Admin routes are wrapped with the
// given security middleware.
func (h *Handler) Register(mux *http.ServeMux, sec *Security) {
	mux.HandleFunc("POST /api/discounts/evaluate", h.Evaluate)
	mux.HandleFunc("POST /api/discounts/redeem", h.Redeem)

	admin := func(fn http.HandlerFunc) http.Handler { return sec.Require(fn) }
	mux.Handle("POST /api/admin/discounts", admin(h.CreateDefinition))
	mux.Handle("GET /api/admin/discounts", admin(h.ListDefinitions))
	mux.Handle("GET /api/admin/discounts/{code}", admin(h.GetDefinition))
	mux.Handle("PUT /api/admin/discounts/{code}", admin(h.UpdateDefinition))
	mux.Handle("DELETE /api/admin/discounts/{code}", admin(h.DeleteDefinition))
	mux.Handle("GET /api/admin/discounts/{code}/stats", admin(h.DefinitionStats))
}

// errorResponse is the uniform JSON error body.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zctx.From(r.Context()).Error("Encoding response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	respondJSON(w, r, status, errorResponse{Code: status, Message: message})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
