package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/tortilleria/promo-service/internal/domain/discount"
)

// Evaluate computes the discounts for an order snapshot. The call is
// read-only: no usage is consumed and repeated calls return the same result.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, r, http.StatusBadRequest, "items required")
		return
	}
	for _, item := range req.Items {
		if item.SKU == "" || item.Quantity <= 0 || item.UnitPrice < 0 {
			respondError(w, r, http.StatusUnprocessableEntity, "invalid line item")
			return
		}
	}

	res, err := h.discounts.Evaluate(r.Context(), req.toOrder())
	if err != nil {
		zctx.From(r.Context()).Error("Evaluating discounts", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, r, http.StatusOK, toEvaluateResponse(res))
}

// Redeem records a successful application of a code to a completed order.
// The order pipeline calls this once per applied code after payment.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.discounts.Redeem(r.Context(), discount.UsageRecord{
		Code:            req.Code,
		Email:           req.Email,
		OrderID:         req.OrderID,
		OrderNumber:     req.OrderNumber,
		Subtotal:        req.Subtotal,
		DiscountApplied: req.DiscountApplied,
	})
	if err != nil {
		switch {
		case errors.Is(err, discount.ErrEmptyCode), errors.Is(err, discount.ErrEmptyEmail):
			respondError(w, r, http.StatusUnprocessableEntity, err.Error())
		default:
			zctx.From(r.Context()).Error("Recording redemption", zap.Error(err))
			respondError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
