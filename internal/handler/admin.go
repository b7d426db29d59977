package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/tortilleria/promo-service/internal/domain/discount"
)

// CreateDefinition stores a new discount definition. Validation failures are
// reported as 422 with the specific constraint that failed.
func (h *Handler) CreateDefinition(w http.ResponseWriter, r *http.Request) {
	var dto definitionDTO
	if err := decodeJSON(r, &dto); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	def, err := dto.toDefinition()
	if err != nil {
		respondError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	def.CreatedAt = time.Now().UTC()

	if err := discount.Validate(def); err != nil {
		respondError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.defs.Create(r.Context(), def); err != nil {
		zctx.From(r.Context()).Error("Creating definition", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	respondJSON(w, r, http.StatusCreated, toDefinitionDTO(def))
}

// ListDefinitions returns a filtered page of definitions. Query parameters:
// source, active, include_expired, limit, offset.
func (h *Handler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := discount.ListFilter{
		Source:         discount.Source(q.Get("source")),
		IncludeExpired: q.Get("include_expired") == "true",
		Limit:          intParam(q.Get("limit"), 50),
		Offset:         intParam(q.Get("offset"), 0),
	}
	if v := q.Get("active"); v != "" {
		active := v == "true"
		filter.IsActive = &active
	}

	defs, total, err := h.defs.List(r.Context(), filter)
	if err != nil {
		zctx.From(r.Context()).Error("Listing definitions", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	resp := listResponse{Items: make([]definitionDTO, len(defs)), Total: total}
	for i := range defs {
		resp.Items[i] = toDefinitionDTO(&defs[i])
	}
	respondJSON(w, r, http.StatusOK, resp)
}

// GetDefinition returns one definition by code.
func (h *Handler) GetDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := h.defs.FindByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		h.respondRepoError(w, r, err, "Fetching definition")
		return
	}

	respondJSON(w, r, http.StatusOK, toDefinitionDTO(def))
}

// UpdateDefinition replaces the mutable fields of an existing definition.
// The code in the path wins over any code in the body.
func (h *Handler) UpdateDefinition(w http.ResponseWriter, r *http.Request) {
	var dto definitionDTO
	if err := decodeJSON(r, &dto); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	dto.Code = r.PathValue("code")

	def, err := dto.toDefinition()
	if err != nil {
		respondError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := discount.Validate(def); err != nil {
		respondError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.defs.Update(r.Context(), def); err != nil {
		h.respondRepoError(w, r, err, "Updating definition")
		return
	}

	respondJSON(w, r, http.StatusOK, toDefinitionDTO(def))
}

// DeleteDefinition removes a definition and its usage history.
func (h *Handler) DeleteDefinition(w http.ResponseWriter, r *http.Request) {
	if err := h.defs.Delete(r.Context(), r.PathValue("code")); err != nil {
		h.respondRepoError(w, r, err, "Deleting definition")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DefinitionStats returns aggregate redemption stats for one code.
func (h *Handler) DefinitionStats(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	// 404 for unknown codes rather than empty stats.
	if _, err := h.defs.FindByCode(r.Context(), code); err != nil {
		h.respondRepoError(w, r, err, "Fetching definition")
		return
	}

	stats, err := h.usage.Stats(r.Context(), code)
	if err != nil {
		zctx.From(r.Context()).Error("Fetching usage stats", zap.Error(err))
		respondError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	resp := statsResponse{
		Code:               discount.NormalizeCode(code),
		TotalUses:          stats.TotalUses,
		UniqueEmails:       stats.UniqueEmails,
		TotalDiscountGiven: stats.TotalDiscountGiven,
		Recent:             make([]usageRecordDTO, len(stats.Recent)),
	}
	for i, rec := range stats.Recent {
		resp.Recent[i] = usageRecordDTO{
			ID:              rec.ID,
			Code:            rec.Code,
			Email:           rec.Email,
			OrderID:         rec.OrderID,
			OrderNumber:     rec.OrderNumber,
			Subtotal:        rec.Subtotal,
			DiscountApplied: rec.DiscountApplied,
			UsedAt:          rec.UsedAt,
		}
	}
	respondJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) respondRepoError(w http.ResponseWriter, r *http.Request, err error, action string) {
	if errors.Is(err, discount.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "discount code not found")
		return
	}
	zctx.From(r.Context()).Error(action, zap.Error(err))
	respondError(w, r, http.StatusInternalServerError, "internal error")
}

func intParam(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
