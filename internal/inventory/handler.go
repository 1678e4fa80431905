package inventory

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/C-W-Wong/omni-erp-sub000/internal/platform/httpx"
)

// Handler exposes stock level, valuation, and plan preview endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventory/levels", h.levels)
	r.Get("/inventory/valuation", h.valuation)
	r.Post("/inventory/allocation-plan", h.plan)
}

func (h *Handler) levels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := LevelFilters{}
	if v := q.Get("product_id"); v != "" {
		id, _ := strconv.ParseInt(v, 10, 64)
		filters.ProductID = &id
	}
	if v := q.Get("warehouse_id"); v != "" {
		id, _ := strconv.ParseInt(v, 10, 64)
		filters.WarehouseID = &id
	}
	filters.Limit, _ = strconv.Atoi(q.Get("limit"))
	filters.Offset, _ = strconv.Atoi(q.Get("offset"))

	levels, total, err := h.service.Levels(r.Context(), filters)
	if err != nil {
		h.logger.Error("list inventory levels", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": levels, "total": total})
}

func (h *Handler) valuation(w http.ResponseWriter, r *http.Request) {
	var warehouseID *int64
	if v := r.URL.Query().Get("warehouse_id"); v != "" {
		id, _ := strconv.ParseInt(v, 10, 64)
		warehouseID = &id
	}
	report, err := h.service.Valuation(r.Context(), warehouseID)
	if err != nil {
		h.logger.Error("stock valuation", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

type planRequest struct {
	ProductID   int64           `json:"product_id"`
	Method      Method          `json:"method"`
	WarehouseID *int64          `json:"warehouse_id,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
}

func (h *Handler) plan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: invalid body", httpx.ErrValidation))
		return
	}
	if req.ProductID <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: product_id is required", httpx.ErrValidation))
		return
	}
	if req.Method == "" {
		req.Method = MethodFIFO
	}
	plan, err := h.service.PlanAllocation(r.Context(), req.ProductID, req.Method, req.WarehouseID, req.Quantity)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	unitCost, totalCost := PlanCost(plan)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"allocations": plan,
		"unit_cost":   unitCost,
		"total_cost":  totalCost,
	})
}
