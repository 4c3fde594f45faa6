package purchase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/karibu-erp/karibu-erp/internal/money"
	"github.com/karibu-erp/karibu-erp/internal/platform/httpx"
	"github.com/karibu-erp/karibu-erp/internal/shared"
)

// Handler manages purchase order endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock", h.handleStock)
	r.Get("/orders", h.handleList)
	r.Get("/orders/{id}", h.handleGet)
	r.Post("/orders", h.handleCommit)
	r.Patch("/orders/{id}/items/{itemID}", h.handleUpdateItemQuantity)
	r.Post("/orders/{id}/approve", h.handleApprove)
	r.Post("/orders/{id}/confirm", h.handleConfirm)
	r.Post("/orders/{id}/ship", h.handleShip)
	r.Post("/orders/{id}/shipped", h.handleMarkShipped)
	r.Post("/orders/{id}/shipping-info", h.handleAssignShipping)
	r.Post("/orders/{id}/receive", h.handleReceive)
	r.Post("/orders/{id}/cancel", h.handleCancel)
}

// handleStock looks up on-hand stock for a cart line.
func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	productID := r.URL.Query().Get("product_id")
	if productID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "product_id is required")
		return
	}
	variantID := r.URL.Query().Get("variant_id")
	quantity, err := h.service.CurrentStock(r.Context(), productID, variantID)
	if err != nil {
		h.logger.Error("stock lookup", slog.Any("error", err), slog.String("product_id", productID))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id": productID,
		"variant_id": variantID,
		"quantity":   quantity,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	supplierID, _ := strconv.ParseInt(r.URL.Query().Get("supplier_id"), 10, 64)
	status := r.URL.Query().Get("status")
	if status != "" && !OrderStatus(status).IsValid() {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "unknown status filter")
		return
	}
	filters := ListFilters{
		Status:     status,
		SupplierID: supplierID,
		Search:     r.URL.Query().Get("search"),
	}
	orders, total, err := h.service.ListOrders(r.Context(), limit, offset, filters)
	if err != nil {
		h.logger.Error("list orders", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	items := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		items = append(items, toOrderResponse(order))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": items, "total": total})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, "get order", id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) handleCommit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	cart, err := req.toCart()
	if err != nil {
		h.respondError(w, "commit order", 0, err)
		return
	}
	order, err := h.service.Commit(r.Context(), cart, CommitInput{
		SupplierID:       req.SupplierID,
		PaymentTerms:     req.PaymentTerms,
		ExpectedDelivery: req.ExpectedDelivery,
		Notes:            req.Notes,
		ExchangeRateText: req.ExchangeRateText,
		IdempotencyKey:   r.Header.Get("Idempotency-Key"),
		ActorID:          actorID(r),
	})
	if err != nil {
		h.respondError(w, "commit order", 0, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOrderResponse(order))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "approve order", h.service.Approve)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "confirm order", h.service.Confirm)
}

func (h *Handler) handleShip(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "ship order", h.service.Ship)
}

func (h *Handler) handleMarkShipped(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "mark order shipped", h.service.MarkShipped)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel order", h.service.Cancel)
}

func (h *Handler) handleAssignShipping(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req assignShippingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	order, err := h.service.AssignShipping(r.Context(), id, req.Shipping, actorID(r))
	if err != nil {
		h.respondError(w, "assign shipping", id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) handleUpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	itemID, _ := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	var req updateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := h.service.UpdateItemQuantity(r.Context(), id, itemID, req.Quantity, actorID(r))
	if err != nil {
		h.respondError(w, "update item quantity", id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) handleReceive(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	receipts := make([]ReceiptInput, 0, len(req.Receipts))
	for _, receipt := range req.Receipts {
		receipts = append(receipts, ReceiptInput{ItemID: receipt.ItemID, Quantity: receipt.Quantity})
	}
	order, deltas, err := h.service.Receive(r.Context(), id, receipts, actorID(r))
	if err != nil {
		h.respondError(w, "receive order", id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": toOrderResponse(order), "stock_deltas": deltas})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action string, fn func(ctx context.Context, orderID, actorID int64) (PurchaseOrder, error)) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	order, err := fn(r.Context(), id, actorID(r))
	if err != nil {
		h.respondError(w, action, id, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handler) respondError(w http.ResponseWriter, action string, id int64, err error) {
	var (
		validationErr *ValidationError
		transitionErr *TransitionError
		overErr       *OverReceiptError
	)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrItemNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &validationErr):
		httpx.ProblemWithViolations(w, http.StatusBadRequest, "Validation Failed", validationErr.Violations)
	case errors.As(err, &transitionErr), errors.Is(err, ErrShippingLocked), errors.Is(err, ErrOrderLocked):
		httpx.Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.As(err, &overErr):
		httpx.Problem(w, http.StatusConflict, "Over Receipt", err.Error())
	case errors.Is(err, ErrInvalidQuantity), errors.Is(err, ErrNegativePrice), errors.Is(err, money.ErrCurrencyMismatch):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrDuplicateOrderNumber), errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	default:
		h.logger.Error(action, slog.Any("error", err), slog.Int64("id", id))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func actorID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	return id
}
