package draft

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/karibu-erp/karibu-erp/internal/money"
	"github.com/karibu-erp/karibu-erp/internal/platform/httpx"
	"github.com/karibu-erp/karibu-erp/internal/purchase"
)

// Handler manages draft endpoints.
type Handler struct {
	logger    *slog.Logger
	store     *Store
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, store *Store) *Handler {
	return &Handler{logger: logger, store: store, validator: validator.New()}
}

// MountRoutes registers draft routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/drafts", h.handleList)
	r.Post("/drafts", h.handleSaveManual)
	r.Get("/drafts/{id}", h.handleLoad)
	r.Put("/drafts/{id}", h.handleUpdate)
	r.Delete("/drafts/{id}", h.handleDelete)
	r.Put("/autosave/{session}", h.handleAutosave)
	r.Get("/autosave/{session}", h.handleLoadAutosave)
	r.Delete("/autosave/{session}", h.handleDiscardAutosave)
}

type saveRequest struct {
	// Name is required for manual saves only; autosaves are anonymous.
	Name             string         `json:"name,omitempty"`
	Currency         string         `json:"currency" validate:"required,len=3"`
	SupplierID       int64          `json:"supplier_id,omitempty"`
	PaymentTerms     string         `json:"payment_terms,omitempty"`
	ExpectedDelivery *time.Time     `json:"expected_delivery,omitempty"`
	Notes            string         `json:"notes,omitempty"`
	ExchangeRateText string         `json:"exchange_rate_text,omitempty"`
	Items            []itemSnapshot `json:"items" validate:"omitempty,dive"`
}

type itemSnapshot struct {
	ID          string `json:"id,omitempty"`
	ProductID   string `json:"product_id" validate:"required"`
	VariantID   string `json:"variant_id,omitempty"`
	Name        string `json:"name,omitempty"`
	VariantName string `json:"variant_name,omitempty"`
	SKU         string `json:"sku,omitempty"`
	Quantity    int    `json:"quantity" validate:"gt=0"`
	UnitCost    string `json:"unit_cost" validate:"required"`
}

func (req saveRequest) toCart() (*purchase.Cart, error) {
	cart := purchase.NewCart(req.Currency)
	for _, line := range req.Items {
		cost, err := decimal.NewFromString(line.UnitCost)
		if err != nil {
			return nil, err
		}
		item := purchase.CartItem{
			ID:          line.ID,
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			Name:        line.Name,
			VariantName: line.VariantName,
			SKU:         line.SKU,
			Quantity:    line.Quantity,
			UnitCost:    money.New(cost, req.Currency),
		}
		if err := cart.AddLine(item); err != nil {
			return nil, err
		}
	}
	return cart, nil
}

func (req saveRequest) meta() Meta {
	return Meta{
		SupplierID:       req.SupplierID,
		PaymentTerms:     req.PaymentTerms,
		ExpectedDelivery: req.ExpectedDelivery,
		Notes:            req.Notes,
		ExchangeRateText: req.ExchangeRateText,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	drafts, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("list drafts", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"drafts": drafts})
}

func (h *Handler) handleSaveManual(w http.ResponseWriter, r *http.Request) {
	req, cart, ok := h.decodeSave(w, r)
	if !ok {
		return
	}
	if req.Name == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "a draft name is required")
		return
	}
	d, err := h.store.SaveManual(r.Context(), req.Name, cart, req.meta())
	if err != nil {
		h.logger.Error("save draft", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	req, cart, ok := h.decodeSave(w, r)
	if !ok {
		return
	}
	d, err := h.store.Update(r.Context(), chi.URLParam(r, "id"), cart, req.meta())
	if err != nil {
		h.respondError(w, "update draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "load draft", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "delete draft", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAutosave(w http.ResponseWriter, r *http.Request) {
	req, cart, ok := h.decodeSave(w, r)
	if !ok {
		return
	}
	h.store.Autosave(r.Context(), chi.URLParam(r, "session"), cart, req.meta())
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleLoadAutosave(w http.ResponseWriter, r *http.Request) {
	d, err := h.store.LoadAutosave(r.Context(), chi.URLParam(r, "session"))
	if err != nil {
		h.respondError(w, "load autosave", err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) handleDiscardAutosave(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DiscardAutosave(r.Context(), chi.URLParam(r, "session")); err != nil {
		h.respondError(w, "discard autosave", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decodeSave(w http.ResponseWriter, r *http.Request) (saveRequest, *purchase.Cart, bool) {
	var req saveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return req, nil, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, nil, false
	}
	cart, err := req.toCart()
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, nil, false
	}
	return req, cart, true
}

func (h *Handler) respondError(w http.ResponseWriter, action string, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	h.logger.Error(action, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
