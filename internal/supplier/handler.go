package supplier

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/karibu-erp/karibu-erp/internal/platform/httpx"
)

// Handler manages supplier directory endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers supplier routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/suppliers", h.handleList)
	r.Get("/suppliers/{id}", h.handleGet)
	r.Post("/suppliers", h.handleCreate)
	r.Put("/suppliers/{id}", h.handleUpdate)
}

type supplierRequest struct {
	Name             string `json:"name" validate:"required"`
	ContactPerson    string `json:"contact_person,omitempty"`
	Phone            string `json:"phone,omitempty"`
	Email            string `json:"email,omitempty" validate:"omitempty,email"`
	City             string `json:"city,omitempty"`
	Country          string `json:"country,omitempty"`
	Currency         string `json:"currency,omitempty" validate:"omitempty,len=3"`
	ExchangeRateText string `json:"exchange_rate_text,omitempty"`
	PaymentTerms     string `json:"payment_terms,omitempty"`
}

func (req supplierRequest) toSupplier() Supplier {
	return Supplier{
		Name:             req.Name,
		ContactPerson:    req.ContactPerson,
		Phone:            req.Phone,
		Email:            req.Email,
		City:             req.City,
		Country:          req.Country,
		Currency:         req.Currency,
		ExchangeRateText: req.ExchangeRateText,
		PaymentTerms:     req.PaymentTerms,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	suppliers, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list suppliers", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suppliers": suppliers})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	sup, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get supplier", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sup)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	sup, err := h.service.Create(r.Context(), req.toSupplier())
	if err != nil {
		h.respondError(w, "create supplier", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sup)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	sup := req.toSupplier()
	sup.ID = id
	if err := h.service.Update(r.Context(), sup); err != nil {
		h.respondError(w, "update supplier", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sup)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (supplierRequest, bool) {
	var req supplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return req, false
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return req, false
	}
	return req, true
}

func (h *Handler) respondError(w http.ResponseWriter, action string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error(action, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
