// internal/order/handler.go
package order

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"bookshop/internal/web"
	"bookshop/pkg/logging"
	"bookshop/pkg/paging"
)

const maxQuantity = 5

type Handler struct {
	service Service
	logger  zerolog.Logger
}

func NewHandler(service Service, logger zerolog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.HandleGetAllOrders)
		r.Post("/", h.HandleSubmitOrder)
	})
}

// OrderRequest is the body of POST /orders. Quantity is a pointer so that a
// missing value can be told apart from zero.
type OrderRequest struct {
	ISBN     string `json:"isbn"`
	Quantity *int   `json:"quantity"`
}

func (req OrderRequest) Validate() error {
	verr := web.ValidationError{}
	switch {
	case req.ISBN == "":
		verr.Add("isbn", "The book ISBN must be defined.")
	case !web.ValidISBN(req.ISBN):
		verr.Add("isbn", "The ISBN format must be valid.")
	}
	switch {
	case req.Quantity == nil:
		verr.Add("quantity", "The book quantity must be defined.")
	case *req.Quantity < 1:
		verr.Add("quantity", "You must order at least 1 item.")
	case *req.Quantity > maxQuantity:
		verr.Add("quantity", "You cannot order more than 5 items.")
	}
	return verr.Err()
}

func (h *Handler) HandleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := web.DecodeJSON(r, &req); err != nil {
		web.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		web.WriteValidation(w, err)
		return
	}

	order, err := h.service.SubmitOrder(r.Context(), req.ISBN, *req.Quantity)
	if err != nil {
		h.logger.Error().Err(err).Str(logging.ISBN, req.ISBN).Msg("submit order failed")
		web.WriteError(w, http.StatusInternalServerError, "order could not be stored")
		return
	}
	web.WriteJSON(w, http.StatusOK, order)
}

func (h *Handler) HandleGetAllOrders(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.GetAllOrders(r.Context(), paging.Parse(r.URL.Query()))
	if err != nil {
		if errors.Is(err, paging.ErrInvalidSort) {
			web.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("list orders failed")
		web.WriteError(w, http.StatusInternalServerError, "orders could not be listed")
		return
	}
	web.WriteJSON(w, http.StatusOK, page.Response())
}
