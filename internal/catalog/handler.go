// internal/catalog/handler.go
package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"bookshop/internal/web"
	"bookshop/pkg/eventstore"
	"bookshop/pkg/logging"
	"bookshop/pkg/paging"
)

type Handler struct {
	service  Service
	greeting string
	logger   zerolog.Logger
}

func NewHandler(service Service, greeting string, logger zerolog.Logger) *Handler {
	return &Handler{service: service, greeting: greeting, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleGreeting)
	r.Route("/books", func(r chi.Router) {
		r.Get("/", h.HandleListBooks)
		r.Post("/", h.HandleAddBook)
		r.Get("/{isbn}", h.HandleGetBook)
		r.Put("/{isbn}", h.HandleEditBook)
		r.Delete("/{isbn}", h.HandleRemoveBook)
		r.Get("/{isbn}/history", h.HandleBookHistory)
	})
}

func (h *Handler) HandleGreeting(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(h.greeting))
}

func (h *Handler) HandleListBooks(w http.ResponseWriter, r *http.Request) {
	req := paging.Parse(r.URL.Query(), paging.Order{Property: "id", Direction: paging.Desc})
	page, err := h.service.ViewBookList(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, page.Response())
}

func (h *Handler) HandleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.service.ViewBookDetails(r.Context(), chi.URLParam(r, "isbn"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) HandleAddBook(w http.ResponseWriter, r *http.Request) {
	var in BookInput
	if err := web.DecodeJSON(r, &in); err != nil {
		web.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := in.Validate(); err != nil {
		web.WriteValidation(w, err)
		return
	}

	book, err := h.service.AddBookToCatalog(r.Context(), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, book)
}

func (h *Handler) HandleEditBook(w http.ResponseWriter, r *http.Request) {
	var in BookInput
	if err := web.DecodeJSON(r, &in); err != nil {
		web.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	isbn := chi.URLParam(r, "isbn")
	if err := validateEdit(isbn, in); err != nil {
		web.WriteValidation(w, err)
		return
	}

	book, err := h.service.EditBookDetails(r.Context(), isbn, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, book)
}

// validateEdit checks the body and the path ISBN, which names the book when
// the edit adds it.
func validateEdit(isbn string, in BookInput) error {
	verr := web.ValidationError{}
	if err := in.Validate(); err != nil {
		if !errors.As(err, &verr) {
			return err
		}
	}
	if !web.ValidISBN(isbn) {
		verr.Add("isbn", "The ISBN format must be valid.")
	}
	return verr.Err()
}

func (h *Handler) HandleRemoveBook(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveBookFromCatalog(r.Context(), chi.URLParam(r, "isbn")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleBookHistory(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.BookHistory(r.Context(), chi.URLParam(r, "isbn"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, events)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var bookErr *BookError
	switch {
	case errors.As(err, &bookErr) && errors.Is(err, ErrBookNotFound):
		web.WriteError(w, http.StatusNotFound, bookErr.Error())
	case errors.As(err, &bookErr) && errors.Is(err, ErrBookAlreadyExists):
		web.WriteError(w, http.StatusUnprocessableEntity, bookErr.Error())
	case errors.Is(err, eventstore.ErrConcurrencyConflict):
		web.WriteError(w, http.StatusConflict, "the book was changed concurrently, retry")
	case errors.Is(err, paging.ErrInvalidSort):
		web.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Str(logging.ISBN, chi.URLParam(r, "isbn")).Msg("catalog request failed")
		web.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}
