package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
)

// GET v1/categories (200 OK)
// GET v1/products?q=&category= (200 OK)
// GET v1/products/{productID}/demand (200 OK, 400, 404, 503)
// POST v1/sessions (201 Created)
// GET, DELETE v1/sessions/{sessionID} (200 OK, 204 No content, 404)
// PUT v1/sessions/{sessionID}/query JSON {"query": string}
// PUT v1/sessions/{sessionID}/category JSON {"category": string}
// POST v1/sessions/{sessionID}/cart/items JSON {"product_id": int}
// DELETE v1/sessions/{sessionID}/cart/items/{productID}

type StorefrontHandler struct {
	catalog  port.CatalogBrowser
	sessions port.SessionKeeper
}

// NewRouter returns the API router with the common middleware stack.
func NewRouter(
	catalog port.CatalogBrowser, sessions port.SessionKeeper,
) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(LogRequest)
	r.Use(middleware.Recoverer)
	r.Use(AllowJSON)

	RegisterStorefront(r, catalog, sessions)
	return r
}

func RegisterStorefront(
	r chi.Router, catalog port.CatalogBrowser, sessions port.SessionKeeper,
) {
	h := StorefrontHandler{catalog, sessions}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/categories", h.GetCategories)
		r.Get("/products", h.GetProducts)
		r.Get("/products/{productID}/demand", h.GetProductDemand)

		r.Post("/sessions", h.PostSession)
		r.Route("/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Put("/query", h.PutQuery)
			r.Put("/category", h.PutCategory)
			r.Post("/cart/items", h.PostCartItem)
			r.Delete("/cart/items/{productID}", h.DeleteCartItem)
		})
	})
}

func (h StorefrontHandler) GetCategories(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.GetCategories"
	log := slog.With("op", op)

	writeJSON(w, log, http.StatusOK, h.catalog.Categories())
}

func (h StorefrontHandler) GetProducts(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.GetProducts"
	log := slog.With("op", op)

	q := r.URL.Query()
	category := q.Get("category")
	if category == "" {
		category = domain.AllCategories
	}

	ps := h.catalog.Products(q.Get("q"), category)
	writeJSON(w, log, http.StatusOK, toProducts(ps))
}

func (h StorefrontHandler) GetProductDemand(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.GetProductDemand"
	log := slog.With("op", op)

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	units, err := h.catalog.ProductDemand(r.Context(), productID)
	if err != nil {
		writeErr(w, log, err)
		return
	}

	writeJSON(w, log, http.StatusOK, Demand{ProductID: productID, Units: units})
}

func (h StorefrontHandler) PostSession(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.PostSession"
	log := slog.With("op", op)

	id, v, err := h.sessions.OpenSession(r.Context())
	if err != nil {
		writeErr(w, log, err)
		return
	}

	w.Header().Set("Location", "/v1/sessions/"+id)
	writeJSON(w, log, http.StatusCreated, toSession(id, v))
}

func (h StorefrontHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.GetSession"
	log := slog.With("op", op)

	id := chi.URLParam(r, "sessionID")
	v, err := h.sessions.Session(r.Context(), id)
	if err != nil {
		writeErr(w, log, err)
		return
	}

	writeJSON(w, log, http.StatusOK, toSession(id, v))
}

func (h StorefrontHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.DeleteSession"
	log := slog.With("op", op)

	err := h.sessions.CloseSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeErr(w, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h StorefrontHandler) PutQuery(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.PutQuery"
	log := slog.With("op", op)

	var req QueryRequest
	if !readJSON(w, r, log, &req) {
		return
	}

	id := chi.URLParam(r, "sessionID")
	v, err := h.sessions.SetQuery(r.Context(), id, req.Query)
	if err != nil {
		writeErr(w, log, err)
		return
	}

	writeJSON(w, log, http.StatusOK, toSession(id, v))
}

func (h StorefrontHandler) PutCategory(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.PutCategory"
	log := slog.With("op", op)

	var req CategoryRequest
	if !readJSON(w, r, log, &req) {
		return
	}

	if req.Category == "" {
		http.Error(w, "category is required", http.StatusBadRequest)
		return
	}

	id := chi.URLParam(r, "sessionID")
	v, err := h.sessions.SelectCategory(r.Context(), id, req.Category)
	if err != nil {
		writeErr(w, log, err)
		return
	}

	writeJSON(w, log, http.StatusOK, toSession(id, v))
}

func (h StorefrontHandler) PostCartItem(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.PostCartItem"
	log := slog.With("op", op)

	var req CartItemRequest
	if !readJSON(w, r, log, &req) {
		return
	}

	id := chi.URLParam(r, "sessionID")
	v, err := h.sessions.AddToCart(r.Context(), id, req.ProductID)
	if err != nil {
		writeErr(w, log, err)
		return
	}

	log.Info("added to cart", "productID", req.ProductID)
	writeJSON(w, log, http.StatusOK, toSession(id, v))
}

func (h StorefrontHandler) DeleteCartItem(w http.ResponseWriter, r *http.Request) {
	const op = "StorefrontHandler.DeleteCartItem"
	log := slog.With("op", op)

	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "sessionID")
	v, err := h.sessions.RemoveFromCart(r.Context(), id, productID)
	if err != nil {
		writeErr(w, log, err)
		return
	}

	writeJSON(w, log, http.StatusOK, toSession(id, v))
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid product id", http.StatusBadRequest)
		return 0, false
	}
	return productID, true
}

func readJSON(
	w http.ResponseWriter, r *http.Request, log *slog.Logger, v any,
) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		http.Error(w, "invalid JSON data", http.StatusBadRequest)
		log.Warn("failed to parse JSON", "err", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to write response body", "err", err)
	}
}

func writeErr(w http.ResponseWriter, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrProductNotFound):
		http.Error(w, "product not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrDemandUnavailable):
		http.Error(w, "demand is unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		log.Warn("request aborted", "err", err)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
		log.Error("failed to serve request", "err", err)
	}
}
