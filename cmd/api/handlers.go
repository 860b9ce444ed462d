package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/lauracd1s/Proyecto-licore/internal/checkout"
	"github.com/lauracd1s/Proyecto-licore/internal/markdown"
	"github.com/lauracd1s/Proyecto-licore/internal/models"
	"github.com/lauracd1s/Proyecto-licore/internal/pricing"
	"github.com/lauracd1s/Proyecto-licore/internal/store"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type server struct {
	db      *sql.DB
	carts   *checkout.Service
	sweeper *markdown.Sweeper
	log     zerolog.Logger
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogger(s.log))

	r.Get("/health", s.handleHealth)

	r.Route("/carts", func(r chi.Router) {
		r.Post("/evaluate", s.handleEvaluate)
		r.Post("/", s.handleOpenCart)
		r.Route("/{cartID}", func(r chi.Router) {
			r.Get("/", s.handleGetCart)
			r.Post("/items", s.handleAddItem)
			r.Put("/items/{productID}", s.handleSetQuantity)
			r.Delete("/items/{productID}", s.handleRemoveItem)
			r.Put("/customer", s.handleSetCustomer)
			r.Post("/codes", s.handleApplyCode)
			r.Post("/finalize", s.handleFinalize)
			r.Post("/abandon", s.handleAbandon)
		})
	})

	r.Route("/offers", func(r chi.Router) {
		r.Post("/", s.handleCreateOffer)
		r.Get("/{offerID}", s.handleGetOffer)
		r.Patch("/{offerID}", s.handleSetOfferActive)
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.handleListProducts)
		r.Post("/", s.handleCreateProduct)
		r.Get("/{productID}", s.handleGetProduct)
		r.Post("/{productID}/batches", s.handleCreateBatch)
		r.Put("/{productID}/price", s.handleUpdatePrice)
	})

	r.Route("/customers", func(r chi.Router) {
		r.Post("/", s.handleCreateCustomer)
		r.Get("/{customerID}", s.handleGetCustomer)
		r.Get("/{customerID}/sales", s.handleCustomerSales)
	})

	r.Get("/sales/{saleID}", s.handleGetSale)

	r.Route("/markdowns", func(r chi.Router) {
		r.Get("/", s.handleListMarkdowns)
		r.Post("/sweep", s.handleSweep)
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req pricing.EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	result, err := s.carts.Evaluate(r.Context(), req)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *server) handleOpenCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID *int64 `json:"customer_id"`
	}
	// the body is optional
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cart, err := s.carts.Open(r.Context(), req.CustomerID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, cart.View())
}

func (s *server) cart(w http.ResponseWriter, r *http.Request) (*checkout.Cart, bool) {
	cart, err := s.carts.Cart(chi.URLParam(r, "cartID"))
	if err != nil {
		s.respondErr(w, r, err)
		return nil, false
	}
	return cart, true
}

func (s *server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	cart, ok := s.cart(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, cart.View())
}

func (s *server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	cart, ok := s.cart(w, r)
	if !ok {
		return
	}
	var req pricing.CartLine
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := cart.AddItem(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *server) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	cart, ok := s.cart(w, r)
	if !ok {
		return
	}
	productID, err := idParam(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := cart.SetQuantity(r.Context(), productID, req.Quantity)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	cart, ok := s.cart(w, r)
	if !ok {
		return
	}
	productID, err := idParam(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	view, err := cart.RemoveItem(r.Context(), productID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *server) handleSetCustomer(w http.ResponseWriter, r *http.Request) {
	cart, ok := s.cart(w, r)
	if !ok {
		return
	}
	var req struct {
		CustomerID *int64 `json:"customer_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := cart.SetCustomer(r.Context(), req.CustomerID)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *server) handleApplyCode(w http.ResponseWriter, r *http.Request) {
	cart, ok := s.cart(w, r)
	if !ok {
		return
	}
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := cart.ApplyCode(r.Context(), req.Code)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

func (s *server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	cart, ok := s.cart(w, r)
	if !ok {
		return
	}
	var req struct {
		PaymentMethod string `json:"payment_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sale, err := cart.Finalize(r.Context(), req.PaymentMethod)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, sale)
}

func (s *server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	cart, ok := s.cart(w, r)
	if !ok {
		return
	}
	if err := cart.Abandon(); err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cart.View())
}

func (s *server) handleCreateOffer(w http.ResponseWriter, r *http.Request) {
	var offer models.Offer
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := store.CreateOffer(r.Context(), s.db, offer)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

func (s *server) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "offerID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid offer ID")
		return
	}

	offer, err := store.GetOffer(r.Context(), s.db, id)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, offer)
}

func (s *server) handleSetOfferActive(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "offerID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid offer ID")
		return
	}
	var req struct {
		Active *bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Active == nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := store.SetOfferActive(r.Context(), s.db, id, *req.Active); err != nil {
		s.respondErr(w, r, err)
		return
	}

	offer, err := store.GetOffer(r.Context(), s.db, id)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, offer)
}

func (s *server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	result, err := store.ListProducts(r.Context(), s.db, page, pageSize)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req store.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	product, err := store.CreateProduct(r.Context(), s.db, req)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, product)
}

func (s *server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}

	product, err := store.GetProduct(r.Context(), s.db, id)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

func (s *server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}
	var req store.CreateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.ProductID = id

	batch, err := store.CreateBatch(r.Context(), s.db, req)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, batch)
}

func (s *server) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid product ID")
		return
	}
	var req struct {
		Price   decimal.Decimal `json:"price"`
		Version int             `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Price.IsNegative() {
		respondError(w, http.StatusBadRequest, "price cannot be negative")
		return
	}

	if err := store.UpdatePrice(r.Context(), s.db, id, req.Price, req.Version); err != nil {
		s.respondErr(w, r, err)
		return
	}

	product, err := store.GetProduct(r.Context(), s.db, id)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, product)
}

func (s *server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req store.CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	customer, err := store.CreateCustomer(r.Context(), s.db, req)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, customer)
}

func (s *server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "customerID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid customer ID")
		return
	}

	customer, err := store.GetCustomer(r.Context(), s.db, id)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, customer)
}

func (s *server) handleCustomerSales(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "customerID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid customer ID")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}

	page, err := store.ListSalesCursor(r.Context(), s.db, id, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, page)
}

func (s *server) handleGetSale(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "saleID")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid sale ID")
		return
	}

	sale, err := store.GetSale(r.Context(), s.db, id)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, sale)
}

func (s *server) handleListMarkdowns(w http.ResponseWriter, r *http.Request) {
	markdowns, err := s.sweeper.Markdowns(r.Context(), time.Now())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, markdowns)
}

func (s *server) handleSweep(w http.ResponseWriter, r *http.Request) {
	snap, err := s.sweeper.Sweep(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid id")
	}
	return id, nil
}
