package fakeapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ListProducts handles GET /products?title=&categoryId=&limit=&offset=
// Like the real API, price_min/price_max are accepted but not applied and
// there is no sort parameter.
func (s *Server) ListProducts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delay := s.listDelay
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	q := r.URL.Query()
	title := strings.ToLower(q.Get("title"))
	categoryID, _ := strconv.Atoi(q.Get("categoryId"))

	s.mu.Lock()
	matched := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if title != "" && !strings.Contains(strings.ToLower(p.Title), title) {
			continue
		}
		if categoryID != 0 && p.Category.ID != categoryID {
			continue
		}
		matched = append(matched, p)
	}
	s.mu.Unlock()

	if q.Has("limit") {
		limit, err := strconv.Atoi(q.Get("limit"))
		offset, err2 := strconv.Atoi(q.Get("offset"))
		if err != nil || err2 != nil || limit < 0 || offset < 0 {
			writeError(w, http.StatusBadRequest, []string{"limit must be a non-negative integer", "offset must be a non-negative integer"})
			return
		}
		if offset > len(matched) {
			offset = len(matched)
		}
		end := offset + limit
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[offset:end]
	}

	log.Ctx(r.Context()).Debug().Int("count", len(matched)).Msg("products listed")
	writeJSON(w, http.StatusOK, matched)
}

// GetProduct handles GET /products/{id}
func (s *Server) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		writeError(w, http.StatusNotFound, notFound("Product", id))
		return
	}
	writeJSON(w, http.StatusOK, s.products[i])
}

// CreateProduct handles POST /products
func (s *Server) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productWrite
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	var problems []string
	if req.Title == nil || *req.Title == "" {
		problems = append(problems, "title should not be empty")
	}
	if req.Price == nil || *req.Price <= 0 {
		problems = append(problems, "price must be a positive number")
	}
	if req.Description == nil || *req.Description == "" {
		problems = append(problems, "description should not be empty")
	}
	if req.CategoryID == nil {
		problems = append(problems, "categoryId must be a number")
	}
	if len(req.Images) == 0 {
		problems = append(problems, "images must contain at least 1 elements")
	}
	if len(problems) > 0 {
		writeError(w, http.StatusBadRequest, problems)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	category, ok := s.category(*req.CategoryID)
	if !ok {
		writeError(w, http.StatusBadRequest, notFound("Category", *req.CategoryID))
		return
	}

	now := time.Now().UTC()
	product := Product{
		ID:          s.nextID,
		Title:       *req.Title,
		Price:       *req.Price,
		Description: *req.Description,
		Images:      req.Images,
		Category:    category,
		CreationAt:  now,
		UpdatedAt:   now,
	}
	s.nextID++
	s.products = append(s.products, product)

	log.Ctx(r.Context()).Info().Int("productId", product.ID).Int("userId", userID(r.Context())).Msg("product created")
	writeJSON(w, http.StatusCreated, product)
}

// UpdateProduct handles PUT /products/{id} with partial bodies
func (s *Server) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req productWrite
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		writeError(w, http.StatusNotFound, notFound("Product", id))
		return
	}

	p := s.products[i]
	if req.Title != nil {
		p.Title = *req.Title
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.CategoryID != nil {
		category, ok := s.category(*req.CategoryID)
		if !ok {
			writeError(w, http.StatusBadRequest, notFound("Category", *req.CategoryID))
			return
		}
		p.Category = category
	}
	if req.Images != nil {
		p.Images = req.Images
	}
	p.UpdatedAt = time.Now().UTC()
	s.products[i] = p

	writeJSON(w, http.StatusOK, p)
}

// DeleteProduct handles DELETE /products/{id}
func (s *Server) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		writeError(w, http.StatusNotFound, notFound("Product", id))
		return
	}
	s.products = append(s.products[:i], s.products[i+1:]...)

	writeJSON(w, http.StatusOK, true)
}

// ListCategories handles GET /categories
func (s *Server) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Categories())
}

// GetCategory handles GET /categories/{id}
func (s *Server) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	category, found := s.category(id)
	if !found {
		writeError(w, http.StatusNotFound, notFound("Category", id))
		return
	}
	writeJSON(w, http.StatusOK, category)
}

// indexOf finds a product by ID (caller must hold mu)
func (s *Server) indexOf(id int) int {
	for i, p := range s.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// category finds a category by ID (caller must hold mu)
func (s *Server) category(id int) (Category, bool) {
	for _, c := range s.categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed (numeric string is expected)")
		return 0, false
	}
	return id, true
}

func notFound(entity string, id int) string {
	return fmt.Sprintf("Could not find any entity of type %q matching: {\n    \"id\": %d\n}", entity, id)
}
