// Package fakeapi is an in-process stand-in for the catalog REST API.
// It serves the same routes and JSON shapes, issues HS256 JWTs, and exposes
// knobs for forcing the failure modes the client has to survive.
package fakeapi

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

// Request is a recorded inbound request.
type Request struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	CorrelationID string
}

// Server holds the fake catalog and its auth state.
type Server struct {
	mu         sync.Mutex
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration

	users      []User
	categories []Category
	products   []Product
	nextID     int

	// Failure knobs
	rejectAccess bool
	failRefresh  bool
	refreshDelay time.Duration
	listDelay    time.Duration

	refreshCalls atomic.Int64
	requests     []Request
}

// New creates a server seeded with demo users, categories and products.
func New() *Server {
	s := &Server{
		secret:     []byte("fakeapi-secret"),
		accessTTL:  time.Hour,
		refreshTTL: 24 * time.Hour,
		users: []User{
			{ID: 1, Email: "john@mail.com", PasswordHash: mustHash("changeme"), Name: "Jhon", Role: "customer", Avatar: "https://i.imgur.com/LDOO4Qs.jpg"},
			{ID: 3, Email: "admin@mail.com", PasswordHash: mustHash("admin123"), Name: "Admin", Role: "admin", Avatar: "https://i.imgur.com/5mPmJYO.jpeg"},
		},
		categories: seedCategories(),
	}
	s.products = seedProducts(s.categories)
	s.nextID = len(s.products) + 1
	return s
}

// Routes returns the API router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(CorrelationMiddleware)
	r.Use(s.recordRequests)

	r.Post("/auth/login", s.Login)
	r.Post("/auth/refresh-token", s.RefreshToken)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/auth/profile", s.Profile)

		r.Get("/products", s.ListProducts)
		r.Post("/products", s.CreateProduct)
		r.Get("/products/{id}", s.GetProduct)
		r.Put("/products/{id}", s.UpdateProduct)
		r.Delete("/products/{id}", s.DeleteProduct)

		r.Get("/categories", s.ListCategories)
		r.Get("/categories/{id}", s.GetCategory)
	})

	return r
}

// SetProducts replaces the catalog. IDs are kept as given.
func (s *Server) SetProducts(products []Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = append([]Product(nil), products...)
	s.nextID = 1
	for _, p := range products {
		if p.ID >= s.nextID {
			s.nextID = p.ID + 1
		}
	}
}

// Products returns a copy of the current catalog.
func (s *Server) Products() []Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Product(nil), s.products...)
}

// Categories returns a copy of the seeded categories.
func (s *Server) Categories() []Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Category(nil), s.categories...)
}

// RejectAccessTokens makes every protected route answer 401.
func (s *Server) RejectAccessTokens(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectAccess = reject
}

// FailRefresh makes /auth/refresh-token answer 401.
func (s *Server) FailRefresh(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// SetRefreshDelay holds every refresh call open for d.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// SetListDelay holds every product list call open for d.
func (s *Server) SetListDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listDelay = d
}

// RefreshCalls returns how many refresh requests were received.
func (s *Server) RefreshCalls() int {
	return int(s.refreshCalls.Load())
}

// Requests returns the recorded requests, oldest first.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the recorded requests for one method and path.
func (s *Server) RequestsTo(method, path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.Query(),
			Authorization: r.Header.Get("Authorization"),
			CorrelationID: r.Header.Get("X-Correlation-ID"),
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

// mustHash uses the minimum cost so that tests can build many servers quickly
func mustHash(password string) []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return hash
}

func seedCategories() []Category {
	created := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	names := []string{"Clothes", "Electronics", "Furniture", "Shoes", "Miscellaneous"}

	categories := make([]Category, 0, len(names))
	for i, name := range names {
		categories = append(categories, Category{
			ID:         i + 1,
			Name:       name,
			Image:      fmt.Sprintf("https://i.imgur.com/category-%d.jpeg", i+1),
			CreationAt: created,
			UpdatedAt:  created,
		})
	}
	return categories
}

func seedProducts(categories []Category) []Product {
	created := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	seed := []struct {
		title    string
		price    float64
		category int
	}{
		{"Classic Red Pullover Hoodie", 10, 1},
		{"Wireless Mouse", 25, 2},
		{"Oak Coffee Table", 180, 3},
		{"Running Shoes", 75, 4},
		{"Canvas Tote Bag", 15, 5},
		{"Classic Blue Baseball Cap", 12, 1},
		{"Mechanical Keyboard", 95, 2},
		{"Leather Armchair", 420, 3},
		{"Trail Boots", 130, 4},
		{"Ceramic Mug", 9, 5},
		{"Slim Fit Jeans", 45, 1},
		{"Noise Cancelling Headphones", 210, 2},
	}

	products := make([]Product, 0, len(seed))
	for i, p := range seed {
		products = append(products, Product{
			ID:          i + 1,
			Title:       p.title,
			Price:       p.price,
			Description: "A dependable " + p.title + " for everyday use.",
			Images:      []string{fmt.Sprintf("https://i.imgur.com/product-%d.jpeg", i+1)},
			Category:    categories[p.category-1],
			CreationAt:  created,
			UpdatedAt:   created,
		})
	}
	return products
}
