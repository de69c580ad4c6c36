// Package catalog applies the product list policy on top of the API gateway
// and exposes the operations a front end needs.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/erauner12/catalog-admin/internal/apiclient"
	"github.com/erauner12/catalog-admin/internal/cache"
	"github.com/erauner12/catalog-admin/internal/session"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultListTTL = 10 * time.Second
	DefaultItemTTL = 5 * time.Minute

	listKeyPrefix = "products:"
	categoriesKey = "categories"
)

// Gateway is the subset of the API client the service needs.
type Gateway interface {
	Login(ctx context.Context, creds apiclient.Credentials) (*apiclient.AuthTokens, error)
	Profile(ctx context.Context) (*apiclient.User, error)
	ListProducts(ctx context.Context, q apiclient.ProductQuery) ([]apiclient.Product, error)
	GetProduct(ctx context.Context, id int) (*apiclient.Product, error)
	CreateProduct(ctx context.Context, in apiclient.CreateProductInput) (*apiclient.Product, error)
	UpdateProduct(ctx context.Context, id int, in apiclient.UpdateProductInput) (*apiclient.Product, error)
	DeleteProduct(ctx context.Context, id int) (bool, error)
	ListCategories(ctx context.Context) ([]apiclient.Category, error)
	GetCategory(ctx context.Context, id int) (*apiclient.Category, error)
}

// Options tunes result caching. Zero values select the defaults.
type Options struct {
	ListTTL time.Duration
	ItemTTL time.Duration
}

// Service is the product/category façade.
type Service struct {
	gateway  Gateway
	session  *session.Session
	cache    *cache.Cache
	listTTL  time.Duration
	itemTTL  time.Duration
	group    singleflight.Group
	validate *validator.Validate

	// generation advances on every invalidation. Reads capture it before
	// calling the API and only store their result if it has not moved.
	cacheMu    sync.Mutex
	generation uint64
}

// NewService wires a service. sess must be the session gateway authorizes with.
func NewService(gateway Gateway, sess *session.Session, opts Options) *Service {
	if opts.ListTTL <= 0 {
		opts.ListTTL = DefaultListTTL
	}
	if opts.ItemTTL <= 0 {
		opts.ItemTTL = DefaultItemTTL
	}

	return &Service{
		gateway:  gateway,
		session:  sess,
		cache:    cache.New(opts.ListTTL),
		listTTL:  opts.ListTTL,
		itemTTL:  opts.ItemTTL,
		validate: newValidator(),
	}
}

// Close stops background cache maintenance.
func (s *Service) Close() {
	s.cache.Close()
}

// Login validates the credentials, exchanges them for tokens and stores
// them in the session.
func (s *Service) Login(ctx context.Context, email, password string) error {
	creds := apiclient.Credentials{
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: password,
	}
	if err := s.validate.Struct(creds); err != nil {
		return validationError(err)
	}

	tokens, err := s.gateway.Login(ctx, creds)
	if err != nil {
		return err
	}

	s.session.SetTokens(tokens.AccessToken, tokens.RefreshToken)
	s.purge()

	log.Info().Str("email", creds.Email).Msg("logged in")
	return nil
}

// Logout forgets both tokens and every cached result.
func (s *Service) Logout() {
	s.session.ClearTokens()
	s.purge()
	log.Info().Msg("logged out")
}

// IsAuthenticated reports whether the session holds any token.
func (s *Service) IsAuthenticated() bool {
	return s.session.IsAuthenticated()
}

func (s *Service) Profile(ctx context.Context) (*apiclient.User, error) {
	return s.gateway.Profile(ctx)
}

// ListProducts returns one page of products for f. Zero Page/PageSize are
// defaulted. Identical concurrent fetches share one remote call and results
// stay fresh for the list TTL.
func (s *Service) ListProducts(ctx context.Context, f Filter) (Page, error) {
	f = f.WithDefaults()
	if err := s.validate.Struct(f); err != nil {
		return Page{}, validationError(err)
	}

	plan := PlanFor(f)
	items, err := s.fetch(ctx, plan.Query)
	if err != nil {
		return Page{}, err
	}

	page := Reconcile(f, plan, items)
	log.Debug().
		Bool("fetchAll", plan.FetchAll).
		Int("fetched", len(items)).
		Int("shown", len(page.Items)).
		Bool("hasNextPage", page.HasNextPage).
		Msg("product page reconciled")
	return page, nil
}

// fetch runs the remote list call through the cache and the flight group
func (s *Service) fetch(ctx context.Context, q apiclient.ProductQuery) ([]apiclient.Product, error) {
	key := listKeyPrefix + q.Values().Encode()

	if v, ok := s.cache.Get(key); ok {
		return v.([]apiclient.Product), nil
	}

	gen := s.currentGeneration()
	load := func() ([]apiclient.Product, error) {
		items, err := s.gateway.ListProducts(ctx, q)
		if err != nil {
			return nil, err
		}
		// A superseded query must not leave results behind
		if ctx.Err() == nil {
			s.storeIfCurrent(gen, key, items, s.listTTL)
		}
		return items, nil
	}

	// Flights are keyed by generation so a caller arriving after a mutation
	// never joins a fetch that started before it
	ch := s.group.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		return load()
	})

	select {
	case <-ctx.Done():
		return nil, &apiclient.NetworkError{Method: http.MethodGet, URL: "/products", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil && res.Shared && ctx.Err() == nil && abandoned(res.Err) {
			// The caller that led the flight gave up or ran out of time; ours is still wanted
			return load()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]apiclient.Product), nil
	}
}

// abandoned reports whether err came from a caller's context ending rather
// than from the API
func abandoned(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (s *Service) currentGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.generation
}

// storeIfCurrent caches v unless an invalidation happened since gen was read
func (s *Service) storeIfCurrent(gen uint64, key string, v any, ttl time.Duration) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	if gen != s.generation {
		log.Debug().Str("key", key).Msg("dropping result fetched before invalidation")
		return
	}
	s.cache.SetWithTTL(key, v, ttl)
}

// invalidate drops every cached list plus the given keys
func (s *Service) invalidate(keys ...string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.generation++
	s.cache.ClearPrefix(listKeyPrefix)
	for _, key := range keys {
		s.cache.Clear(key)
	}
}

func (s *Service) purge() {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.generation++
	s.cache.Purge()
}

func (s *Service) GetProduct(ctx context.Context, id int) (*apiclient.Product, error) {
	if id <= 0 {
		return nil, invalidID(id)
	}

	key := productKey(id)
	if v, ok := s.cache.Get(key); ok {
		p := v.(apiclient.Product)
		return &p, nil
	}

	gen := s.currentGeneration()
	p, err := s.gateway.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if ctx.Err() == nil {
		s.storeIfCurrent(gen, key, *p, s.itemTTL)
	}
	return p, nil
}

// CreateProduct validates in before sending it. Cached lists are dropped.
func (s *Service) CreateProduct(ctx context.Context, in apiclient.CreateProductInput) (*apiclient.Product, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	p, err := s.gateway.CreateProduct(ctx, in)
	if err != nil {
		return nil, err
	}

	s.invalidate()
	log.Info().Int("productId", p.ID).Str("title", p.Title).Msg("product created")
	return p, nil
}

// UpdateProduct sends only the fields set in in. Cached lists are dropped
// and the returned product replaces any cached copy.
func (s *Service) UpdateProduct(ctx context.Context, id int, in apiclient.UpdateProductInput) (*apiclient.Product, error) {
	if id <= 0 {
		return nil, invalidID(id)
	}
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		in.Title = &t
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		in.Description = &d
	}
	if in.Title == nil && in.Price == nil && in.Description == nil && in.CategoryID == nil && len(in.Images) == 0 {
		return nil, &apiclient.ValidationError{Fields: map[string]string{"body": "at least one field must be set"}}
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	p, err := s.gateway.UpdateProduct(ctx, id, in)
	if err != nil {
		return nil, err
	}

	s.invalidate()
	s.cache.SetWithTTL(productKey(id), *p, s.itemTTL)
	log.Info().Int("productId", id).Msg("product updated")
	return p, nil
}

// DeleteProduct removes a product and drops cached lists and the cached item.
func (s *Service) DeleteProduct(ctx context.Context, id int) (bool, error) {
	if id <= 0 {
		return false, invalidID(id)
	}

	deleted, err := s.gateway.DeleteProduct(ctx, id)
	if err != nil {
		return false, err
	}

	s.invalidate(productKey(id))
	log.Info().Int("productId", id).Bool("deleted", deleted).Msg("product deleted")
	return deleted, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]apiclient.Category, error) {
	if v, ok := s.cache.Get(categoriesKey); ok {
		return v.([]apiclient.Category), nil
	}

	gen := s.currentGeneration()
	categories, err := s.gateway.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if ctx.Err() == nil {
		s.storeIfCurrent(gen, categoriesKey, categories, s.itemTTL)
	}
	return categories, nil
}

func (s *Service) GetCategory(ctx context.Context, id int) (*apiclient.Category, error) {
	if id <= 0 {
		return nil, invalidID(id)
	}
	return s.gateway.GetCategory(ctx, id)
}

func productKey(id int) string {
	return fmt.Sprintf("product:%d", id)
}

func invalidID(id int) error {
	return &apiclient.ValidationError{Fields: map[string]string{"id": fmt.Sprintf("must be a positive integer, got %d", id)}}
}
