package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/erauner12/catalog-admin/internal/apiclient"
	"github.com/erauner12/catalog-admin/internal/fakeapi"
	"github.com/erauner12/catalog-admin/internal/session"
)

func newTestClient(t *testing.T, timeout time.Duration) (*fakeapi.Server, *apiclient.Client) {
	t.Helper()

	api := fakeapi.New()
	srv := httptest.NewServer(api.Routes())
	t.Cleanup(srv.Close)

	return api, apiclient.NewClient(srv.URL, session.New(nil, nil), timeout)
}

func loginJohn(t *testing.T, client *apiclient.Client) {
	t.Helper()

	tokens, err := client.Login(context.Background(), apiclient.Credentials{Email: "john@mail.com", Password: "changeme"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	client.Session().SetTokens(tokens.AccessToken, tokens.RefreshToken)
}

func TestClient_LoginAttachesBearer(t *testing.T) {
	api, client := newTestClient(t, 0)
	loginJohn(t, client)

	if !client.Session().IsAuthenticated() {
		t.Fatal("expected session to be authenticated after login")
	}

	if _, err := client.ListProducts(context.Background(), apiclient.ProductQuery{}); err != nil {
		t.Fatalf("list failed: %v", err)
	}

	reqs := api.RequestsTo(http.MethodGet, "/products")
	if len(reqs) != 1 {
		t.Fatalf("expected 1 list request, got %d", len(reqs))
	}
	if want := "Bearer " + client.Session().AccessToken(); reqs[0].Authorization != want {
		t.Errorf("unexpected auth header: %s", reqs[0].Authorization)
	}
	if reqs[0].CorrelationID == "" {
		t.Error("expected a correlation ID")
	}
}

func TestClient_LoginWithBadCredentials(t *testing.T) {
	api, client := newTestClient(t, 0)

	_, err := client.Login(context.Background(), apiclient.Credentials{Email: "john@mail.com", Password: "nope"})

	var remote *apiclient.RemoteError
	if !errors.As(err, &remote) || remote.Status != http.StatusUnauthorized {
		t.Fatalf("expected RemoteError 401, got %v", err)
	}
	if api.RefreshCalls() != 0 {
		t.Error("a login 401 must not trigger a refresh")
	}
}

func TestClient_RefreshesOnUnauthorized(t *testing.T) {
	api, client := newTestClient(t, 0)

	_, refresh, _ := api.IssueTokens(1)
	client.Session().SetTokens("invalid-access", refresh)

	products, err := client.ListProducts(context.Background(), apiclient.ProductQuery{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(products) == 0 {
		t.Error("expected products after retry")
	}

	if api.RefreshCalls() != 1 {
		t.Errorf("expected 1 refresh call, got %d", api.RefreshCalls())
	}

	reqs := api.RequestsTo(http.MethodGet, "/products")
	if len(reqs) != 2 {
		t.Fatalf("expected first and retried request, got %d", len(reqs))
	}
	if reqs[0].Authorization != "Bearer invalid-access" {
		t.Errorf("unexpected first auth header: %s", reqs[0].Authorization)
	}

	newAccess := client.Session().AccessToken()
	if newAccess == "invalid-access" || newAccess == "" {
		t.Fatalf("session should hold the refreshed access token, got %q", newAccess)
	}
	if reqs[1].Authorization != "Bearer "+newAccess {
		t.Errorf("retry should carry the refreshed token, got %s", reqs[1].Authorization)
	}
	if client.Session().RefreshToken() == refresh {
		t.Error("expected refresh token to be rotated")
	}
	if reqs[0].CorrelationID != reqs[1].CorrelationID {
		t.Error("retry should reuse the correlation ID")
	}
}

func TestClient_RefreshTokenOnlySession(t *testing.T) {
	api, client := newTestClient(t, 0)

	_, refresh, _ := api.IssueTokens(1)
	client.Session().SetTokens("", refresh)

	if !client.Session().IsAuthenticated() {
		t.Fatal("a refresh token alone counts as authenticated")
	}

	if _, err := client.Profile(context.Background()); err != nil {
		t.Fatalf("profile failed: %v", err)
	}

	reqs := api.RequestsTo(http.MethodGet, "/auth/profile")
	if len(reqs) != 2 {
		t.Fatalf("expected 2 profile requests, got %d", len(reqs))
	}
	if reqs[0].Authorization != "" {
		t.Errorf("first request should carry no auth header, got %s", reqs[0].Authorization)
	}
}

func TestClient_NoRefreshTokenClearsSession(t *testing.T) {
	api, client := newTestClient(t, 0)
	client.Session().SetTokens("invalid-access", "")

	_, err := client.ListProducts(context.Background(), apiclient.ProductQuery{})
	if !errors.Is(err, apiclient.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if client.Session().IsAuthenticated() {
		t.Error("expected session to be cleared")
	}
	if api.RefreshCalls() != 0 {
		t.Errorf("expected no refresh call, got %d", api.RefreshCalls())
	}
}

func TestClient_FailedRefreshClearsSession(t *testing.T) {
	api, client := newTestClient(t, 0)

	_, refresh, _ := api.IssueTokens(1)
	client.Session().SetTokens("invalid-access", refresh)
	api.FailRefresh(true)

	_, err := client.ListProducts(context.Background(), apiclient.ProductQuery{})
	if !errors.Is(err, apiclient.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	var remote *apiclient.RemoteError
	if !errors.As(err, &remote) || remote.Status != http.StatusUnauthorized {
		t.Errorf("expected the refresh failure to be wrapped, got %v", err)
	}
	if client.Session().IsAuthenticated() {
		t.Error("expected session to be cleared")
	}
}

func TestClient_RetriesAtMostOnce(t *testing.T) {
	api, client := newTestClient(t, 0)
	loginJohn(t, client)
	api.RejectAccessTokens(true)

	_, err := client.ListProducts(context.Background(), apiclient.ProductQuery{})
	if !errors.Is(err, apiclient.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	if n := len(api.RequestsTo(http.MethodGet, "/products")); n != 2 {
		t.Errorf("expected exactly 2 list attempts, got %d", n)
	}
	if api.RefreshCalls() != 1 {
		t.Errorf("expected 1 refresh call, got %d", api.RefreshCalls())
	}
}

func TestClient_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	api, client := newTestClient(t, 0)

	_, refresh, _ := api.IssueTokens(1)
	client.Session().SetTokens("invalid-access", refresh)
	api.SetRefreshDelay(100 * time.Millisecond)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.ListProducts(context.Background(), apiclient.ProductQuery{})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d failed: %v", i, err)
		}
	}
	if api.RefreshCalls() != 1 {
		t.Errorf("expected exactly 1 refresh call, got %d", api.RefreshCalls())
	}

	newAccess := "Bearer " + client.Session().AccessToken()
	for _, r := range api.RequestsTo(http.MethodGet, "/products") {
		if r.Authorization != "Bearer invalid-access" && r.Authorization != newAccess {
			t.Errorf("unexpected auth header on retry: %s", r.Authorization)
		}
	}
}

func TestClient_ConcurrentUnauthorizedFailTogether(t *testing.T) {
	api, client := newTestClient(t, 0)

	_, refresh, _ := api.IssueTokens(1)
	client.Session().SetTokens("invalid-access", refresh)
	api.SetRefreshDelay(100 * time.Millisecond)
	api.FailRefresh(true)

	const n = 5
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.ListProducts(context.Background(), apiclient.ProductQuery{})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if !errors.Is(err, apiclient.ErrUnauthorized) {
			t.Errorf("request %d: expected ErrUnauthorized, got %v", i, err)
		}
	}
	if api.RefreshCalls() != 1 {
		t.Errorf("expected exactly 1 refresh call, got %d", api.RefreshCalls())
	}
}

func TestClient_TimeoutIsNetworkError(t *testing.T) {
	api, client := newTestClient(t, 50*time.Millisecond)
	loginJohn(t, client)
	api.SetListDelay(500 * time.Millisecond)

	_, err := client.ListProducts(context.Background(), apiclient.ProductQuery{})

	var netErr *apiclient.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if !netErr.Timeout() {
		t.Errorf("expected a timeout, got %v", netErr.Err)
	}
	if api.RefreshCalls() != 0 {
		t.Error("a timeout must not trigger a refresh")
	}
	if !client.Session().IsAuthenticated() {
		t.Error("a timeout must not clear the session")
	}
}

func TestClient_CanceledContext(t *testing.T) {
	api, client := newTestClient(t, 0)
	loginJohn(t, client)
	api.SetListDelay(500 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.ListProducts(ctx, apiclient.ProductQuery{})

	var netErr *apiclient.NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestClient_RemoteErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
	}{
		{name: "string message", status: 404, body: `{"message":"not here","statusCode":404}`, message: "not here"},
		{name: "list message", status: 400, body: `{"message":["price must be positive","title too short"]}`, message: "price must be positive; title too short"},
		{name: "error field", status: 500, body: `{"error":"boom"}`, message: "boom"},
		{name: "not json", status: 502, body: `<html>bad gateway</html>`, message: "Bad Gateway"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := apiclient.NewClient(srv.URL, session.New(nil, nil), 0)
			_, err := client.GetProduct(context.Background(), 1)

			var remote *apiclient.RemoteError
			if !errors.As(err, &remote) {
				t.Fatalf("expected RemoteError, got %v", err)
			}
			if remote.Status != tt.status {
				t.Errorf("unexpected status: %d", remote.Status)
			}
			if remote.Message != tt.message {
				t.Errorf("unexpected message: %q", remote.Message)
			}
		})
	}
}

func TestClient_RetryPreservesBody(t *testing.T) {
	api, client := newTestClient(t, 0)

	_, refresh, _ := api.IssueTokens(1)
	client.Session().SetTokens("invalid-access", refresh)

	created, err := client.CreateProduct(context.Background(), apiclient.CreateProductInput{
		Title:       "Desk Lamp",
		Price:       40,
		Description: "Warm light for late nights.",
		CategoryID:  3,
		Images:      []string{"https://i.imgur.com/lamp.jpeg"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Title != "Desk Lamp" || created.Category.ID != 3 {
		t.Errorf("unexpected product: %+v", created)
	}
}

func TestClient_ProductCRUD(t *testing.T) {
	api, client := newTestClient(t, 0)
	loginJohn(t, client)
	ctx := context.Background()

	created, err := client.CreateProduct(ctx, apiclient.CreateProductInput{
		Title:       "Desk Lamp",
		Price:       40,
		Description: "Warm light for late nights.",
		CategoryID:  3,
		Images:      []string{"https://i.imgur.com/lamp.jpeg"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	price := 35.5
	updated, err := client.UpdateProduct(ctx, created.ID, apiclient.UpdateProductInput{Price: &price})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Price != 35.5 || updated.Title != "Desk Lamp" {
		t.Errorf("unexpected update result: %+v", updated)
	}

	got, err := client.GetProduct(ctx, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Price != 35.5 {
		t.Errorf("unexpected price: %v", got.Price)
	}

	deleted, err := client.DeleteProduct(ctx, created.ID)
	if err != nil || !deleted {
		t.Fatalf("delete failed: %v %v", deleted, err)
	}

	_, err = client.GetProduct(ctx, created.ID)
	var remote *apiclient.RemoteError
	if !errors.As(err, &remote) || remote.Status != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %v", err)
	}
	if !strings.Contains(remote.Message, "Product") {
		t.Errorf("unexpected not-found message: %s", remote.Message)
	}

	if api.RefreshCalls() != 0 {
		t.Error("no refresh expected with a valid token")
	}
}

func TestClient_ListQueryEncoding(t *testing.T) {
	api, client := newTestClient(t, 0)
	loginJohn(t, client)

	lo, hi := 10.0, 99.5
	_, err := client.ListProducts(context.Background(), apiclient.ProductQuery{
		Title:      "shirt",
		CategoryID: 1,
		PriceMin:   &lo,
		PriceMax:   &hi,
		Window:     &apiclient.Window{Limit: 11, Offset: 20},
	})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	q := api.RequestsTo(http.MethodGet, "/products")[0].Query
	want := map[string]string{
		"title":      "shirt",
		"categoryId": "1",
		"price_min":  "10",
		"price_max":  "99.5",
		"limit":      "11",
		"offset":     "20",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("query %s: got %q, want %q", k, got, v)
		}
	}
}

func TestClient_Categories(t *testing.T) {
	_, client := newTestClient(t, 0)
	loginJohn(t, client)

	categories, err := client.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("list categories failed: %v", err)
	}
	if len(categories) != 5 {
		t.Errorf("expected 5 categories, got %d", len(categories))
	}

	category, err := client.GetCategory(context.Background(), 2)
	if err != nil {
		t.Fatalf("get category failed: %v", err)
	}
	if category.Name != "Electronics" {
		t.Errorf("unexpected category: %s", category.Name)
	}
}
