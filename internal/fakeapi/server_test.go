package fakeapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func login(t *testing.T, srv *httptest.Server) tokenPair {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"email": "john@mail.com", "password": "changeme"})
	resp, err := http.Post(srv.URL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected login status: %d", resp.StatusCode)
	}

	var tokens tokenPair
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		t.Fatalf("failed to decode tokens: %v", err)
	}
	return tokens
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()

	req, _ := http.NewRequest(http.MethodGet, url, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestServer_LoginAndProfile(t *testing.T) {
	s := New()
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	tokens := login(t, srv)
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatal("expected both tokens")
	}

	resp := get(t, srv.URL+"/auth/profile", tokens.AccessToken)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected profile status: %d", resp.StatusCode)
	}

	var user User
	json.NewDecoder(resp.Body).Decode(&user)
	if user.Email != "john@mail.com" {
		t.Errorf("unexpected profile email: %s", user.Email)
	}
}

func TestServer_RejectsBadCredentials(t *testing.T) {
	srv := httptest.NewServer(New().Routes())
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{"email": "john@mail.com", "password": "wrong"})
	resp, err := http.Post(srv.URL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestServer_ProtectedRoutes(t *testing.T) {
	s := New()
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	expired, err := s.ExpiredAccessToken(1)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	_, refresh, _ := s.IssueTokens(1)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "garbage token", token: "not-a-jwt"},
		{name: "expired token", token: expired},
		{name: "refresh token used as access", token: refresh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := get(t, srv.URL+"/products", tt.token)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", resp.StatusCode)
			}
		})
	}
}

func TestServer_RefreshRotatesTokens(t *testing.T) {
	s := New()
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	tokens := login(t, srv)

	body, _ := json.Marshal(map[string]string{"refreshToken": tokens.RefreshToken})
	resp, err := http.Post(srv.URL+"/auth/refresh-token", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected refresh status: %d", resp.StatusCode)
	}

	var rotated tokenPair
	json.NewDecoder(resp.Body).Decode(&rotated)
	if rotated.AccessToken == tokens.AccessToken {
		t.Error("expected a new access token")
	}
	if s.RefreshCalls() != 1 {
		t.Errorf("expected 1 refresh call, got %d", s.RefreshCalls())
	}
}

func TestServer_ListProductsIgnoresPrice(t *testing.T) {
	s := New()
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	tokens := login(t, srv)

	resp := get(t, srv.URL+"/products?price_min=100&price_max=200&limit=3&offset=2", tokens.AccessToken)
	defer resp.Body.Close()

	var products []Product
	json.NewDecoder(resp.Body).Decode(&products)

	if len(products) != 3 {
		t.Fatalf("expected 3 products, got %d", len(products))
	}
	if products[0].ID != 3 {
		t.Errorf("expected window to start at product 3, got %d", products[0].ID)
	}
	if products[0].Price != 180 || products[1].Price != 75 {
		t.Errorf("price params should not filter: got %v, %v", products[0].Price, products[1].Price)
	}
}

func TestServer_ListProductsTitleAndCategory(t *testing.T) {
	s := New()
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	tokens := login(t, srv)

	resp := get(t, srv.URL+"/products?title=classic&categoryId=1", tokens.AccessToken)
	defer resp.Body.Close()

	var products []Product
	json.NewDecoder(resp.Body).Decode(&products)

	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	for _, p := range products {
		if p.Category.ID != 1 {
			t.Errorf("unexpected category %d for %s", p.Category.ID, p.Title)
		}
	}
}

func TestServer_ProductLifecycle(t *testing.T) {
	s := New()
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	tokens := login(t, srv)
	do := func(method, path string, body any) *http.Response {
		var buf bytes.Buffer
		if body != nil {
			json.NewEncoder(&buf).Encode(body)
		}
		req, _ := http.NewRequest(method, srv.URL+path, &buf)
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s failed: %v", method, path, err)
		}
		return resp
	}

	resp := do(http.MethodPost, "/products", map[string]any{
		"title":       "Desk Lamp",
		"price":       40,
		"description": "Warm light for late nights.",
		"categoryId":  3,
		"images":      []string{"https://i.imgur.com/lamp.jpeg"},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("unexpected create status: %d", resp.StatusCode)
	}
	var created Product
	json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()

	if created.ID != 13 || created.Category.Name != "Furniture" {
		t.Errorf("unexpected created product: %+v", created)
	}

	resp = do(http.MethodPut, "/products/13", map[string]any{"price": 35})
	var updated Product
	json.NewDecoder(resp.Body).Decode(&updated)
	resp.Body.Close()

	if updated.Price != 35 || updated.Title != "Desk Lamp" {
		t.Errorf("partial update not applied: %+v", updated)
	}

	resp = do(http.MethodDelete, "/products/13", nil)
	var deleted bool
	json.NewDecoder(resp.Body).Decode(&deleted)
	resp.Body.Close()

	if !deleted {
		t.Error("expected delete to return true")
	}

	resp = do(http.MethodGet, "/products/13", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestServer_RecordsCorrelationID(t *testing.T) {
	s := New()
	srv := httptest.NewServer(s.Routes())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/categories", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	recorded := s.RequestsTo(http.MethodGet, "/categories")
	if len(recorded) != 1 {
		t.Fatalf("expected 1 recorded request, got %d", len(recorded))
	}
	if recorded[0].CorrelationID != "abc-123" {
		t.Errorf("unexpected correlation ID: %s", recorded[0].CorrelationID)
	}
}
