package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

func exerciseStorage(t *testing.T, store Storage) {
	t.Helper()

	if _, ok, err := store.Get("missing"); err != nil || ok {
		t.Fatalf("expected missing key to be absent, got ok=%v err=%v", ok, err)
	}

	if err := store.Set("k", "v1"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Set("k", "v2"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	v, ok, err := store.Get("k")
	if err != nil || !ok || v != "v2" {
		t.Errorf("unexpected get result: %q ok=%v err=%v", v, ok, err)
	}

	if err := store.Delete("k"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, _ := store.Get("k"); ok {
		t.Error("expected key to be gone after delete")
	}

	// Deleting an absent key is not an error
	if err := store.Delete("k"); err != nil {
		t.Errorf("delete of absent key failed: %v", err)
	}
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

func TestFileStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "tokens")
	exerciseStorage(t, NewFileStorage(dir))
}

func TestFileStorage_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	s := New(nil, NewFileStorage(dir))
	s.SetTokens("access", "refresh")

	info, err := os.Stat(filepath.Join(dir, refreshTokenKey))
	if err != nil {
		t.Fatalf("expected refresh token file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("unexpected token file mode: %o", perm)
	}

	reopened := New(nil, NewFileStorage(dir))
	if got := reopened.RefreshToken(); got != "refresh" {
		t.Errorf("unexpected refresh token: %s", got)
	}
	if reopened.AccessToken() != "" {
		t.Error("access token must not survive a restart")
	}
}

func TestRedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisStorageFromClient(client, "test:")
	exerciseStorage(t, store)

	if err := store.Set(refreshTokenKey, "r"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if got, _ := mr.Get("test:" + refreshTokenKey); got != "r" {
		t.Errorf("expected prefixed key in redis, got %q", got)
	}
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(20 * time.Minute).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": 1,
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	got, err := TokenExpiry(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(exp) {
		t.Errorf("unexpected expiry: got %v, want %v", got, exp)
	}

	if _, err := TokenExpiry("not-a-jwt"); err == nil {
		t.Error("expected error for opaque token")
	}
}
