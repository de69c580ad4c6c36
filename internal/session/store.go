package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

const (
	accessTokenKey  = "access_token"
	refreshTokenKey = "refresh_token"
)

// Session holds the current access and refresh tokens and the single
// pending-refresh slot shared by every request that hits a 401.
//
// The access token lives in storage scoped to the running process; the
// refresh token lives in durable storage so it survives restarts.
type Session struct {
	mu      sync.Mutex
	scoped  Storage
	durable Storage
	pending *Refresh
}

// New creates a session backed by the given stores.
// A nil store falls back to process memory.
func New(scoped, durable Storage) *Session {
	if scoped == nil {
		scoped = NewMemoryStorage()
	}
	if durable == nil {
		durable = NewMemoryStorage()
	}
	return &Session{scoped: scoped, durable: durable}
}

// SetTokens overwrites both credentials. Token contents are opaque.
func (s *Session) SetTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(s.scoped, accessTokenKey, access)
	s.put(s.durable, refreshTokenKey, refresh)

	log.Debug().Msg("session tokens updated")
}

// AccessToken returns the current access token, or "" when absent.
func (s *Session) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(s.scoped, accessTokenKey)
}

// RefreshToken returns the current refresh token, or "" when absent.
func (s *Session) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(s.durable, refreshTokenKey)
}

// ClearTokens removes both credentials unconditionally.
func (s *Session) ClearTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.scoped.Delete(accessTokenKey); err != nil {
		log.Warn().Err(err).Msg("failed to delete access token")
	}
	if err := s.durable.Delete(refreshTokenKey); err != nil {
		log.Warn().Err(err).Msg("failed to delete refresh token")
	}

	log.Debug().Msg("session tokens cleared")
}

// IsAuthenticated reports whether either token is present.
// A refresh token alone counts: the first request will go out without a
// bearer token and pick one up through the 401/refresh cycle.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(s.scoped, accessTokenKey) != "" || s.get(s.durable, refreshTokenKey) != ""
}

// PendingRefresh returns the in-flight refresh, if any.
func (s *Session) PendingRefresh() *Refresh {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// SetPendingRefresh replaces the pending-refresh slot. Passing nil clears it.
// Callers coordinating a refresh should use AcquireRefresh instead, which
// performs the check and the set under one lock.
func (s *Session) SetPendingRefresh(r *Refresh) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = r
}

// AcquireRefresh returns the refresh a rejected request should wait on.
//
// rejected is the access token the request carried when the server answered
// 401. The outcomes are:
//   - a refresh is already pending: it is returned and owner is false;
//   - the session already holds a different access token (a refresh finished
//     after the request was sent): a resolved Refresh carrying the current
//     token is returned and owner is false;
//   - otherwise a new Refresh is registered and owner is true. The owner must
//     Resolve it and then call ReleaseRefresh.
func (s *Session) AcquireRefresh(rejected string) (r *Refresh, owner bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		return s.pending, false
	}

	if current := s.get(s.scoped, accessTokenKey); current != "" && current != rejected {
		done := NewRefresh()
		done.Resolve(current, nil)
		return done, false
	}

	s.pending = NewRefresh()
	return s.pending, true
}

// ReleaseRefresh clears the pending slot if it still holds r.
func (s *Session) ReleaseRefresh(r *Refresh) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == r {
		s.pending = nil
	}
}

// get reads a key and treats storage failures as absence (caller must hold mu)
func (s *Session) get(store Storage, key string) string {
	value, ok, err := store.Get(key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("token storage read failed")
		return ""
	}
	if !ok {
		return ""
	}
	return value
}

// put writes a key; an empty value removes it (caller must hold mu)
func (s *Session) put(store Storage, key, value string) {
	var err error
	if value == "" {
		err = store.Delete(key)
	} else {
		err = store.Set(key, value)
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("token storage write failed")
	}
}

// Refresh is a one-shot future shared by every waiter of a token refresh.
type Refresh struct {
	done  chan struct{}
	once  sync.Once
	token string
	err   error
}

// NewRefresh creates an unresolved refresh.
func NewRefresh() *Refresh {
	return &Refresh{done: make(chan struct{})}
}

// Resolve records the outcome. Only the first call has any effect.
func (r *Refresh) Resolve(token string, err error) {
	r.once.Do(func() {
		r.token = token
		r.err = err
		close(r.done)
	})
}

// Done is closed once the refresh has resolved.
func (r *Refresh) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the refresh resolves or ctx ends.
func (r *Refresh) Wait(ctx context.Context) (string, error) {
	select {
	case <-r.done:
		return r.token, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
