package fakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// IssueTokens signs a fresh access/refresh pair for userID.
// Each call yields distinct tokens.
func (s *Server) IssueTokens(userID int) (access, refresh string, err error) {
	s.mu.Lock()
	accessTTL, refreshTTL := s.accessTTL, s.refreshTTL
	s.mu.Unlock()

	access, err = s.sign(userID, tokenTypeAccess, accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = s.sign(userID, tokenTypeRefresh, refreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// ExpiredAccessToken signs an access token that expired a minute ago.
func (s *Server) ExpiredAccessToken(userID int) (string, error) {
	return s.sign(userID, tokenTypeAccess, -time.Minute)
}

func (s *Server) sign(userID int, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": fmt.Sprint(userID),
		"typ": typ,
		"jti": uuid.New().String(),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// verify checks signature, expiry and token type and returns the user ID
func (s *Server) verify(tokenString, typ string) (int, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, err
	}

	if got, _ := claims["typ"].(string); got != typ {
		return 0, errors.New("wrong token type")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return 0, err
	}

	var id int
	if _, err := fmt.Sscan(sub, &id); err != nil {
		return 0, fmt.Errorf("invalid subject: %w", err)
	}
	return id, nil
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		reject := s.rejectAccess
		s.mu.Unlock()

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if reject || !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		id, err := s.verify(token, tokenTypeAccess)
		if err != nil {
			log.Ctx(r.Context()).Debug().Err(err).Msg("access token rejected")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Login handles POST /auth/login
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	s.mu.Lock()
	var user *User
	for i := range s.users {
		if s.users[i].Email == req.Email {
			user = &s.users[i]
			break
		}
	}
	s.mu.Unlock()

	if user == nil || bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	access, refresh, err := s.IssueTokens(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token signing failed")
		return
	}

	log.Ctx(r.Context()).Info().Int("userId", user.ID).Msg("user logged in")
	writeJSON(w, http.StatusCreated, tokenPair{AccessToken: access, RefreshToken: refresh})
}

// RefreshToken handles POST /auth/refresh-token
func (s *Server) RefreshToken(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	s.mu.Lock()
	delay, fail := s.refreshDelay, s.failRefresh
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	if fail {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := s.verify(req.RefreshToken, tokenTypeRefresh)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	access, refresh, err := s.IssueTokens(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token signing failed")
		return
	}

	writeJSON(w, http.StatusCreated, tokenPair{AccessToken: access, RefreshToken: refresh})
}

// Profile handles GET /auth/profile
func (s *Server) Profile(w http.ResponseWriter, r *http.Request) {
	id := userID(r.Context())

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID == id {
			writeJSON(w, http.StatusOK, u)
			return
		}
	}
	writeError(w, http.StatusUnauthorized, "Unauthorized")
}
