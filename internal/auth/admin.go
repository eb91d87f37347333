// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/marekvk/fotofable/internal/logging"
)

const roleAdmin = "admin"

// Claims are the admin-token claims.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Guard protects the /api/admin surface with HMAC-signed bearer tokens.
// An empty secret disables the surface entirely: guarded routes answer 404
// so the deployment does not advertise an admin API it cannot authenticate.
type Guard struct {
	secret []byte
}

// NewGuard builds the guard from the configured admin secret. secret may be
// empty, which yields a disabled guard.
func NewGuard(secret string) *Guard {
	return &Guard{secret: []byte(secret)}
}

// Enabled reports whether the admin surface is active.
func (g *Guard) Enabled() bool {
	return len(g.secret) > 0
}

// GenerateToken issues an admin bearer token. Used by the operator tooling
// and tests; the service itself never mints tokens at request time.
func (g *Guard) GenerateToken(subject string, ttl time.Duration) (string, error) {
	if !g.Enabled() {
		return "", fmt.Errorf("admin surface disabled: no secret configured")
	}
	now := time.Now()
	claims := &Claims{
		Role: roleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// ValidateToken checks signature, algorithm, expiry and role.
func (g *Guard) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse admin token: %w", err)
	}
	if claims.Role != roleAdmin {
		return nil, fmt.Errorf("token role %q is not admin", claims.Role)
	}
	return claims, nil
}

// Middleware rejects requests without a valid admin bearer token.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.Enabled() {
			writeAuthError(w, http.StatusNotFound, "not found", "NOT_FOUND")
			return
		}

		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeAuthError(w, http.StatusUnauthorized, "missing bearer token", "UNAUTHORIZED")
			return
		}

		if _, err := g.ValidateToken(token); err != nil {
			logging.Warn().Err(err).Str("path", r.URL.Path).Msg("Admin token rejected")
			writeAuthError(w, http.StatusUnauthorized, "invalid or expired token", "UNAUTHORIZED")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeAuthError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}
