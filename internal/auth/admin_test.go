// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func guardedHandler(g *Guard) http.Handler {
	return g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestGuardDisabledAnswers404(t *testing.T) {
	g := NewGuard("")
	if g.Enabled() {
		t.Fatal("empty secret must disable the guard")
	}
	if _, err := g.GenerateToken("ops", time.Hour); err == nil {
		t.Error("disabled guard must not mint tokens")
	}

	rec := httptest.NewRecorder()
	guardedHandler(g).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/imports", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGuardTokenRoundTrip(t *testing.T) {
	g := NewGuard("0123456789abcdef0123456789abcdef")
	token, err := g.GenerateToken("ops", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := g.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.Subject != "ops" || claims.Role != "admin" {
		t.Errorf("claims = %+v", claims)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/imports", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	guardedHandler(g).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestGuardRejections(t *testing.T) {
	g := NewGuard("0123456789abcdef0123456789abcdef")
	expired, err := g.GenerateToken("ops", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	other := NewGuard("another-secret-another-secret-ab")
	foreign, err := other.GenerateToken("ops", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"not bearer", "Basic Zm9vOmJhcg=="},
		{"garbage token", "Bearer not.a.jwt"},
		{"expired token", "Bearer " + expired},
		{"wrong secret", "Bearer " + foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/admin/imports", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			guardedHandler(g).ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}
