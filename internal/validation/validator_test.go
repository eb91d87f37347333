// Fotofable - Contextual Photo Captioning and Duplicate Detection
// Copyright 2026 Marek K. (marekvk)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/marekvk/fotofable

package validation

import (
	"strings"
	"sync"
	"testing"
)

type captionRequest struct {
	AssetID   string   `validate:"required"`
	Latitude  *float64 `validate:"omitempty,latitude"`
	Longitude *float64 `validate:"omitempty,longitude"`
	Language  string   `validate:"omitempty,oneof=fr en es de it"`
}

type duplicateRequest struct {
	AssetIDs  []string `validate:"required,min=2"`
	Threshold float64  `validate:"omitempty,gt=0,lte=1"`
}

func f64(v float64) *float64 { return &v }

func TestValidateStruct_Valid(t *testing.T) {
	req := captionRequest{
		AssetID:   "abc-123",
		Latitude:  f64(13.4125),
		Longitude: f64(103.8667),
		Language:  "en",
	}

	if err := ValidateStruct(&req); err != nil {
		t.Fatalf("expected valid struct, got: %v", err)
	}
}

func TestValidateStruct_BoundaryCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lon     float64
		wantErr bool
	}{
		{"max valid", 90, 180, false},
		{"min valid", -90, -180, false},
		{"lat over", 90.0001, 0, true},
		{"lat under", -90.0001, 0, true},
		{"lon over", 0, 180.0001, true},
		{"lon under", 0, -180.0001, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := captionRequest{AssetID: "a", Latitude: f64(tt.lat), Longitude: f64(tt.lon)}
			err := ValidateStruct(&req)
			if tt.wantErr && err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("expected valid, got: %v", err)
			}
			if tt.wantErr {
				if apiErr := err.ToAPIError(); apiErr.Code != "INVALID_COORDINATES" {
					t.Errorf("code = %s, want INVALID_COORDINATES", apiErr.Code)
				}
			}
		})
	}
}

func TestValidateStruct_MissingRequired(t *testing.T) {
	req := captionRequest{}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error for missing asset id")
	}

	apiErr := err.ToAPIError()
	if apiErr.Code != "MISSING_ASSET_ID" {
		t.Errorf("code = %s, want MISSING_ASSET_ID", apiErr.Code)
	}
	if !strings.Contains(apiErr.Message, "required") {
		t.Errorf("message = %q, want mention of required", apiErr.Message)
	}
}

func TestValidateStruct_ThresholdBounds(t *testing.T) {
	if err := ValidateStruct(&duplicateRequest{AssetIDs: []string{"a", "b"}, Threshold: 1.5}); err == nil {
		t.Error("threshold 1.5 should fail lte=1")
	}
	if err := ValidateStruct(&duplicateRequest{AssetIDs: []string{"a", "b"}, Threshold: 0.95}); err != nil {
		t.Errorf("threshold 0.95 should pass: %v", err)
	}
	if err := ValidateStruct(&duplicateRequest{AssetIDs: []string{"only"}}); err == nil {
		t.Error("single asset id should fail min=2")
	}
}

func TestValidationError_Accessors(t *testing.T) {
	err := ValidateStruct(&duplicateRequest{AssetIDs: []string{"a", "b"}, Threshold: 2})
	if err == nil {
		t.Fatal("expected error")
	}
	errs := err.Errors()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d", len(errs))
	}
	if errs[0].Field() != "Threshold" {
		t.Errorf("field = %s, want Threshold", errs[0].Field())
	}
	if errs[0].Tag() != "lte" {
		t.Errorf("tag = %s, want lte", errs[0].Tag())
	}
	if errs[0].Param() != "1" {
		t.Errorf("param = %s, want 1", errs[0].Param())
	}
}

func TestGetValidator_Singleton(t *testing.T) {
	var wg sync.WaitGroup
	instances := make([]interface{}, 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			instances[idx] = GetValidator()
		}(i)
	}
	wg.Wait()

	for i := 1; i < 10; i++ {
		if instances[i] != instances[0] {
			t.Error("GetValidator returned different instances")
		}
	}
}

func TestToSnake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AssetID", "asset_id"},
		{"Latitude", "latitude"},
		{"ImageBase64", "image_base64"},
		{"AssetIDs", "asset_ids"},
	}
	for _, tt := range tests {
		if got := toSnake(tt.in); got != tt.want {
			t.Errorf("toSnake(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
