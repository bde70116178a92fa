package service_test

import (
	"testing"

	"github.com/set-night/mindchat/internal/domain"
	"github.com/set-night/mindchat/internal/service"
	"github.com/shopspring/decimal"
)

func TestCalculateCost(t *testing.T) {
	tests := []struct {
		name     string
		model    domain.Model
		tokens   domain.TokenCounts
		searches int
		want     string
	}{
		{
			name:   "cached rate for hits",
			model:  domain.Model{InputPrice: 1, OutputPrice: 2, CachedInputPrice: 0.5},
			tokens: domain.TokenCounts{Input: 100, InputCacheHit: 40, Output: 10},
			want:   "0.0001",
		},
		{
			name:   "no cached price charges full input",
			model:  domain.Model{InputPrice: 1, OutputPrice: 2},
			tokens: domain.TokenCounts{Input: 100, InputCacheHit: 40, Output: 10},
			want:   "0.00012",
		},
		{
			name:   "no hits charges full input",
			model:  domain.Model{InputPrice: 1, OutputPrice: 2, CachedInputPrice: 0.5},
			tokens: domain.TokenCounts{Input: 100, Output: 10},
			want:   "0.00012",
		},
		{
			name:     "searches priced per thousand",
			model:    domain.Model{InputPrice: 1, OutputPrice: 2, SearchPrice: 10},
			tokens:   domain.TokenCounts{},
			searches: 3,
			want:     "0.03",
		},
		{
			name:     "zero search price",
			model:    domain.Model{InputPrice: 1, OutputPrice: 2},
			tokens:   domain.TokenCounts{Input: 1_000_000},
			searches: 5,
			want:     "1",
		},
		{
			name:   "free model",
			model:  domain.Model{},
			tokens: domain.TokenCounts{Input: 500, Output: 500},
			want:   "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := service.CalculateCost(tt.model, tt.tokens, tt.searches)
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("got %s, want %s", got, want)
			}
		})
	}
}

func TestCalculateCost_Deterministic(t *testing.T) {
	model := domain.Model{InputPrice: 1.25, OutputPrice: 10, CachedInputPrice: 0.125}
	tokens := domain.TokenCounts{Input: 1234, InputCacheHit: 200, Output: 567}

	first := service.CalculateCost(model, tokens, 1)
	for range 10 {
		if got := service.CalculateCost(model, tokens, 1); !got.Equal(first) {
			t.Fatalf("got %s, want %s", got, first)
		}
	}
}
