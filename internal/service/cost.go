package service

import (
	"github.com/set-night/mindchat/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	perMillionTokens = decimal.NewFromInt(1_000_000)
	perThousandCalls = decimal.NewFromInt(1_000)
)

// CalculateCost prices one reply in USD. Cache hits are charged at the cached
// rate only when the model defines one; the remaining input is charged in full.
func CalculateCost(model domain.Model, tokens domain.TokenCounts, searches int) decimal.Decimal {
	inputPrice := decimal.NewFromFloat(model.InputPrice)
	outputPrice := decimal.NewFromFloat(model.OutputPrice)

	var tokenCost decimal.Decimal
	if model.CachedInputPrice > 0 && tokens.InputCacheHit > 0 {
		hits := min(tokens.InputCacheHit, tokens.Input)
		tokenCost = decimal.NewFromFloat(model.CachedInputPrice).Mul(decimal.NewFromInt(int64(hits))).
			Add(inputPrice.Mul(decimal.NewFromInt(int64(tokens.Input - hits))))
	} else {
		tokenCost = inputPrice.Mul(decimal.NewFromInt(int64(tokens.Input)))
	}
	tokenCost = tokenCost.Add(outputPrice.Mul(decimal.NewFromInt(int64(tokens.Output))))

	cost := tokenCost.Div(perMillionTokens)
	if searches > 0 && model.SearchPrice > 0 {
		searchCost := decimal.NewFromFloat(model.SearchPrice).Mul(decimal.NewFromInt(int64(searches))).Div(perThousandCalls)
		cost = cost.Add(searchCost)
	}
	return cost
}
