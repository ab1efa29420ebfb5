package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/fx"
	"github.com/cindychow0101/Portfolio-tracker/internal/models"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	cent    = decimal.New(1, -2)
)

// RebuildHoldings replaces the holdings table with the net position of every
// (user, symbol) pair in the transaction log. Pairs netting to zero are
// dropped. The result depends only on transactions and tickers.
func (p *Pipeline) RebuildHoldings(ctx context.Context) ([]*models.Holding, error) {
	aggs, err := p.store.SumQuantities(ctx)
	if err != nil {
		return nil, err
	}

	now := p.now().UTC()
	holdings := make([]*models.Holding, 0, len(aggs))
	for _, a := range aggs {
		if a.Quantity.IsZero() {
			continue
		}
		priceHKD := fx.ConvertOrNull(ctx, p.converter, a.CurrentPrice, a.Currency, p.cfg.ReportingCurrency, p.log)

		h := &models.Holding{
			Username:        a.Username,
			Symbol:          a.Symbol,
			Quantity:        a.Quantity,
			Currency:        a.Currency,
			CurrentPrice:    a.CurrentPrice,
			CurrentPriceHKD: priceHKD,
			Beta:            a.Beta,
			ExpectedReturn:  a.ExpectedReturn,
			UpdatedAt:       now,
		}
		if priceHKD.Valid {
			h.TotalValueHKD = decimal.NewNullDecimal(a.Quantity.Mul(priceHKD.Decimal).Round(2))
		}
		holdings = append(holdings, h)
	}

	if err := p.store.ReplaceAllHoldings(ctx, holdings); err != nil {
		return nil, err
	}
	p.log.Info().Int("holdings", len(holdings)).Msg("Holdings rebuilt")
	return holdings, nil
}

// ComputeWeights assigns each positive-value holding its percentage of the
// owning user's total value with 2 decimals. Percentages are truncated to the
// cent and the leftover cents go to the largest remainders, so each user's
// weights sum to exactly 100. Users whose total is not positive get no weights.
func ComputeWeights(holdings []*models.Holding) []models.HoldingWeight {
	totals := make(map[string]decimal.Decimal)
	for _, h := range holdings {
		if positiveValue(h) {
			totals[h.Username] = totals[h.Username].Add(h.TotalValueHKD.Decimal)
		}
	}

	type share struct {
		index     int
		remainder decimal.Decimal
	}
	var weights []models.HoldingWeight
	shares := make(map[string][]share)
	allotted := make(map[string]decimal.Decimal)
	for _, h := range holdings {
		total, ok := totals[h.Username]
		if !ok || !total.IsPositive() || !positiveValue(h) {
			continue
		}
		exact := h.TotalValueHKD.Decimal.Mul(hundred).Div(total)
		floor := exact.Truncate(2)
		shares[h.Username] = append(shares[h.Username], share{index: len(weights), remainder: exact.Sub(floor)})
		allotted[h.Username] = allotted[h.Username].Add(floor)
		weights = append(weights, models.HoldingWeight{
			Username:  h.Username,
			Symbol:    h.Symbol,
			Weighting: floor,
		})
	}

	for user, list := range shares {
		cents := hundred.Sub(allotted[user]).Mul(hundred).Round(0).IntPart()
		sort.SliceStable(list, func(i, j int) bool { return list[i].remainder.GreaterThan(list[j].remainder) })
		for i := 0; i < int(cents) && i < len(list); i++ {
			w := &weights[list[i].index]
			w.Weighting = w.Weighting.Add(cent)
		}
	}
	return weights
}

func positiveValue(h *models.Holding) bool {
	return h.TotalValueHKD.Valid && h.TotalValueHKD.Decimal.IsPositive()
}

// ApplyWeights computes and stores weights, updating holdings in place.
func (p *Pipeline) ApplyWeights(ctx context.Context, holdings []*models.Holding) (int, error) {
	weights := ComputeWeights(holdings)

	byKey := make(map[string]decimal.Decimal, len(weights))
	for _, w := range weights {
		byKey[w.Username+"/"+w.Symbol] = w.Weighting
	}
	for _, h := range holdings {
		if w, ok := byKey[h.Username+"/"+h.Symbol]; ok {
			h.Weighting = decimal.NewNullDecimal(w)
		}
	}

	if err := p.store.UpdateHoldingWeights(ctx, weights); err != nil {
		return 0, err
	}
	return len(weights), nil
}

// PortfolioValue sums the HKD value of holdings, skipping NULLs. The result
// is NULL when no holding has a value.
func PortfolioValue(holdings []*models.Holding) decimal.NullDecimal {
	var sum decimal.Decimal
	valid := false
	for _, h := range holdings {
		if h.TotalValueHKD.Valid {
			sum = sum.Add(h.TotalValueHKD.Decimal)
			valid = true
		}
	}
	if !valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(sum.Round(2))
}

// PortfolioReturn is the weighting-scaled blend of expected returns, in percent.
func PortfolioReturn(holdings []*models.Holding) decimal.NullDecimal {
	return weightedSum(holdings, func(h *models.Holding) decimal.NullDecimal { return h.ExpectedReturn })
}

// PortfolioBeta is the weighting-scaled blend of holding betas.
func PortfolioBeta(holdings []*models.Holding) decimal.NullDecimal {
	return weightedSum(holdings, func(h *models.Holding) decimal.NullDecimal { return h.Beta })
}

func weightedSum(holdings []*models.Holding, field func(*models.Holding) decimal.NullDecimal) decimal.NullDecimal {
	var sum decimal.Decimal
	valid := false
	for _, h := range holdings {
		v := field(h)
		if !v.Valid || !h.Weighting.Valid {
			continue
		}
		sum = sum.Add(v.Decimal.Mul(h.Weighting.Decimal).Div(hundred))
		valid = true
	}
	if !valid {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(sum.Round(2))
}

// AppendSnapshots appends one value and one return point for every user
// holding at least one position. Both points share a timestamp.
func (p *Pipeline) AppendSnapshots(ctx context.Context, holdings []*models.Holding) (int, error) {
	byUser := make(map[string][]*models.Holding)
	for _, h := range holdings {
		byUser[h.Username] = append(byUser[h.Username], h)
	}
	if len(byUser) == 0 {
		return 0, nil
	}

	users := make([]string, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	sort.Strings(users)

	at := p.now().UTC().Truncate(time.Second)
	values := make([]*models.Snapshot, 0, len(users))
	returns := make([]*models.Snapshot, 0, len(users))
	for _, u := range users {
		values = append(values, &models.Snapshot{Username: u, Value: PortfolioValue(byUser[u]), RecordedAt: at})
		returns = append(returns, &models.Snapshot{Username: u, Value: PortfolioReturn(byUser[u]), RecordedAt: at})
	}

	if err := p.store.AppendValueSnapshots(ctx, values); err != nil {
		return 0, fmt.Errorf("failed to append value snapshots: %w", err)
	}
	if err := p.store.AppendReturnSnapshots(ctx, returns); err != nil {
		return 0, fmt.Errorf("failed to append return snapshots: %w", err)
	}
	return len(values) + len(returns), nil
}
