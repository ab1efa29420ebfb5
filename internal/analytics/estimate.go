// Package analytics derives beta and CAPM expected return from daily bars.
package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/marketdata"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// LookbackDays is the trailing calendar window used for estimation.
const LookbackDays = 365

// DailyReturn is the simple percentage change of one trading day
type DailyReturn struct {
	Date   time.Time
	Return float64
}

// Estimate is the output of one beta and expected return calculation.
// Beta is NaN when the benchmark has zero variance.
type Estimate struct {
	Beta           float64
	ExpectedReturn float64 // percent
}

// BetaValue returns beta rounded for storage, or NULL when undefined.
func (e Estimate) BetaValue() decimal.NullDecimal {
	return nullable(e.Beta, 6)
}

// ExpectedReturnValue returns the expected return rounded to 2 decimals, or NULL.
func (e Estimate) ExpectedReturnValue() decimal.NullDecimal {
	return nullable(e.ExpectedReturn, 2)
}

func nullable(v float64, places int32) decimal.NullDecimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(v).Round(places))
}

// DailyReturns computes close-over-close changes of the adjusted close.
// Bars must be in ascending date order; days after a zero close are dropped.
func DailyReturns(bars []marketdata.Bar) []DailyReturn {
	if len(bars) < 2 {
		return nil
	}
	out := make([]DailyReturn, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].AdjustedClose
		if prev == 0 {
			continue
		}
		out = append(out, DailyReturn{
			Date:   bars[i].Date,
			Return: bars[i].AdjustedClose/prev - 1,
		})
	}
	return out
}

// AlignReturns inner-joins two return series on trading date, keeping the
// stock series order.
func AlignReturns(stock, market []DailyReturn) (s, m []float64) {
	byDate := make(map[string]float64, len(market))
	for _, r := range market {
		byDate[r.Date.Format("2006-01-02")] = r.Return
	}
	for _, r := range stock {
		if mr, ok := byDate[r.Date.Format("2006-01-02")]; ok {
			s = append(s, r.Return)
			m = append(m, mr)
		}
	}
	return s, m
}

// Beta returns Cov(stock, market) / Var(market) using sample estimators.
func Beta(stock, market []float64) float64 {
	if len(stock) != len(market) || len(market) < 2 {
		return math.NaN()
	}
	variance := stat.Variance(market, nil)
	if variance == 0 {
		return math.NaN()
	}
	return stat.Covariance(stock, market, nil) / variance
}

// ExpectedReturn applies CAPM and returns a percentage rounded to 2 decimals.
// riskFree is an annual rate while meanMarketReturn is a daily mean; the mix
// is kept, so results sit near (rf - beta*rf) * 100.
func ExpectedReturn(riskFree, beta, meanMarketReturn float64) float64 {
	er := (riskFree + beta*(meanMarketReturn-riskFree)) * 100
	return math.Round(er*100) / 100
}

// Calculate estimates beta and expected return for a stock against a benchmark.
// The market mean uses the benchmark's full return series, not only the
// dates shared with the stock.
func Calculate(stockBars, marketBars []marketdata.Bar, riskFree float64) (Estimate, error) {
	if len(marketBars) == 0 {
		return Estimate{}, fmt.Errorf("benchmark: %w", marketdata.ErrNoMarketData)
	}
	if len(stockBars) == 0 {
		return Estimate{}, fmt.Errorf("stock: %w", marketdata.ErrNoMarketData)
	}

	marketReturns := DailyReturns(marketBars)
	stockReturns := DailyReturns(stockBars)
	s, m := AlignReturns(stockReturns, marketReturns)

	beta := Beta(s, m)

	mean := math.NaN()
	if len(marketReturns) > 0 {
		values := make([]float64, len(marketReturns))
		for i, r := range marketReturns {
			values[i] = r.Return
		}
		mean = stat.Mean(values, nil)
	}

	return Estimate{
		Beta:           beta,
		ExpectedReturn: ExpectedReturn(riskFree, beta, mean),
	}, nil
}
