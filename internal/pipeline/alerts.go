package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cindychow0101/Portfolio-tracker/internal/models"
	"github.com/cindychow0101/Portfolio-tracker/internal/notify"
	"github.com/shopspring/decimal"
)

// AlertState is the threshold classification of one (user, symbol) pair
type AlertState int

// Alert states
const (
	StateUnwatched AlertState = iota
	StateWithinBand
	StateBreachLow
	StateBreachHigh
)

func (s AlertState) String() string {
	switch s {
	case StateUnwatched:
		return "unwatched"
	case StateWithinBand:
		return "within-band"
	case StateBreachLow:
		return "breach-low"
	case StateBreachHigh:
		return "breach-high"
	default:
		return fmt.Sprintf("AlertState(%d)", int(s))
	}
}

// ThresholdLevels returns last*(1-drop/100) and last*(1+rise/100).
func ThresholdLevels(last, dropPct, risePct decimal.Decimal) (low, high decimal.Decimal) {
	one := decimal.NewFromInt(1)
	low = last.Mul(one.Sub(dropPct.Div(hundred)))
	high = last.Mul(one.Add(risePct.Div(hundred)))
	return low, high
}

// Classify places the current price relative to the stored levels. Prices
// exactly on a level are within the band.
func Classify(pc *models.PriceComparison) AlertState {
	switch {
	case !pc.NotificationsEnabled:
		return StateUnwatched
	case pc.CurrentPrice.LessThan(pc.PriceDropThresholdValue):
		return StateBreachLow
	case pc.CurrentPrice.GreaterThan(pc.PriceRiseThresholdValue):
		return StateBreachHigh
	default:
		return StateWithinBand
	}
}

// EvaluateAlerts refreshes the comparison working set and emails every
// breaching pair. Only currently held pairs are compared; rows for closed
// positions are pruned first. Levels are stored before any email is
// attempted, and a notification is recorded only after a successful send.
func (p *Pipeline) EvaluateAlerts(ctx context.Context) (sent, suppressed, compared int, err error) {
	pruned, err := p.store.PruneComparisons(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	if pruned > 0 {
		p.log.Debug().Int64("pruned", pruned).Msg("Removed comparisons for closed positions")
	}

	comparisons, err := p.store.LatestLongPrices(ctx)
	if err != nil {
		return 0, 0, 0, err
	}

	now := p.now().UTC()
	var errs []error
	for _, pc := range comparisons {
		pc.PriceDropThresholdValue, pc.PriceRiseThresholdValue =
			ThresholdLevels(pc.LastLongPrice, pc.PriceDropThreshold, pc.PriceRiseThreshold)
		pc.UpdatedAt = now

		if err := p.store.UpsertPriceComparison(ctx, pc); err != nil {
			return sent, suppressed, compared, err
		}
		compared++

		var kind string
		switch Classify(pc) {
		case StateBreachLow:
			kind = models.NotificationPriceDrop
		case StateBreachHigh:
			kind = models.NotificationPriceRise
		default:
			continue
		}

		if p.cfg.AlertCooldown > 0 && pc.LastNotifiedAt != nil && now.Sub(*pc.LastNotifiedAt) < p.cfg.AlertCooldown {
			p.log.Debug().Str("username", pc.Username).Str("symbol", pc.Symbol).Msg("Alert suppressed by cooldown")
			suppressed++
			continue
		}

		err := p.notify(ctx, pc, kind, now)
		if errors.Is(err, notify.ErrDryRun) {
			p.log.Info().Str("username", pc.Username).Str("symbol", pc.Symbol).Msg("Alert logged only, not recorded")
			continue
		}
		if err != nil {
			p.log.Error().Err(err).Str("username", pc.Username).Str("symbol", pc.Symbol).Msg("Failed to send alert")
			errs = append(errs, fmt.Errorf("alert %s/%s: %w", pc.Username, pc.Symbol, err))
			continue
		}
		sent++
	}

	p.log.Info().Int("compared", compared).Int("sent", sent).Int("suppressed", suppressed).Msg("Price alerts evaluated")
	return sent, suppressed, compared, skipped("evaluate alerts", errs)
}

func (p *Pipeline) notify(ctx context.Context, pc *models.PriceComparison, kind string, now time.Time) error {
	if pc.Email == "" {
		return fmt.Errorf("%w: no email for %s", notify.ErrDelivery, pc.Username)
	}

	subject, body := notify.AlertMessage(pc.Symbol, kind)
	if err := p.sender.Send(ctx, pc.Email, subject, body); err != nil {
		return err
	}

	n := &models.Notification{Username: pc.Username, Symbol: pc.Symbol, Type: kind, CreatedAt: now}
	if err := p.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to record notification: %w", err)
	}
	if err := p.store.MarkNotified(ctx, pc.Username, pc.Symbol, now); err != nil {
		return fmt.Errorf("failed to mark notified: %w", err)
	}

	if p.events != nil {
		if err := p.events.PublishAlertSent(ctx, n); err != nil {
			p.log.Warn().Err(err).Str("symbol", pc.Symbol).Msg("Failed to publish alert event")
		}
	}
	return nil
}
