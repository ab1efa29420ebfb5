package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Config holds exchange-rate API settings
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

var _ Converter = (*Client)(nil)

// Client converts through exchangerate-api.com rate tables
type Client struct {
	baseURL string
	ttl     time.Duration
	client  *http.Client
	cache   RateCache
	log     zerolog.Logger
}

// NewClient creates a client. A nil cache falls back to an in-memory one.
func NewClient(cfg Config, cache RateCache, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.exchangerate-api.com/v4/latest"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		ttl:     cfg.CacheTTL,
		client:  &http.Client{Timeout: cfg.Timeout},
		cache:   cache,
		log:     log.With().Str("client", "exchangerate-api").Logger(),
	}
}

// Convert returns amount expressed in currency to, rounded to 2 decimals
func (c *Client) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	if from == to {
		return amount.Round(2), nil
	}

	rate, err := c.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(decimal.NewFromFloat(rate)).Round(2), nil
}

// Rate returns the multiplier from one currency to another.
// When the API is unreachable the last known table is used.
func (c *Client) Rate(ctx context.Context, from, to string) (float64, error) {
	if rates, ok, err := c.cache.Fresh(ctx, from); err != nil {
		c.log.Warn().Err(err).Str("base", from).Msg("Rate cache read failed")
	} else if ok {
		if rate, found := rates[to]; found {
			c.log.Debug().Str("from", from).Str("to", to).Float64("rate", rate).Msg("Cache hit")
			return rate, nil
		}
	}

	rates, err := c.fetch(ctx, from)
	if err == nil {
		if rate, found := rates[to]; found {
			if err := c.cache.Store(ctx, from, rates, c.ttl); err != nil {
				c.log.Warn().Err(err).Str("base", from).Msg("Failed to cache exchange rates")
			}
			c.log.Info().Str("from", from).Str("to", to).Float64("rate", rate).Msg("Fetched rate")
			return rate, nil
		}
		err = fmt.Errorf("rate not found for %s->%s", from, to)
	}

	if stale, ok, serr := c.cache.Stale(ctx, from); serr == nil && ok {
		if rate, found := stale[to]; found {
			c.log.Warn().Err(err).Str("from", from).Str("to", to).Float64("rate", rate).
				Msg("API failed, using stale cached rate")
			return rate, nil
		}
	}
	return 0, fmt.Errorf("%w: %s->%s: %v", ErrConversion, from, to, err)
}

func (c *Client) fetch(ctx context.Context, base string) (map[string]float64, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, base)
	c.log.Debug().Str("url", url).Msg("Fetching rates")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result struct {
		Base  string             `json:"base"`
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(result.Rates) == 0 {
		return nil, fmt.Errorf("no rates for %s", base)
	}
	return result.Rates, nil
}
