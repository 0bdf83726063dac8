package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

// HTTPSource talks to the venue's REST API. It serves as the engine's
// PriceSource and MetadataSource, and surfaces the tracked trader's fills.
type HTTPSource struct {
	log     zerolog.Logger
	client  *http.Client
	baseURL string
	trader  string
}

// NewHTTPSource builds a REST-backed source. trader may be empty when no
// external trader is being shadowed.
func NewHTTPSource(baseURL, trader string, log zerolog.Logger) *HTTPSource {
	return &HTTPSource{
		log:     log,
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		trader:  trader,
	}
}

type midPriceResponse struct {
	Mid float64 `json:"mid"`
}

// MidPrice fetches a single asset's mid-price. Failures are logged at debug
// level and reported as ok=false so the caller treats them as "no update".
func (s *HTTPSource) MidPrice(ctx context.Context, asset string) (float64, bool) {
	if asset == "" {
		return 0, false
	}
	var payload midPriceResponse
	endpoint := fmt.Sprintf("%s/price/%s", s.baseURL, url.PathEscape(asset))
	if err := s.getJSON(ctx, endpoint, &payload); err != nil {
		s.log.Debug().Err(err).Str("asset", asset).Msg("mid-price fetch failed")
		return 0, false
	}
	if payload.Mid <= 0 || payload.Mid >= 1 {
		return 0, false
	}
	return payload.Mid, true
}

type marketsResponse struct {
	Markets []Market `json:"markets"`
}

// ActiveMarkets lists currently tradable markets.
func (s *HTTPSource) ActiveMarkets(ctx context.Context) ([]Market, error) {
	var payload marketsResponse
	if err := s.getJSON(ctx, s.baseURL+"/markets", &payload); err != nil {
		return nil, err
	}
	for i := range payload.Markets {
		payload.Markets[i].Category = NormalizeCategory(payload.Markets[i].Category)
	}
	return payload.Markets, nil
}

type tradesResponse struct {
	Trades []ObservedTrade `json:"trades"`
}

// ObservedTrades returns the shadowed trader's recent fills.
func (s *HTTPSource) ObservedTrades(ctx context.Context) ([]ObservedTrade, error) {
	if s.trader == "" {
		return nil, nil
	}
	var payload tradesResponse
	endpoint := fmt.Sprintf("%s/trades?trader=%s", s.baseURL, url.QueryEscape(s.trader))
	if err := s.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}
	return payload.Trades, nil
}

func (s *HTTPSource) getJSON(ctx context.Context, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "edgebotpro/1.0 (paper)")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("http do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// runHTTP polls the REST source on an interval and converts its prices into
// ticks for every tracked market.
func (f *Feed) runHTTP(ctx context.Context, out chan<- signal.PriceTick) error {
	if f.baseURL == "" {
		return fmt.Errorf("http feed requires a base url")
	}
	src := NewHTTPSource(f.baseURL, "", f.log)

	if err := f.pollHTTP(ctx, src, out); err != nil && !errors.Is(err, context.Canceled) {
		f.log.Warn().Err(err).Msg("initial price poll failed")
	}

	ticker := time.NewTicker(f.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := f.pollHTTP(ctx, src, out); err != nil && !errors.Is(err, context.Canceled) {
				f.log.Warn().Err(err).Msg("price poll failed")
			}
		}
	}
}

func (f *Feed) pollHTTP(ctx context.Context, src PriceSource, out chan<- signal.PriceTick) error {
	ticks := FetchTicks(ctx, src, f.snapshotMarkets(), f.batchSize, time.Now().UTC(), f.log)
	for _, tick := range ticks {
		select {
		case out <- tick:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}
