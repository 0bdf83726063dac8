package market

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haqhal13/EDGEBOTPRO/internal/metrics"
	"github.com/haqhal13/EDGEBOTPRO/internal/signal"
)

type wsTick struct {
	Market string  `json:"market"`
	Up     float64 `json:"up"`
	Down   float64 `json:"down"`
	TsMs   int64   `json:"ts_ms"`
}

func (f *Feed) runWS(ctx context.Context, out chan<- signal.PriceTick) error {
	if f.wsURL == "" {
		return fmt.Errorf("ws feed requires an endpoint url")
	}

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := f.consumeWS(ctx, out); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.log.Warn().Err(err).Msg("price feed disconnected, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
			continue
		}
		return nil
	}
}

func (f *Feed) consumeWS(ctx context.Context, out chan<- signal.PriceTick) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	f.log.Info().Str("provider", ProviderWS).Str("url", f.wsURL).Msg("connected price feed")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					f.log.Warn().Err(err).Msg("feed ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var raw wsTick
		if err := json.Unmarshal(message, &raw); err != nil {
			f.log.Warn().Err(err).Msg("failed to decode feed message")
			continue
		}
		if raw.Market == "" || raw.Up <= 0 || raw.Down <= 0 {
			continue
		}
		tick := signal.PriceTick{
			Market: raw.Market,
			Up:     raw.Up,
			Down:   raw.Down,
			Ts:     time.UnixMilli(raw.TsMs),
		}
		if math.Abs(tick.Up+tick.Down-1.0) > parityTolerance {
			metrics.ParityBreaksTotal.Inc()
			f.log.Debug().Str("market", tick.Market).Float64("sum", tick.Up+tick.Down).Msg("side prices break the sum-to-one check")
		}

		select {
		case out <- tick:
			metrics.TicksTotal.WithLabelValues(tick.Market).Inc()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
