package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tradelab/types"
)

const (
	handshakeTimeout = 10 * time.Second
	pingInterval     = 20 * time.Second
	writeTimeout     = 10 * time.Second

	backoffBase = 1 * time.Second
	backoffMax  = 60 * time.Second
)

// Stream subscribes to a kline websocket feed and emits a bar for every
// CLOSED candle. Candle updates for the bar still forming are dropped, so
// downstream consumers see each bar exactly once.
type Stream struct {
	url      string
	symbol   string
	interval types.Interval
	bars     chan types.Bar
}

func NewStream(url, symbol string, interval types.Interval) *Stream {
	return &Stream{
		url:      url,
		symbol:   symbol,
		interval: interval,
		bars:     make(chan types.Bar, 16),
	}
}

// Bars is the channel Run delivers closed candles on. It is closed when
// Run returns.
func (s *Stream) Bars() <-chan types.Bar {
	return s.bars
}

// Run dials, subscribes and pumps bars until the context is done,
// reconnecting with exponential backoff after connection failures.
// Run may be called once.
func (s *Stream) Run(ctx context.Context) error {
	defer close(s.bars)

	retry := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := s.dial(ctx)
		if err != nil {
			delay := streamBackoff(retry)
			retry++
			log.Warn().Err(err).Str("symbol", s.symbol).Dur("retry_in", delay).Msg("stream connect failed")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
		retry = 0
		log.Info().Str("symbol", s.symbol).Str("interval", string(s.interval)).Msg("stream connected")

		// Closing the connection is the only way to unblock a pending
		// read, so a watcher does it when the context ends. The watcher
		// also keeps the connection alive with protocol pings.
		stop := make(chan struct{})
		go func() {
			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					conn.Close()
					return
				case <-stop:
					return
				case <-ticker.C:
					conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						conn.Close()
						return
					}
				}
			}
		}()

		err = s.pump(ctx, conn)
		close(stop)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Str("symbol", s.symbol).Msg("stream dropped, reconnecting")
	}
}

func (s *Stream) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, s.url, http.Header{})
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": []string{strings.ToLower(s.symbol) + "@kline_" + string(s.interval)},
		"id":     time.Now().Unix(),
	}
	if err := conn.WriteJSON(payload); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return conn, nil
}

func (s *Stream) pump(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		bar, err := parseKline(raw)
		if err != nil {
			log.Warn().Err(err).Msg("dropping unreadable stream message")
			continue
		}
		if bar == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case s.bars <- *bar:
		}
	}
}

type klineEvent struct {
	Event string `json:"e"`
	Kline struct {
		Start    int64  `json:"t"`
		Symbol   string `json:"s"`
		Interval string `json:"i"`
		Open     string `json:"o"`
		Close    string `json:"c"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Volume   string `json:"v"`
		Closed   bool   `json:"x"`
	} `json:"k"`
}

// parseKline returns the bar for a closed kline event, nil for events that
// are not closed klines, and an error for messages that cannot be read.
func parseKline(raw []byte) (*types.Bar, error) {
	var evt klineEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, fmt.Errorf("parse kline: %w", err)
	}
	if evt.Event != "kline" || !evt.Kline.Closed {
		return nil, nil
	}

	bar := &types.Bar{
		Symbol:   evt.Kline.Symbol,
		Interval: types.Interval(evt.Kline.Interval),
		Time:     time.UnixMilli(evt.Kline.Start),
	}
	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&bar.Open, evt.Kline.Open},
		{&bar.High, evt.Kline.High},
		{&bar.Low, evt.Kline.Low},
		{&bar.Close, evt.Kline.Close},
		{&bar.Volume, evt.Kline.Volume},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, fmt.Errorf("parse kline price %q: %w", f.src, err)
		}
		*f.dst = v
	}
	return bar, nil
}

// streamBackoff returns the reconnect delay for a given retry count,
// doubling from backoffBase and capped at backoffMax.
func streamBackoff(retryCount int) time.Duration {
	if retryCount < 0 {
		return backoffBase
	}
	// 1<<30 seconds already exceeds any sane cap.
	if retryCount > 30 {
		return backoffMax
	}
	delay := backoffBase * time.Duration(1<<retryCount)
	if delay > backoffMax {
		return backoffMax
	}
	return delay
}
