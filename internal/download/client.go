package download

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"tradelab/types"
)

const (
	// pageLimit is the server's maximum rows per response. Longer ranges
	// are fetched by advancing the cursor past the last returned date.
	pageLimit = 1000

	requestTimeout = 30 * time.Second

	dateLayout = "2006-01-02"
)

// Client talks to the daily-bars API. Every request carries the account
// token as a bearer header.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// ListInstruments returns the instruments listed on the API, optionally
// filtered by exchange.
func (c *Client) ListInstruments(ctx context.Context, exchange string) ([]Instrument, error) {
	params := url.Values{}
	if exchange != "" {
		params.Set("exchange", exchange)
	}

	var rows []Instrument
	if err := c.getJSON(ctx, "/instruments", params, &rows); err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	return rows, nil
}

type dailyBarRow struct {
	Date   string      `json:"date"`
	Open   json.Number `json:"open"`
	High   json.Number `json:"high"`
	Low    json.Number `json:"low"`
	Close  json.Number `json:"close"`
	Volume json.Number `json:"volume"`
}

// GetDailyBars fetches daily bars for symbol over [start, end], both ends
// inclusive, paging until the server returns a short page.
func (c *Client) GetDailyBars(ctx context.Context, symbol string, start, end time.Time) ([]types.Bar, error) {
	var bars []types.Bar
	cursor := start
	for {
		params := url.Values{}
		params.Set("symbol", symbol)
		params.Set("start", cursor.Format(dateLayout))
		params.Set("end", end.Format(dateLayout))
		params.Set("limit", strconv.Itoa(pageLimit))

		var rows []dailyBarRow
		if err := c.getJSON(ctx, "/daily", params, &rows); err != nil {
			return nil, fmt.Errorf("daily bars %s: %w", symbol, err)
		}
		for _, row := range rows {
			bar, err := rowToBar(symbol, row)
			if err != nil {
				return nil, fmt.Errorf("daily bars %s: %w", symbol, err)
			}
			bars = append(bars, bar)
		}
		if len(rows) < pageLimit {
			return bars, nil
		}

		next := bars[len(bars)-1].Time.AddDate(0, 0, 1)
		if !next.After(cursor) {
			return nil, fmt.Errorf("daily bars %s: cursor stuck at %s", symbol, cursor.Format(dateLayout))
		}
		cursor = next
	}
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, target interface{}) error {
	u, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func rowToBar(symbol string, row dailyBarRow) (types.Bar, error) {
	ts, err := time.Parse(dateLayout, row.Date)
	if err != nil {
		return types.Bar{}, fmt.Errorf("parse date %q: %w", row.Date, err)
	}

	bar := types.Bar{
		Symbol:   symbol,
		Interval: types.Day,
		Time:     ts,
	}
	fields := []struct {
		dst *decimal.Decimal
		src json.Number
	}{
		{&bar.Open, row.Open},
		{&bar.High, row.High},
		{&bar.Low, row.Low},
		{&bar.Close, row.Close},
		{&bar.Volume, row.Volume},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.src.String())
		if err != nil {
			return types.Bar{}, fmt.Errorf("parse value %q: %w", f.src, err)
		}
		*f.dst = v
	}
	return bar, nil
}
