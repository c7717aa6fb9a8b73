// Package twelvedata implements a price source backed by the Twelve Data
// time_series REST endpoint, plus the quote endpoint for fundamentals.
package twelvedata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	apperrors "github.com/Azmorus/GPTScreener/internal/errors"
	"github.com/Azmorus/GPTScreener/internal/models"
)

// DefaultBaseURL is the public Twelve Data API endpoint.
const DefaultBaseURL = "https://api.twelvedata.com"

// Client is the Twelve Data API client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// ClientOptions holds options for creating a new Twelve Data client.
type ClientOptions struct {
	APIKey         string
	BaseURL        string
	RequestTimeout time.Duration
	RequestsPerMin int
	HTTPClient     *http.Client
	Logger         zerolog.Logger
}

// NewClient creates a new Twelve Data API client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.RequestsPerMin <= 0 {
		opts.RequestsPerMin = 8
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.RequestTimeout}
	}

	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMin)), 1),
		logger:     opts.Logger.With().Str("component", "twelvedata_client").Logger(),
	}
}

// Bar is one row of a time series as the API returns it. Prices stay as the
// API's decimal strings.
type Bar struct {
	Datetime string `json:"datetime"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

// TimeSeries is a decoded time_series response, oldest bar first.
type TimeSeries struct {
	Symbol   string
	Interval string
	Bars     []Bar
}

// apiStatus is the error envelope shared by every endpoint. Failures arrive
// with HTTP 200 and status "error".
type apiStatus struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type timeSeriesResponse struct {
	apiStatus
	Meta struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	} `json:"meta"`
	Values []Bar `json:"values"`
}

// TimeSeries fetches up to outputSize bars of symbol at interval.
func (c *Client) TimeSeries(ctx context.Context, symbol, interval string, outputSize int) (*TimeSeries, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("interval", interval)
	q.Set("outputsize", strconv.Itoa(outputSize))

	c.logger.Debug().
		Str("symbol", symbol).
		Str("interval", interval).
		Int("outputsize", outputSize).
		Msg("Fetching time series")

	var data timeSeriesResponse
	if err := c.get(ctx, "/time_series", q, &data, &data.apiStatus); err != nil {
		return nil, err
	}
	if len(data.Values) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrDataNotFound, "twelvedata returned no values for %s", symbol)
	}

	sort.SliceStable(data.Values, func(i, j int) bool {
		return data.Values[i].Datetime < data.Values[j].Datetime
	})

	c.logger.Debug().Str("symbol", symbol).Int("count", len(data.Values)).Msg("Fetched time series")

	sym := data.Meta.Symbol
	if sym == "" {
		sym = symbol
	}
	return &TimeSeries{Symbol: sym, Interval: interval, Bars: data.Values}, nil
}

// FiftyTwoWeek is the 52 week range block of a quote.
type FiftyTwoWeek struct {
	Low   string `json:"low"`
	High  string `json:"high"`
	Range string `json:"range"`
}

// Quote is the latest quote and fundamentals snapshot for a symbol. Numbers
// stay as the API's decimal strings.
type Quote struct {
	Symbol        string       `json:"symbol"`
	Name          string       `json:"name"`
	Exchange      string       `json:"exchange"`
	Currency      string       `json:"currency"`
	Datetime      string       `json:"datetime"`
	Open          string       `json:"open"`
	High          string       `json:"high"`
	Low           string       `json:"low"`
	Close         string       `json:"close"`
	Volume        string       `json:"volume"`
	PreviousClose string       `json:"previous_close"`
	Change        string       `json:"change"`
	PercentChange string       `json:"percent_change"`
	AverageVolume string       `json:"average_volume"`
	IsMarketOpen  bool         `json:"is_market_open"`
	FiftyTwoWeek  FiftyTwoWeek `json:"fifty_two_week"`
}

// Quote fetches the latest quote for symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*Quote, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	c.logger.Debug().Str("symbol", symbol).Msg("Fetching quote")

	var data struct {
		apiStatus
		Quote
	}
	if err := c.get(ctx, "/quote", q, &data, &data.apiStatus); err != nil {
		return nil, err
	}
	if data.Quote.Symbol == "" && data.Quote.Close == "" {
		return nil, apperrors.Wrapf(apperrors.ErrDataNotFound, "twelvedata returned no quote for %s", symbol)
	}
	if data.Quote.Symbol == "" {
		data.Quote.Symbol = symbol
	}
	return &data.Quote, nil
}

// get performs a rate limited GET of path and decodes the body into out.
// status must point into out so API error payloads are recognized.
func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}, status *apiStatus) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	q.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}
	if status.Status == "error" {
		c.logger.Warn().Str("path", path).Int("code", status.Code).Str("message", status.Message).Msg("Twelve Data API error")
		return statusError(status.Code, status.Message)
	}
	return nil
}

// Candles converts the bars to candles, skipping rows whose timestamp or
// prices cannot be parsed.
func (ts *TimeSeries) Candles() []models.Candle {
	candles := make([]models.Candle, 0, len(ts.Bars))
	for _, b := range ts.Bars {
		t, err := parseDatetime(b.Datetime)
		if err != nil {
			continue
		}
		c := models.Candle{Timestamp: t}
		var ok bool
		if c.Open, ok = parseFloat(b.Open); !ok {
			continue
		}
		if c.High, ok = parseFloat(b.High); !ok {
			continue
		}
		if c.Low, ok = parseFloat(b.Low); !ok {
			continue
		}
		if c.Close, ok = parseFloat(b.Close); !ok {
			continue
		}
		if v, err := strconv.ParseFloat(b.Volume, 64); err == nil {
			c.Volume = int64(v)
		}
		candles = append(candles, c)
	}
	return candles
}

// Closes returns the raw close strings, oldest first.
func (ts *TimeSeries) Closes() []string {
	out := make([]string, len(ts.Bars))
	for i, b := range ts.Bars {
		out[i] = b.Close
	}
	return out
}

func statusError(code int, message string) error {
	var kind error
	switch code {
	case http.StatusBadRequest, http.StatusNotFound:
		kind = apperrors.ErrSymbolNotFound
	case http.StatusTooManyRequests:
		kind = apperrors.ErrRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = apperrors.ErrConfigInvalid
	default:
		kind = apperrors.ErrConnectionFailed
	}
	return apperrors.NewAPIError(code, message, kind)
}

func (c *Client) transportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = redactAPIKey(urlErr.URL)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || (urlErr != nil && urlErr.Timeout()) {
		return fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", apperrors.ErrConnectionFailed, err)
}

// redactAPIKey masks the apikey query parameter of a request URL.
func redactAPIKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[redacted url]"
	}
	q := u.Query()
	if q.Has("apikey") {
		q.Set("apikey", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

var datetimeLayouts = []string{"2006-01-02 15:04:05", "2006-01-02"}

func parseDatetime(s string) (time.Time, error) {
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}
