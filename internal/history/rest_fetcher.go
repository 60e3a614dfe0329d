package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"arbscope/internal/domain"

	"github.com/shopspring/decimal"
)

// barRow is one bar in the canonical bars endpoint response. Prices come
// as strings to survive the JSON float round-trip.
type barRow struct {
	Start  int64  `json:"start"` // unix ms, bar-start boundary
	Open   string `json:"open"`
	High   string `json:"high"`
	Low    string `json:"low"`
	Close  string `json:"close"`
	Volume string `json:"volume"`
}

// RESTBarFetcher pulls bars from the canonical history endpoint. Vendor
// wire formats are normalized behind that endpoint; this client only
// speaks the canonical schema.
type RESTBarFetcher struct {
	baseURL    string
	httpClient *http.Client
}

// NewRESTBarFetcher creates a fetcher against baseURL. The client timeout
// is a safety net; per-attempt deadlines come from the caller's context.
func NewRESTBarFetcher(baseURL string) *RESTBarFetcher {
	return &RESTBarFetcher{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchBars requests bars for one gap range.
func (f *RESTBarFetcher) FetchBars(ctx context.Context, venue, pair string, interval domain.Interval, r domain.TimeRange) ([]domain.OHLCVBar, error) {
	q := url.Values{}
	q.Set("venue", venue)
	q.Set("pair", pair)
	q.Set("interval", string(interval))
	q.Set("start", strconv.FormatInt(r.Start.UnixMilli(), 10))
	q.Set("end", strconv.FormatInt(r.End.UnixMilli(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, domain.NewFatalNetworkError("build request", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewNetworkError("fetch bars", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("bad status: %s", resp.Status)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, domain.NewFatalNetworkError("fetch bars", err)
		}
		return nil, domain.NewNetworkError("fetch bars", err)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewNetworkError("read response", err)
	}

	var rows []barRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, domain.NewFatalNetworkError("decode response", err)
	}

	bars := make([]domain.OHLCVBar, 0, len(rows))
	for _, row := range rows {
		bar, err := row.toBar(venue, pair, interval)
		if err != nil {
			return nil, domain.NewFatalNetworkError("decode bar", err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func (r barRow) toBar(venue, pair string, interval domain.Interval) (domain.OHLCVBar, error) {
	bar := domain.OHLCVBar{
		Venue:    venue,
		Pair:     pair,
		Interval: interval,
		Start:    time.UnixMilli(r.Start).UTC(),
	}

	var err error
	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&bar.Open, r.Open},
		{&bar.High, r.High},
		{&bar.Low, r.Low},
		{&bar.Close, r.Close},
		{&bar.Volume, r.Volume},
	}
	for _, f := range fields {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return domain.OHLCVBar{}, fmt.Errorf("bad decimal %q: %w", f.src, err)
		}
	}
	return bar, nil
}
