package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
)

// Source is one external rate feed. A source quotes a subset of the
// instruments; the manager walks sources in priority order and only asks
// each for instruments still missing.
type Source interface {
	Name() string
	// Available reports whether the source can be queried at all
	// (typically: its credential is configured). Unavailable sources are
	// skipped silently.
	Available() bool
	// Fetch returns quotes keyed by instrument name. Partial coverage is
	// normal; instruments the source does not quote are simply absent.
	Fetch(ctx context.Context) (map[string]float64, error)
}

func newRateHTTPClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

// GoldPriceSource quotes gold and silver spot prices from the public
// goldprice.org feed. No credential needed.
type GoldPriceSource struct {
	endpoint string
	client   *http.Client
}

// NewGoldPriceSource builds the primary spot-price source. An empty
// endpoint uses the public feed.
func NewGoldPriceSource(endpoint string) *GoldPriceSource {
	if endpoint == "" {
		endpoint = "https://data-asg.goldprice.org/dbXRates/USD"
	}
	return &GoldPriceSource{endpoint: endpoint, client: newRateHTTPClient()}
}

func (g *GoldPriceSource) Name() string    { return "goldprice" }
func (g *GoldPriceSource) Available() bool { return true }

type goldPriceResponse struct {
	Items []struct {
		XAUPrice float64 `json:"xauPrice"`
		XAGPrice float64 `json:"xagPrice"`
	} `json:"items"`
}

func (g *GoldPriceSource) Fetch(ctx context.Context) (map[string]float64, error) {
	var resp goldPriceResponse
	if err := getJSON(ctx, g.client, g.endpoint, &resp); err != nil {
		return nil, eris.Wrap(err, "rates: goldprice fetch")
	}
	if len(resp.Items) == 0 {
		return nil, eris.New("rates: goldprice returned no items")
	}
	item := resp.Items[0]
	out := map[string]float64{}
	if item.XAUPrice > 0 {
		out[InstrumentGold] = item.XAUPrice
	}
	if item.XAGPrice > 0 {
		out[InstrumentSilver] = item.XAGPrice
	}
	return out, nil
}

// MetalsSource quotes gold and silver from a keyed multi-metal API
// (metals.dev shape). Used as the secondary source when the public feed
// misses an instrument.
type MetalsSource struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewMetalsSource builds the secondary metal source. Without an API key the
// source reports unavailable and is skipped.
func NewMetalsSource(apiKey, endpoint string) *MetalsSource {
	if endpoint == "" {
		endpoint = "https://api.metals.dev/v1/latest"
	}
	return &MetalsSource{apiKey: apiKey, endpoint: endpoint, client: newRateHTTPClient()}
}

func (m *MetalsSource) Name() string    { return "metals" }
func (m *MetalsSource) Available() bool { return m.apiKey != "" }

type metalsResponse struct {
	Status string `json:"status"`
	Metals struct {
		Gold   float64 `json:"gold"`
		Silver float64 `json:"silver"`
	} `json:"metals"`
}

func (m *MetalsSource) Fetch(ctx context.Context) (map[string]float64, error) {
	url := fmt.Sprintf("%s?api_key=%s&currency=USD&unit=toz", m.endpoint, m.apiKey)
	var resp metalsResponse
	if err := getJSON(ctx, m.client, url, &resp); err != nil {
		return nil, eris.Wrap(err, "rates: metals fetch")
	}
	if resp.Status != "" && resp.Status != "success" {
		return nil, eris.Errorf("rates: metals status %s", resp.Status)
	}
	out := map[string]float64{}
	if resp.Metals.Gold > 0 {
		out[InstrumentGold] = resp.Metals.Gold
	}
	if resp.Metals.Silver > 0 {
		out[InstrumentSilver] = resp.Metals.Silver
	}
	return out, nil
}

// CurrencySource quotes USD conversion rates from a public exchange-rate
// table (open.er-api.com shape). Tertiary: it only ever covers the
// currency instrument.
type CurrencySource struct {
	endpoint string
	client   *http.Client
}

// NewCurrencySource builds the tertiary currency source. An empty endpoint
// uses the public feed.
func NewCurrencySource(endpoint string) *CurrencySource {
	if endpoint == "" {
		endpoint = "https://open.er-api.com/v6/latest/USD"
	}
	return &CurrencySource{endpoint: endpoint, client: newRateHTTPClient()}
}

func (c *CurrencySource) Name() string    { return "currency" }
func (c *CurrencySource) Available() bool { return true }

type currencyResponse struct {
	Result string             `json:"result"`
	Rates  map[string]float64 `json:"rates"`
}

func (c *CurrencySource) Fetch(ctx context.Context) (map[string]float64, error) {
	var resp currencyResponse
	if err := getJSON(ctx, c.client, c.endpoint, &resp); err != nil {
		return nil, eris.Wrap(err, "rates: currency fetch")
	}
	if resp.Result != "" && resp.Result != "success" {
		return nil, eris.Errorf("rates: currency result %s", resp.Result)
	}
	egp, ok := resp.Rates["EGP"]
	if !ok || egp <= 0 {
		return nil, eris.New("rates: currency table missing EGP")
	}
	return map[string]float64{InstrumentUSDToEGP: egp}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "finance-api/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return eris.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
