package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sig-0/cardprice/provider/httpx"
	"github.com/sig-0/cardprice/storage/types"
)

const (
	ExchangerateHostURL = "https://api.exchangerate.host"
	OpenERAPIURL        = "https://open.er-api.com"
)

var errRateMissing = errors.New("rate missing from response")

// ExchangerateHost is the exchangerate.host rate provider
type ExchangerateHost struct {
	client    *httpx.Client
	baseURL   string
	accessKey string
}

// NewExchangerateHost creates a new exchangerate.host provider.
// The access key is optional
func NewExchangerateHost(client *httpx.Client, baseURL, accessKey string) *ExchangerateHost {
	return &ExchangerateHost{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		accessKey: accessKey,
	}
}

func (p *ExchangerateHost) Name() string {
	return "exchangerate.host"
}

func (p *ExchangerateHost) Rate(ctx context.Context, base, quote types.Currency) (float64, error) {
	params := url.Values{
		"base":    []string{base.String()},
		"symbols": []string{quote.String()},
	}

	if p.accessKey != "" {
		params.Set("access_key", p.accessKey)
	}

	body, err := p.client.Get(ctx, p.baseURL+"/latest", params, nil)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Rates  map[string]float64 `json:"rates"`
		Quotes map[string]float64 `json:"quotes"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("unable to decode response: %w", err)
	}

	if r, ok := resp.Rates[quote.String()]; ok {
		return r, nil
	}

	// The keyed API variant reports "USDBRL" style quotes
	if r, ok := resp.Quotes[base.String()+quote.String()]; ok {
		return r, nil
	}

	return 0, fmt.Errorf("%w: %s/%s", errRateMissing, base, quote)
}

// OpenERAPI is the open.er-api.com rate provider
type OpenERAPI struct {
	client  *httpx.Client
	baseURL string
}

// NewOpenERAPI creates a new open.er-api.com provider
func NewOpenERAPI(client *httpx.Client, baseURL string) *OpenERAPI {
	return &OpenERAPI{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (p *OpenERAPI) Name() string {
	return "open.er-api.com"
}

func (p *OpenERAPI) Rate(ctx context.Context, base, quote types.Currency) (float64, error) {
	body, err := p.client.Get(ctx, p.baseURL+"/v6/latest/"+url.PathEscape(base.String()), nil, nil)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Rates  map[string]float64 `json:"rates"`
		Result string             `json:"result"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("unable to decode response: %w", err)
	}

	if resp.Result != "" && resp.Result != "success" {
		return 0, fmt.Errorf("provider reported %q", resp.Result)
	}

	r, ok := resp.Rates[quote.String()]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", errRateMissing, base, quote)
	}

	return r, nil
}
