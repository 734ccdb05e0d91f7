//nolint:tagliatelle // Shopee API uses snake case
package shopee

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sig-0/cardprice/provider"
	"github.com/sig-0/cardprice/provider/currencies"
	"github.com/sig-0/cardprice/provider/httpx"
	"github.com/sig-0/cardprice/query"
	"github.com/sig-0/cardprice/storage/types"
)

const (
	Source types.Source = "shopee"

	DefaultURL = "https://shopee.com.br"

	searchLimit = 20

	// maxPlausiblePrice bounds a rescaled price
	maxPlausiblePrice = 200_000
)

// priceScales are the integer scales the API has been seen to use
var priceScales = []float64{100000, 1000, 100, 10}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	ItemBasic *itemBasic `json:"item_basic"`
	itemBasic
}

type itemBasic struct {
	Name     string   `json:"name"`
	Price    *float64 `json:"price"`
	PriceMin *float64 `json:"price_min"`
	ItemID   int64    `json:"itemid"`
	ShopID   int64    `json:"shopid"`
}

// Provider searches the Shopee storefront search API
type Provider struct {
	client  *httpx.Client
	baseURL string
}

// New creates a new Shopee adapter
func New(client *httpx.Client, baseURL string) *Provider {
	return &Provider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (p *Provider) ID() types.Source {
	return Source
}

func (p *Provider) Profile() query.Profile {
	return query.Profile{
		Locale: query.LocalePT,
		Prefix: "pokemon",
	}
}

func (p *Provider) Search(ctx context.Context, q string) ([]*types.Listing, error) {
	params := url.Values{
		"by":        []string{"relevancy"},
		"keyword":   []string{q},
		"limit":     []string{strconv.Itoa(searchLimit)},
		"newest":    []string{"0"},
		"order":     []string{"desc"},
		"page_type": []string{"search"},
		"scenario":  []string{"PAGE_GLOBAL_SEARCH"},
		"version":   []string{"2"},
	}

	headers := map[string]string{
		"Accept":           "application/json, text/plain, */*",
		"Referer":          p.baseURL + "/search",
		"X-Requested-With": "XMLHttpRequest",
	}

	body, err := p.client.Get(ctx, p.baseURL+"/api/v4/search/search_items", params, headers)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unable to decode search response: %w", err)
	}

	listings := make([]*types.Listing, 0, len(resp.Items))

	for _, it := range resp.Items {
		item := it.itemBasic
		if it.ItemBasic != nil {
			item = *it.ItemBasic
		}

		raw := item.PriceMin
		if raw == nil {
			raw = item.Price
		}

		if raw == nil || item.ItemID == 0 || item.ShopID == 0 {
			continue
		}

		listings = append(listings, &types.Listing{
			Title:    strings.TrimSpace(item.Name),
			URL:      fmt.Sprintf("%s/product/%d/%d", p.baseURL, item.ShopID, item.ItemID),
			Price:    normalizePrice(*raw),
			Currency: currencies.BRL,
			Kind:     "marketplace",
		})
	}

	return provider.Keep(Source, listings), nil
}

// normalizePrice brings a scaled integer price back to currency units
func normalizePrice(v float64) float64 {
	if v >= 1000 {
		for _, factor := range priceScales {
			if v/factor >= 1 && v/factor < maxPlausiblePrice {
				return v / factor
			}
		}
	}

	for v >= maxPlausiblePrice {
		v /= 10
	}

	return v
}
