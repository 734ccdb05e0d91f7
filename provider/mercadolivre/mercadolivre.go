//nolint:tagliatelle // Mercado Livre API uses snake case
package mercadolivre

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/sig-0/cardprice/provider"
	"github.com/sig-0/cardprice/provider/httpx"
	"github.com/sig-0/cardprice/query"
	"github.com/sig-0/cardprice/storage/types"
)

const (
	Source types.Source = "mercadolivre"

	DefaultURL  = "https://api.mercadolibre.com"
	DefaultSite = "MLB"

	searchLimit = 50
)

type searchResponse struct {
	Results []searchResult `json:"results"`
}

type searchResult struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Permalink       string  `json:"permalink"`
	CurrencyID      string  `json:"currency_id"`
	Condition       string  `json:"condition"`
	BuyingMode      string  `json:"buying_mode"`
	Seller          seller  `json:"seller"`
	Price           float64 `json:"price"`
	CatalogListing  bool    `json:"catalog_listing"`
	AvailableAmount int     `json:"available_quantity"`
}

type seller struct {
	Nickname string `json:"nickname"`
	ID       int64  `json:"id"`
}

// Provider searches the Mercado Livre public listing API
type Provider struct {
	client  *httpx.Client
	baseURL string
	site    string
	token   string
}

// New creates a new Mercado Livre adapter for the given site (MLB, MLA, MLM...).
// The access token is optional
func New(client *httpx.Client, baseURL, site, token string) *Provider {
	if site == "" {
		site = DefaultSite
	}

	return &Provider{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		site:    strings.ToUpper(site),
		token:   token,
	}
}

func (p *Provider) ID() types.Source {
	return Source
}

func (p *Provider) Profile() query.Profile {
	return query.Profile{
		Locale:     query.LocalePT,
		Prefix:     "pokemon tcg",
		BareNumber: true,
	}
}

func (p *Provider) Search(ctx context.Context, q string) ([]*types.Listing, error) {
	params := url.Values{
		"q":     []string{q},
		"limit": []string{strconv.Itoa(searchLimit)},
	}

	var headers map[string]string
	if p.token != "" {
		headers = map[string]string{"Authorization": "Bearer " + p.token}
	}

	body, err := p.client.Get(ctx, p.baseURL+"/sites/"+p.site+"/search", params, headers)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unable to decode search response: %w", err)
	}

	listings := make([]*types.Listing, 0, len(resp.Results))

	for _, r := range resp.Results {
		kind := r.BuyingMode
		if r.CatalogListing {
			kind = "catalog"
		}

		var sellerRef string
		switch {
		case r.Seller.Nickname != "":
			sellerRef = r.Seller.Nickname
		case r.Seller.ID != 0:
			sellerRef = strconv.FormatInt(r.Seller.ID, 10)
		}

		listings = append(listings, &types.Listing{
			Title:     strings.TrimSpace(r.Title),
			URL:       r.Permalink,
			Price:     r.Price,
			Currency:  types.Currency(r.CurrencyID).Normalize(),
			Condition: r.Condition,
			Seller:    sellerRef,
			Kind:      kind,
		})
	}

	return provider.Keep(Source, listings), nil
}
