package ebay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sig-0/cardprice/provider"
	"github.com/sig-0/cardprice/provider/httpx"
	"github.com/sig-0/cardprice/query"
	"github.com/sig-0/cardprice/storage/types"
)

const (
	Source types.Source = "ebay"

	DefaultURL         = "https://api.ebay.com"
	DefaultScope       = "https://api.ebay.com/oauth/api_scope"
	DefaultMarketplace = "EBAY_US"

	searchLimit  = 50
	maxListings  = 40
	tokenLeeway  = 60 * time.Second
	buyingFilter = "buyingOptions:{FIXED_PRICE|AUCTION}"
)

var (
	ErrMissingCredentials = errors.New("ebay credentials not configured")
	errInvalidToken       = errors.New("invalid token response")
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

type searchResponse struct {
	ItemSummaries []itemSummary `json:"itemSummaries"`
}

type itemSummary struct {
	CurrentBidPrice *amount     `json:"currentBidPrice"`
	Price           *amount     `json:"price"`
	Seller          *sellerInfo `json:"seller"`
	Title           string      `json:"title"`
	ItemWebURL      string      `json:"itemWebUrl"`
	Condition       string      `json:"condition"`
	BuyingOptions   []string    `json:"buyingOptions"`
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type sellerInfo struct {
	Username string `json:"username"`
}

// Credentials are the eBay application keys
type Credentials struct {
	ClientID     string
	ClientSecret string
	Scope        string
}

// Provider searches the eBay Browse API
type Provider struct {
	expiresAt   time.Time
	client      *httpx.Client
	now         func() time.Time
	creds       Credentials
	baseURL     string
	marketplace string
	token       string

	tokenMux sync.Mutex
}

// New creates a new eBay adapter for the given marketplace (EBAY_US, EBAY_GB...)
func New(client *httpx.Client, baseURL, marketplace string, creds Credentials) *Provider {
	if marketplace == "" {
		marketplace = DefaultMarketplace
	}

	if creds.Scope == "" {
		creds.Scope = DefaultScope
	}

	return &Provider{
		client:      client,
		now:         time.Now,
		creds:       creds,
		baseURL:     strings.TrimRight(baseURL, "/"),
		marketplace: marketplace,
	}
}

func (p *Provider) ID() types.Source {
	return Source
}

func (p *Provider) Profile() query.Profile {
	return query.Profile{
		Locale:      query.LocaleEN,
		Prefix:      "pokemon",
		SplitNumber: true,
	}
}

func (p *Provider) Search(ctx context.Context, q string) ([]*types.Listing, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{
		"q":      []string{q},
		"filter": []string{buyingFilter},
		"limit":  []string{strconv.Itoa(searchLimit)},
	}

	headers := map[string]string{
		"Authorization":           "Bearer " + token,
		"X-EBAY-C-MARKETPLACE-ID": p.marketplace,
	}

	body, err := p.client.Get(ctx, p.baseURL+"/buy/browse/v1/item_summary/search", params, headers)
	if err != nil {
		return nil, err
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unable to decode search response: %w", err)
	}

	listings := make([]*types.Listing, 0, len(resp.ItemSummaries))

	for _, item := range resp.ItemSummaries {
		price := item.Price
		kind := "FIXED_PRICE"

		if price == nil || price.Value == "" {
			price = item.CurrentBidPrice
			kind = "AUCTION"
		}

		if price == nil {
			continue
		}

		value, err := strconv.ParseFloat(price.Value, 64)
		if err != nil {
			continue
		}

		if len(item.BuyingOptions) > 0 {
			kind = item.BuyingOptions[0]
		}

		l := &types.Listing{
			Title:     strings.TrimSpace(item.Title),
			URL:       item.ItemWebURL,
			Price:     value,
			Currency:  types.Currency(price.Currency).Normalize(),
			Condition: item.Condition,
			Kind:      kind,
		}

		if item.Seller != nil {
			l.Seller = item.Seller.Username
		}

		listings = append(listings, l)

		if len(listings) == maxListings {
			break
		}
	}

	return provider.Keep(Source, listings), nil
}

// accessToken returns a cached application token, refreshing it shortly
// before expiry
func (p *Provider) accessToken(ctx context.Context) (string, error) {
	if p.creds.ClientID == "" || p.creds.ClientSecret == "" {
		return "", ErrMissingCredentials
	}

	p.tokenMux.Lock()
	defer p.tokenMux.Unlock()

	if p.token != "" && p.now().Before(p.expiresAt) {
		return p.token, nil
	}

	body, err := p.client.PostForm(
		ctx,
		p.baseURL+"/identity/v1/oauth2/token",
		map[string]string{
			"grant_type": "client_credentials",
			"scope":      p.creds.Scope,
		},
		p.creds.ClientID,
		p.creds.ClientSecret,
	)
	if err != nil {
		return "", fmt.Errorf("unable to fetch access token: %w", err)
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unable to decode token response: %w", err)
	}

	if resp.AccessToken == "" {
		return "", errInvalidToken
	}

	ttl := time.Duration(resp.ExpiresIn)*time.Second - tokenLeeway
	if ttl < 0 {
		ttl = 0
	}

	p.token = resp.AccessToken
	p.expiresAt = p.now().Add(ttl)

	return p.token, nil
}
