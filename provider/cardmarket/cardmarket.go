package cardmarket

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/sig-0/cardprice/provider"
	"github.com/sig-0/cardprice/provider/currencies"
	"github.com/sig-0/cardprice/provider/httpx"
	"github.com/sig-0/cardprice/provider/money"
	"github.com/sig-0/cardprice/query"
	"github.com/sig-0/cardprice/storage/types"
)

const (
	Source types.Source = "cardmarket"

	DefaultURL = "https://www.cardmarket.com"

	maxRows = 12
)

var (
	// The site ships several layouts, tried in order
	rowSelectors = []string{
		".product",
		"table.table tbody tr",
		"[data-type='product']",
	}

	linkSelectors = []string{
		"a.product__name",
		"a.ellipsis",
		"a[href*='/Pokemon/Products/']",
	}

	priceSelectors = []string{
		".price-container .font-weight-bold",
		".product__footer .font-weight-bold",
		"td.text-right",
		".price",
	}

	spaceRe = regexp.MustCompile(`\s+`)

	errInvalidBaseURL = errors.New("invalid base URL")
)

// Provider scrapes the Cardmarket product search
type Provider struct {
	client *httpx.Client
	base   *url.URL
	lang   string
}

// New creates a new Cardmarket adapter. The language selects the site
// section (en, de, fr...)
func New(client *httpx.Client, baseURL, lang string) (*Provider, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", errInvalidBaseURL, baseURL)
	}

	if lang == "" {
		lang = "en"
	}

	return &Provider{
		client: client,
		base:   base,
		lang:   lang,
	}, nil
}

func (p *Provider) ID() types.Source {
	return Source
}

func (p *Provider) Profile() query.Profile {
	return query.Profile{
		Locale: query.LocaleEN,
		Prefix: "pokemon",
	}
}

func (p *Provider) Search(ctx context.Context, q string) ([]*types.Listing, error) {
	searchURL := p.base.JoinPath(p.lang, "Pokemon", "Products", "Search").String()

	doc, err := p.client.Document(ctx, searchURL, url.Values{
		"searchString": []string{q},
	})
	if err != nil {
		return nil, err
	}

	var rows *goquery.Selection
	for _, sel := range rowSelectors {
		if rows = doc.Find(sel); rows.Length() > 0 {
			break
		}
	}

	listings := make([]*types.Listing, 0, maxRows)

	rows.EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if l := p.rowListing(row); l != nil {
			listings = append(listings, l)
		}

		return len(listings) < maxRows
	})

	return provider.Keep(Source, listings), nil
}

func (p *Provider) rowListing(row *goquery.Selection) *types.Listing {
	var link *goquery.Selection

	for _, sel := range linkSelectors {
		if s := row.Find(sel).First(); s.Length() > 0 {
			link = s

			break
		}
	}

	if link == nil {
		return nil
	}

	href, ok := link.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return nil
	}

	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil
	}

	target := p.base.ResolveReference(ref)
	target.RawQuery = ""

	for _, sel := range priceSelectors {
		node := row.Find(sel).First()
		if node.Length() == 0 {
			continue
		}

		price, currency, err := money.ParsePrice(node.Text(), currencies.EUR)
		if err != nil {
			continue
		}

		return &types.Listing{
			Title:    strings.TrimSpace(spaceRe.ReplaceAllString(link.Text(), " ")),
			URL:      target.String(),
			Price:    price,
			Currency: currency,
			Kind:     "trend",
		}
	}

	return nil
}
