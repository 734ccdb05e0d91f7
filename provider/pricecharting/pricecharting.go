package pricecharting

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
	Source types.Source = "pricecharting"

	DefaultURL = "https://www.pricecharting.com"

	maxRows = 20
)

var (
	spaceRe = regexp.MustCompile(`\s+`)

	errInvalidBaseURL = errors.New("invalid base URL")
)

// Provider scrapes the PriceCharting price guide. Rows are reference
// prices for ungraded copies, not live offers
type Provider struct {
	client *httpx.Client
	base   *url.URL
}

// New creates a new PriceCharting adapter
func New(client *httpx.Client, baseURL string) (*Provider, error) {
	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", errInvalidBaseURL, baseURL)
	}

	return &Provider{
		client: client,
		base:   base,
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
	doc, err := p.client.Document(ctx, p.base.JoinPath("search-products").String(), url.Values{
		"q":    []string{q + " pokemon tcg"},
		"type": []string{"prices"},
	})
	if err != nil {
		return nil, err
	}

	listings := make([]*types.Listing, 0, maxRows)

	doc.Find("table#games_table tbody tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if l := p.rowListing(row); l != nil {
			listings = append(listings, l)
		}

		return len(listings) < maxRows
	})

	return provider.Keep(Source, listings), nil
}

func (p *Provider) rowListing(row *goquery.Selection) *types.Listing {
	link := row.Find("td.title a[href]").First()
	if link.Length() == 0 {
		link = row.Find("td a[href]").First()
	}

	href, ok := link.Attr("href")
	if !ok {
		return nil
	}

	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return nil
	}

	priceNode := row.Find("td.used_price .js-price").First()
	if priceNode.Length() == 0 {
		priceNode = row.Find("td.price").First()
	}

	price, currency, err := money.ParsePrice(priceNode.Text(), currencies.USD)
	if err != nil {
		return nil
	}

	title := strings.TrimSpace(spaceRe.ReplaceAllString(link.Text(), " "))

	// The console column carries the set name
	if set := strings.TrimSpace(row.Find("td.console").First().Text()); set != "" {
		title += " " + spaceRe.ReplaceAllString(set, " ")
	}

	return &types.Listing{
		Title:     title,
		URL:       p.base.ResolveReference(ref).String(),
		Price:     price,
		Currency:  currency,
		Condition: "ungraded",
		Kind:      "reference",
	}
}
