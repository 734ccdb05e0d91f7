package ligapokemon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/sig-0/cardprice/provider"
	"github.com/sig-0/cardprice/provider/currencies"
	"github.com/sig-0/cardprice/provider/httpx"
	"github.com/sig-0/cardprice/provider/money"
	"github.com/sig-0/cardprice/query"
	"github.com/sig-0/cardprice/storage/types"
)

const (
	Source types.Source = "ligapokemon"

	DefaultURL = "https://www.ligapokemon.com.br/"

	maxCardLinks     = 20
	maxDetailPages   = 12
	maxDetailFetches = 4
	maxPricesPerPage = 40
	sellersWindow    = 25000
)

var (
	brlRe     = regexp.MustCompile(`R\$\s*([0-9]{1,3}(?:\.[0-9]{3})*,[0-9]{2})`)
	numericRe = regexp.MustCompile(`^\s*\d+(\s*/\s*\d+)?\s*$`)
	spaceRe   = regexp.MustCompile(`\s+`)
	sellersRe = regexp.MustCompile(`(?i)lojas\s+vendendo`)

	errInvalidBaseURL = errors.New("invalid base URL")
)

// Provider scrapes the LigaPokémon card pages. A search resolves to a set
// of card detail pages, each contributing its sellers' prices
type Provider struct {
	client *httpx.Client
	base   *url.URL
}

// New creates a new LigaPokémon adapter
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
		Locale:     query.LocalePT,
		BareNumber: true,
	}
}

func (p *Provider) Search(ctx context.Context, q string) ([]*types.Listing, error) {
	params := url.Values{
		"view": []string{"cards/search"},
		"card": []string{q},
	}

	// Numeric queries search by collector number
	if numericRe.MatchString(q) {
		params.Set("tipo", "1")
	}

	body, err := p.client.Get(ctx, p.base.String(), params, nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("unable to construct query doc: %w", err)
	}

	links := p.cardLinks(doc)
	if len(links) > maxDetailPages {
		links = links[:maxDetailPages]
	}

	var (
		pages = make([][]*types.Listing, len(links))
		errs  = make([]error, len(links))
		g     errgroup.Group
	)

	g.SetLimit(maxDetailFetches)

	for i, link := range links {
		g.Go(func() error {
			pages[i], errs[i] = p.detailListings(ctx, link)

			return nil
		})
	}

	_ = g.Wait()

	listings := make([]*types.Listing, 0, len(links)*4)
	for _, page := range pages {
		listings = append(listings, page...)
	}

	if len(listings) == 0 {
		if err := errors.Join(errs...); err != nil {
			return nil, fmt.Errorf("unable to fetch card pages: %w", err)
		}
	}

	return provider.Keep(Source, listings), nil
}

// cardLinks extracts the unique absolute card detail links from a search page
func (p *Provider) cardLinks(doc *goquery.Document) []string {
	var (
		seen  = make(map[string]struct{})
		links = make([]string, 0, maxCardLinks)
	)

	doc.Find(`a[href*="view=cards/card"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")

		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}

		full := p.base.ResolveReference(ref).String()
		if _, ok := seen[full]; ok {
			return true
		}

		seen[full] = struct{}{}
		links = append(links, full)

		return len(links) < maxCardLinks
	})

	return links
}

// detailListings fetches a card page and turns every seller price into a listing
func (p *Provider) detailListings(ctx context.Context, link string) ([]*types.Listing, error) {
	body, err := p.client.Get(ctx, link, nil, nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("unable to construct query doc: %w", err)
	}

	title := strings.TrimSpace(spaceRe.ReplaceAllString(doc.Find("title").First().Text(), " "))
	if title == "" {
		return nil, nil
	}

	prices := extractPrices(sellersSection(string(body)))
	listings := make([]*types.Listing, 0, len(prices))

	for _, price := range prices {
		listings = append(listings, &types.Listing{
			Title:    title,
			URL:      link,
			Price:    price,
			Currency: currencies.BRL,
			Kind:     "store",
		})
	}

	return listings, nil
}

// sellersSection narrows the page to the sellers block, when present
func sellersSection(html string) string {
	loc := sellersRe.FindStringIndex(html)
	if loc == nil {
		return html
	}

	idx := loc[0]
	end := min(idx+sellersWindow, len(html))

	return html[idx:end]
}

func extractPrices(html string) []float64 {
	prices := make([]float64, 0, maxPricesPerPage)

	for _, m := range brlRe.FindAllStringSubmatch(html, -1) {
		v, err := money.ParseAmount(m[1])
		if err != nil {
			continue
		}

		prices = append(prices, v)

		if len(prices) == maxPricesPerPage {
			break
		}
	}

	return prices
}
