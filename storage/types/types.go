package types

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var errInvalidNumber = errors.New("invalid printed number")

type Currency string

func (c Currency) String() string {
	return string(c)
}

// Normalize returns the upper-cased, trimmed currency code
func (c Currency) Normalize() Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(string(c))))
}

type RateType string

const (
	RateTypeMID      RateType = "MID"
	RateTypeOverride RateType = "OVERRIDE"
)

func (r RateType) String() string {
	return string(r)
}

// Source identifies a marketplace adapter
type Source string

func (s Source) String() string {
	return string(s)
}

type ExchangeRate struct {
	AsOf      time.Time `json:"as_of"`
	FetchedAt time.Time `json:"fetched_at"`
	Base      Currency  `json:"base"`
	Target    Currency  `json:"target"`
	RateType  RateType  `json:"rate_type"`
	Source    string    `json:"source"`
	Rate      float64   `json:"rate"`
}

// PrintedNumber is the collector number printed on a card ("4/102").
// Zero values mean the part is unknown
type PrintedNumber struct {
	Numerator   int `json:"numerator,omitempty"`
	Denominator int `json:"denominator,omitempty"`
}

// ParsePrintedNumber parses "X/Y" or "X". Leading zeros are tolerated
func ParsePrintedNumber(s string) (PrintedNumber, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PrintedNumber{}, nil
	}

	num, den, hasDen := strings.Cut(s, "/")

	x, err := strconv.Atoi(strings.TrimSpace(num))
	if err != nil || x <= 0 {
		return PrintedNumber{}, fmt.Errorf("%w: %q", errInvalidNumber, s)
	}

	n := PrintedNumber{Numerator: x}

	if hasDen {
		y, err := strconv.Atoi(strings.TrimSpace(den))
		if err != nil || y <= 0 {
			return PrintedNumber{}, fmt.Errorf("%w: %q", errInvalidNumber, s)
		}

		n.Denominator = y
	}

	return n, nil
}

func (n PrintedNumber) HasNumerator() bool {
	return n.Numerator > 0
}

// Full reports whether both parts of the number are known
func (n PrintedNumber) Full() bool {
	return n.Numerator > 0 && n.Denominator > 0
}

func (n PrintedNumber) String() string {
	switch {
	case n.Full():
		return fmt.Sprintf("%d/%d", n.Numerator, n.Denominator)
	case n.HasNumerator():
		return strconv.Itoa(n.Numerator)
	default:
		return ""
	}
}

// CardIdentity is the lookup key for a price search
type CardIdentity struct {
	Name          string        `json:"name"`
	LocalizedName string        `json:"localized_name,omitempty"`
	Set           string        `json:"set,omitempty"`
	LocalizedSet  string        `json:"localized_set,omitempty"`
	Number        PrintedNumber `json:"number"`
}

// Listing is a single price observation from a marketplace
type Listing struct {
	Title     string   `json:"title"`
	URL       string   `json:"url"`
	Currency  Currency `json:"currency"`
	Source    Source   `json:"source"`
	Condition string   `json:"condition,omitempty"`
	Seller    string   `json:"seller,omitempty"`
	Kind      string   `json:"kind,omitempty"`
	Price     float64  `json:"price"`
}

// Valid reports whether the listing can enter the pricing pipeline
func (l *Listing) Valid() bool {
	if l == nil {
		return false
	}

	if l.Price <= 0 || math.IsNaN(l.Price) || math.IsInf(l.Price, 0) {
		return false
	}

	return l.Currency != "" &&
		strings.TrimSpace(l.Title) != "" &&
		strings.TrimSpace(l.URL) != ""
}

// ConvertedListing is a listing expressed in the target currency
type ConvertedListing struct {
	RateAsOf   time.Time `json:"rate_as_of"`
	Listing    *Listing  `json:"listing"`
	Currency   Currency  `json:"currency"`
	RateSource string    `json:"rate_source"`
	Price      float64   `json:"price"`
	Rate       float64   `json:"rate"`
}

// Fence is the IQR exclusion window
type Fence struct {
	Q1   float64 `json:"q1"`
	Q3   float64 `json:"q3"`
	IQR  float64 `json:"iqr"`
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

type Stats struct {
	Count    int     `json:"count"`
	RawCount int     `json:"raw_count"`
	Median   float64 `json:"median"`
	P25      float64 `json:"p25"`
	P75      float64 `json:"p75"`
	Low3Avg  float64 `json:"low3_avg"`
	Filters  Fence   `json:"filters"`
}

// SourceReport describes how a single adapter fared
type SourceReport struct {
	Source   Source        `json:"source"`
	Query    string        `json:"query,omitempty"`
	Reason   string        `json:"reason,omitempty"`
	Attempts []string      `json:"attempts"`
	Listings []*Listing    `json:"-"`
	RawCount int           `json:"raw_count"`
	Relevant int           `json:"relevant"`
	Duration time.Duration `json:"duration"`
}

type Status string

const (
	StatusResolved   Status = "resolved"
	StatusUnresolved Status = "unresolved"
)

// AggregationResult is the outcome of a cross-marketplace price search
type AggregationResult struct {
	StartedAt   time.Time           `json:"started_at"`
	Stats       *Stats              `json:"stats"`
	Card        CardIdentity        `json:"card"`
	CardID      string              `json:"card_id,omitempty"`
	Currency    Currency            `json:"currency"`
	Status      Status              `json:"status"`
	Query       string              `json:"query,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	Attempts    []string            `json:"attempts"`
	Listings    []*ConvertedListing `json:"listings"`
	Unconverted []*Listing          `json:"unconverted,omitempty"`
	Sources     []*SourceReport     `json:"sources"`
	Snapshots   []*PriceSnapshot    `json:"snapshots,omitempty"`
	RawCount    int                 `json:"raw_count"`
	Price       float64             `json:"price"`
	Low3Avg     float64             `json:"low3_avg"`
	Duration    time.Duration       `json:"duration"`
}

// Resolved reports whether the aggregation produced a price
func (r *AggregationResult) Resolved() bool {
	return r != nil && r.Status == StatusResolved
}

const (
	SnapshotSourceAggregate = "aggregate:median"
	SnapshotSourceManual    = "manual"
)

// SourceMinimumTag is the snapshot tag for a per-site minimum price
func SourceMinimumTag(s Source) string {
	return s.String() + ":min"
}

// PriceSnapshot is a single append-only price history point
type PriceSnapshot struct {
	CapturedAt time.Time `json:"captured_at"`
	ID         string    `json:"id"`
	CardID     string    `json:"card_id"`
	Currency   Currency  `json:"currency"`
	Source     string    `json:"source"`
	Price      float64   `json:"price"`
}

type SnapshotQuery struct {
	Source *string    `json:"source"`
	From   *time.Time `json:"from"`
	To     *time.Time `json:"to"`
	CardID string     `json:"card_id"`
	Offset int64      `json:"offset"`
	Limit  int32      `json:"limit"`
}

// Page wraps the results for pagination
type Page[T any] struct {
	Results []T   `json:"results"`
	Total   int64 `json:"total"`
}
