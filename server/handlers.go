package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sig-0/cardprice/aggregate"
	"github.com/sig-0/cardprice/catalog"
	"github.com/sig-0/cardprice/storage/types"
)

// maxBodySize bounds a manual price record body
const maxBodySize = 1 << 16

var (
	errUnableToFetchSources = errors.New("unable to fetch sources")
	errUnableToFetchHistory = errors.New("unable to fetch price history")
	errUnableToFetchCard    = errors.New("unable to fetch card")
	errUnableToRecordPrice  = errors.New("unable to record price")
	errRateUnavailable      = errors.New("rate unavailable")
	errCardNotFound         = errors.New("card not found")
	errMissingName          = errors.New("missing card name")
	errInvalidNumber        = errors.New("invalid number")
	errInvalidLimit         = errors.New("invalid limit")
	errInvalidOffset        = errors.New("invalid offset")
	errInvalidSave          = errors.New("invalid save (must be a boolean)")
	errInvalidBody          = errors.New("invalid request body")
	errInvalidPrice         = errors.New("invalid price (must be positive)")
	errInvalidTimeRange     = errors.New("invalid time range")
	errReservedSource       = errors.New("reserved source tag")
)

// Sources lists the marketplace adapters and the price history tags
func (s *Server) Sources(w http.ResponseWriter, r *http.Request) {
	history, err := s.storage.ListSources(r.Context())
	if err != nil {
		s.logger.Debug(
			"unable to fetch sources",
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToFetchSources)

		return
	}

	if history == nil {
		history = []string{}
	}

	writeJSON(w, http.StatusOK, &SourcesResponse{
		Results: s.pricer.Sources(),
		History: history,
	})
}

// Quote aggregates the price of a card identity given in the query
func (s *Server) Quote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	card := types.CardIdentity{
		Name:          strings.TrimSpace(q.Get("name")),
		LocalizedName: strings.TrimSpace(q.Get("name_local")),
		Set:           strings.TrimSpace(q.Get("set")),
		LocalizedSet:  strings.TrimSpace(q.Get("set_local")),
	}

	if card.Name == "" && card.LocalizedName == "" {
		writeError(w, http.StatusBadRequest, errMissingName)

		return
	}

	number, err := types.ParsePrintedNumber(q.Get("number"))
	if err != nil {
		writeError(w, http.StatusBadRequest, errInvalidNumber)

		return
	}

	card.Number = number

	req, err := parseAggregateRequest(r, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	req.Card = card
	req.CardID = strings.TrimSpace(q.Get("card_id"))

	s.aggregate(w, r, req)
}

// CardQuote aggregates the price of a catalog card
func (s *Server) CardQuote(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "id")

	card, err := s.catalog.Card(r.Context(), cardID)
	if err != nil {
		if errors.Is(err, catalog.ErrCardNotFound) {
			writeError(w, http.StatusNotFound, errCardNotFound)

			return
		}

		s.logger.Debug(
			"unable to fetch card",
			"card_id", cardID,
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToFetchCard)

		return
	}

	req, err := parseAggregateRequest(r, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	req.Card = *card
	req.CardID = cardID

	s.aggregate(w, r, req)
}

// aggregate runs the aggregation under the request deadline.
// Unresolved results are still a 200, the result carries the reason
func (s *Server) aggregate(w http.ResponseWriter, r *http.Request, req *aggregate.Request) {
	ctx := r.Context()

	if timeout := s.config.Pricing.RequestTimeout; timeout > 0 {
		var cancelFn context.CancelFunc

		ctx, cancelFn = context.WithTimeout(ctx, timeout)
		defer cancelFn()
	}

	writeJSON(w, http.StatusOK, s.pricer.Aggregate(ctx, req))
}

// History lists the price snapshots of a card, newest first
func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	var (
		cardID = chi.URLParam(r, "id")
		q      = r.URL.Query()
	)

	limit, offset, err := parseLimitOffset(q.Get("limit"), q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	from, err := parseTime(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	to, err := parseTime(q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	if from != nil && to != nil && from.After(*to) {
		writeError(w, http.StatusBadRequest, errInvalidTimeRange)

		return
	}

	query := &types.SnapshotQuery{
		CardID: cardID,
		From:   from,
		To:     to,
		Limit:  limit,
		Offset: offset,
	}

	if v := strings.TrimSpace(q.Get("source")); v != "" {
		query.Source = &v
	}

	page, err := s.storage.Snapshots(r.Context(), query)
	if err != nil {
		s.logger.Debug(
			"unable to fetch price history",
			"card_id", cardID,
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToFetchHistory)

		return
	}

	if page.Results == nil {
		page.Results = []*types.PriceSnapshot{}
	}

	writeJSON(w, http.StatusOK, page)
}

// RecordPrice appends a manually observed price to the card history
func (s *Server) RecordPrice(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "id")

	var body RecordRequest

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidBody)

		return
	}

	if body.Price <= 0 || math.IsNaN(body.Price) || math.IsInf(body.Price, 0) {
		writeError(w, http.StatusBadRequest, errInvalidPrice)

		return
	}

	currency, err := parseCurrencySymbol(body.Currency)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	source := strings.TrimSpace(body.Source)

	switch {
	case source == "":
		source = types.SnapshotSourceManual
	case source == types.SnapshotSourceAggregate:
		// Reserved for computed snapshots
		writeError(w, http.StatusBadRequest, errReservedSource)

		return
	}

	capturedAt := time.Now().UTC()
	if body.CapturedAt != nil {
		capturedAt = body.CapturedAt.UTC()
	}

	snapshot := &types.PriceSnapshot{
		ID:         xid.New().String(),
		CardID:     cardID,
		Price:      body.Price,
		Currency:   currency,
		Source:     source,
		CapturedAt: capturedAt,
	}

	if err := s.storage.AppendSnapshot(r.Context(), snapshot); err != nil {
		s.logger.Error(
			"unable to record price",
			"card_id", cardID,
			"err", err,
		)

		writeError(w, http.StatusInternalServerError, errUnableToRecordPrice)

		return
	}

	writeJSON(w, http.StatusCreated, snapshot)
}

// Rate returns the current exchange rate for the pair
func (s *Server) Rate(w http.ResponseWriter, r *http.Request) {
	base, err := parseCurrencySymbol(chi.URLParam(r, "base"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	quote, err := parseCurrencySymbol(chi.URLParam(r, "quote"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)

		return
	}

	rate, ok := s.rates.Quote(r.Context(), base, quote)
	if !ok {
		writeError(w, http.StatusNotFound, errRateUnavailable)

		return
	}

	writeJSON(w, http.StatusOK, rate)
}

// parseAggregateRequest parses the options shared by the quote routes
func parseAggregateRequest(r *http.Request, defaultSave bool) (*aggregate.Request, error) {
	q := r.URL.Query()

	req := &aggregate.Request{
		Save: defaultSave,
	}

	if v := strings.TrimSpace(q.Get("currency")); v != "" {
		currency, err := parseCurrencySymbol(v)
		if err != nil {
			return nil, err
		}

		req.Currency = currency
	}

	for _, v := range strings.Split(q.Get("sources"), ",") {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			req.Sources = append(req.Sources, types.Source(v))
		}
	}

	if v := strings.TrimSpace(q.Get("save")); v != "" {
		save, err := strconv.ParseBool(v)
		if err != nil {
			return nil, errInvalidSave
		}

		req.Save = save
	}

	return req, nil
}

func parseTime(raw string) (*time.Time, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil //nolint:nilnil // valid case
	}

	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, errors.New("invalid time (must be RFC3339)")
	}

	t = t.UTC()

	return &t, nil
}

func parseLimitOffset(limitRaw, offsetRaw string) (int32, int64, error) {
	var limit int32

	if v := strings.TrimSpace(limitRaw); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil || n < 0 {
			return 0, 0, errInvalidLimit
		}

		limit = int32(n)
	}

	var offset int64

	if v := strings.TrimSpace(offsetRaw); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return 0, 0, errInvalidOffset
		}

		offset = n
	}

	return limit, offset, nil
}

func parseCurrencySymbol(v string) (types.Currency, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	if len(s) != 3 {
		return "", errors.New("invalid currency (must be 3 letters)")
	}

	for i := 0; i < 3; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return "", errors.New("invalid currency (must be A-Z)")
		}
	}

	return types.Currency(s), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // Fine to ignore
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, &ErrorResponse{
		Error: err.Error(),
	})
}
