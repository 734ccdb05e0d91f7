package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/sig-0/cardprice/provider"
	"github.com/sig-0/cardprice/query"
	"github.com/sig-0/cardprice/relevance"
	"github.com/sig-0/cardprice/storage/types"
)

// sourceResponse is the source routine response
type sourceResponse struct {
	report *types.SourceReport
	index  int
}

// collect runs every source concurrently and gathers their reports in
// source order. Sources still running when ctx is done are reported as
// timed out
func (a *Aggregator) collect(
	ctx context.Context,
	sources []provider.Source,
	card types.CardIdentity,
) []*types.SourceReport {
	var (
		matcher = a.validator.Matcher(card)
		resCh   = make(chan sourceResponse, len(sources))
		reports = make([]*types.SourceReport, len(sources))
	)

	limit := a.maxConcurrency
	if limit <= 0 || limit > len(sources) {
		limit = len(sources)
	}

	sem := make(chan struct{}, limit)

	for i, src := range sources {
		go func() {
			select {
			case <-ctx.Done():
				return
			case sem <- struct{}{}:
			}

			defer func() { <-sem }()

			resCh <- sourceResponse{
				report: a.runSource(ctx, src, card, matcher),
				index:  i,
			}
		}()
	}

	for received := 0; received < len(sources); received++ {
		select {
		case <-ctx.Done():
			// Keep the reports that raced the deadline
			for drained := false; !drained; {
				select {
				case res := <-resCh:
					reports[res.index] = res.report
					received++
				default:
					drained = true
				}
			}

			a.logger.Warn(
				"aggregation deadline reached",
				"completed", received,
				"sources", len(sources),
			)

			for i, r := range reports {
				if r == nil {
					reports[i] = &types.SourceReport{
						Source:   sources[i].ID(),
						Attempts: []string{},
						Reason:   errDeadlineExceeded.Error(),
					}
				}
			}

			return reports
		case res := <-resCh:
			reports[res.index] = res.report
		}
	}

	return reports
}

// runSource walks the source's query variants until one yields relevant
// listings. It never panics
func (a *Aggregator) runSource(
	ctx context.Context,
	src provider.Source,
	card types.CardIdentity,
	matcher *relevance.Matcher,
) (report *types.SourceReport) {
	start := time.Now()

	report = &types.SourceReport{
		Source:   src.ID(),
		Attempts: []string{},
	}

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error(
				"source panicked",
				"source", src.ID(),
				"panic", r,
			)

			report.Listings = nil
			report.Relevant = 0
			report.Reason = fmt.Sprintf("source panicked: %v", r)
		}

		report.Duration = time.Since(start)
	}()

	var (
		sourceCtx context.Context
		cancelFn  context.CancelFunc
	)

	if a.sourceTimeout > 0 {
		sourceCtx, cancelFn = context.WithTimeout(ctx, a.sourceTimeout)
	} else {
		sourceCtx, cancelFn = context.WithCancel(ctx)
	}

	defer cancelFn()

	var (
		lastErr    error
		firstQuery string
		firstRaw   int
	)

	for _, q := range query.Variants(card, src.Profile()) {
		if err := sourceCtx.Err(); err != nil {
			lastErr = err

			break
		}

		report.Attempts = append(report.Attempts, q)

		listings, err := src.Search(sourceCtx, q)
		if err != nil {
			lastErr = fmt.Errorf("query %q: %w", q, err)

			a.logger.Debug(
				"source query failed",
				"source", src.ID(),
				"query", q,
				"err", err,
			)
		}

		valid := provider.Keep(src.ID(), listings)
		if len(valid) == 0 {
			continue
		}

		if firstQuery == "" {
			firstQuery, firstRaw = q, len(valid)
		}

		relevant := make([]*types.Listing, 0, len(valid))
		for _, l := range valid {
			if matcher.Relevant(l.Title) {
				relevant = append(relevant, l)
			}
		}

		if len(relevant) == 0 {
			continue
		}

		report.Query = q
		report.RawCount = len(valid)
		report.Relevant = len(relevant)
		report.Listings = relevant

		return report
	}

	report.RawCount = firstRaw

	switch {
	case lastErr != nil && firstQuery == "":
		report.Reason = lastErr.Error()
	default:
		report.Reason = errNoRelevantResults.Error()
	}

	return report
}
