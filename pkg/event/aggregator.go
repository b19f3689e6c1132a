package event

import (
	"context"
	"time"

	"github.com/klokku/yearview/internal/metrics"
	"github.com/klokku/yearview/pkg/account"
	"github.com/klokku/yearview/pkg/selector"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	gcal "google.golang.org/api/calendar/v3"
)

type EventSource interface {
	ListEvents(ctx context.Context, accessToken, calendarId string, timeMin, timeMax time.Time) ([]*gcal.Event, error)
}

type fetchResult struct {
	selector selector.Selector
	items    []*gcal.Event
	err      error
}

type Aggregator struct {
	source  EventSource
	metrics *metrics.Metrics
}

func NewAggregator(source EventSource, m *metrics.Metrics) *Aggregator {
	return &Aggregator{source: source, metrics: m}
}

// YearRange returns [Jan 1 of year, Jan 1 of year+1) in UTC.
func YearRange(year int) (time.Time, time.Time) {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// FetchEvents reads every selected calendar of the given accounts concurrently and merges
// their all-day events. A calendar that cannot be read contributes no events; the call
// itself never fails.
func (a *Aggregator) FetchEvents(ctx context.Context, year int, accounts []account.ExternalAccount, calendarIds []string) []NormalizedEvent {
	accessTokens := make(map[string]string, len(accounts))
	accountIds := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		accessTokens[acc.AccountId] = acc.AccessToken
		accountIds = append(accountIds, acc.AccountId)
	}
	plan := selector.Plan(selector.ParseList(calendarIds), accountIds)
	timeMin, timeMax := YearRange(year)

	results := make([]fetchResult, len(plan))
	var group errgroup.Group
	for i, s := range plan {
		group.Go(func() error {
			results[i] = a.fetch(ctx, accessTokens[s.AccountId], s, timeMin, timeMax)
			return nil
		})
	}
	_ = group.Wait()

	events := make([]NormalizedEvent, 0)
	for _, result := range results {
		if result.err != nil {
			log.Warnf("calendar %s returned no events: %v", result.selector, result.err)
			continue
		}
		events = append(events, normalizeAll(result.selector, result.items)...)
	}
	log.Debugf("aggregated %d events from %d calendars for %d", len(events), len(plan), year)
	return events
}

func (a *Aggregator) fetch(ctx context.Context, accessToken string, s selector.Selector, timeMin, timeMax time.Time) fetchResult {
	started := time.Now()
	items, err := a.source.ListEvents(ctx, accessToken, s.CalendarId, timeMin, timeMax)
	if err != nil {
		a.metrics.CalendarFetch(metrics.ResultFailure, time.Since(started))
		return fetchResult{selector: s, err: err}
	}
	a.metrics.CalendarFetch(metrics.ResultSuccess, time.Since(started))
	return fetchResult{selector: s, items: items}
}
