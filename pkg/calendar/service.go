package calendar

import (
	"context"

	"github.com/klokku/yearview/pkg/account"
	"github.com/klokku/yearview/pkg/selector"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	gcal "google.golang.org/api/calendar/v3"
)

type CalendarLister interface {
	ListCalendars(ctx context.Context, accessToken string) ([]*gcal.CalendarListEntry, error)
}

type Service struct {
	lister CalendarLister
}

func NewService(lister CalendarLister) *Service {
	return &Service{lister: lister}
}

// ListCalendars lists the calendars of every account concurrently. An account whose list
// cannot be read contributes no entries.
func (s *Service) ListCalendars(ctx context.Context, accounts []account.ExternalAccount) []Entry {
	perAccount := make([][]Entry, len(accounts))
	var group errgroup.Group
	for i, acc := range accounts {
		group.Go(func() error {
			items, err := s.lister.ListCalendars(ctx, acc.AccessToken)
			if err != nil {
				log.Warnf("unable to list calendars of account %s: %v", acc.AccountId, err)
				return nil
			}
			perAccount[i] = toEntries(acc, items)
			return nil
		})
	}
	_ = group.Wait()

	entries := make([]Entry, 0)
	for _, accountEntries := range perAccount {
		entries = append(entries, accountEntries...)
	}
	return entries
}

func toEntries(acc account.ExternalAccount, items []*gcal.CalendarListEntry) []Entry {
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		if item == nil || item.Id == "" {
			continue
		}
		entries = append(entries, Entry{
			Id:              selector.New(acc.AccountId, item.Id).String(),
			Summary:         item.Summary,
			Primary:         item.Primary,
			BackgroundColor: item.BackgroundColor,
			AccountEmail:    acc.Email,
		})
	}
	return entries
}
