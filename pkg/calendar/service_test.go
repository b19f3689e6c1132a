package calendar

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/klokku/yearview/pkg/account"
	"github.com/stretchr/testify/assert"
	gcal "google.golang.org/api/calendar/v3"
)

type calendarListerStub struct {
	mu     sync.Mutex
	items  map[string][]*gcal.CalendarListEntry
	errs   map[string]error
	tokens []string
}

func newCalendarListerStub() *calendarListerStub {
	return &calendarListerStub{
		items: make(map[string][]*gcal.CalendarListEntry),
		errs:  make(map[string]error),
	}
}

func (s *calendarListerStub) ListCalendars(ctx context.Context, accessToken string) ([]*gcal.CalendarListEntry, error) {
	s.mu.Lock()
	s.tokens = append(s.tokens, accessToken)
	s.mu.Unlock()
	if err := s.errs[accessToken]; err != nil {
		return nil, err
	}
	return s.items[accessToken], nil
}

func TestService_ListCalendars(t *testing.T) {
	accounts := []account.ExternalAccount{
		{AccountId: "acc1", Email: "one@example.com", AccessToken: "tok1"},
		{AccountId: "acc2", Email: "", AccessToken: "tok2"},
	}

	t.Run("should list calendars of all accounts in account order", func(t *testing.T) {
		// given
		lister := newCalendarListerStub()
		lister.items["tok1"] = []*gcal.CalendarListEntry{
			{Id: "one@example.com", Summary: "One", Primary: true, BackgroundColor: "#9fe1e7"},
			{Id: "holidays", Summary: "Holidays"},
		}
		lister.items["tok2"] = []*gcal.CalendarListEntry{{Id: "team", Summary: "Team"}}
		service := NewService(lister)

		// when
		entries := service.ListCalendars(context.Background(), accounts)

		// then
		assert.Equal(t, []Entry{
			{Id: "acc1|one@example.com", Summary: "One", Primary: true, BackgroundColor: "#9fe1e7", AccountEmail: "one@example.com"},
			{Id: "acc1|holidays", Summary: "Holidays", AccountEmail: "one@example.com"},
			{Id: "acc2|team", Summary: "Team", AccountEmail: ""},
		}, entries)
		assert.ElementsMatch(t, []string{"tok1", "tok2"}, lister.tokens)
	})

	t.Run("should skip account whose calendar list fails", func(t *testing.T) {
		// given
		lister := newCalendarListerStub()
		lister.errs["tok1"] = errors.New("unauthorized")
		lister.items["tok2"] = []*gcal.CalendarListEntry{{Id: "team", Summary: "Team"}, nil, {Summary: "no id"}}
		service := NewService(lister)

		// when
		entries := service.ListCalendars(context.Background(), accounts)

		// then
		assert.Equal(t, []Entry{{Id: "acc2|team", Summary: "Team"}}, entries)
	})

	t.Run("should return empty list without accounts", func(t *testing.T) {
		// given
		service := NewService(newCalendarListerStub())

		// when
		entries := service.ListCalendars(context.Background(), nil)

		// then
		assert.NotNil(t, entries)
		assert.Empty(t, entries)
	})
}
