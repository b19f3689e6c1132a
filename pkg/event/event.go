package event

import (
	"github.com/klokku/yearview/pkg/selector"
	gcal "google.golang.org/api/calendar/v3"
)

const (
	UntitledSummary = "(Untitled)"
	statusCancelled = "cancelled"
)

// NormalizedEvent is an all-day event in the shape returned to clients. CalendarId is the
// composite selector of the calendar it was read from.
type NormalizedEvent struct {
	Id         string `json:"id"`
	CalendarId string `json:"calendarId"`
	Summary    string `json:"summary"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
}

// isAllDay keeps events with a date-only start that were not cancelled.
func isAllDay(item *gcal.Event) bool {
	if item == nil || item.Start == nil || item.Start.Date == "" {
		return false
	}
	return item.Status != statusCancelled
}

func normalize(s selector.Selector, item *gcal.Event) NormalizedEvent {
	summary := item.Summary
	if summary == "" {
		summary = UntitledSummary
	}
	var endDate string
	if item.End != nil {
		endDate = item.End.Date
	}
	return NormalizedEvent{
		Id:         EventId(s, item.Id),
		CalendarId: s.String(),
		Summary:    summary,
		StartDate:  item.Start.Date,
		EndDate:    endDate,
	}
}

// EventId builds "accountId|calendarId:providerEventId".
func EventId(s selector.Selector, providerEventId string) string {
	return s.String() + ":" + providerEventId
}

func normalizeAll(s selector.Selector, items []*gcal.Event) []NormalizedEvent {
	events := make([]NormalizedEvent, 0, len(items))
	for _, item := range items {
		if !isAllDay(item) {
			continue
		}
		events = append(events, normalize(s, item))
	}
	return events
}
