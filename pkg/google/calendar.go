package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/klokku/yearview/internal/config"
	log "github.com/sirupsen/logrus"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	// MaxEventResults caps a single events.list call.
	MaxEventResults = 2500
	// PrimaryCalendarId addresses the account's primary calendar.
	PrimaryCalendarId = "primary"

	// instantLayout renders UTC instants with millisecond precision, e.g. 2024-01-01T00:00:00.000Z.
	instantLayout = "2006-01-02T15:04:05.000Z07:00"
)

// FetchError describes a failed read of one calendar.
type FetchError struct {
	CalendarId string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching calendar %q failed with status %d: %v", e.CalendarId, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetching calendar %q failed: %v", e.CalendarId, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// CalendarClient reads events and calendar lists with a caller-supplied access token.
type CalendarClient struct {
	endpoint   string
	httpClient *http.Client
}

func NewCalendarClient(cfg config.Google, httpClient *http.Client) *CalendarClient {
	return &CalendarClient{
		endpoint:   apiBase(cfg.ApiBaseUrl) + "calendar/v3/",
		httpClient: httpClient,
	}
}

func FormatInstant(t time.Time) string {
	return t.UTC().Format(instantLayout)
}

// ListEvents returns the expanded events of one calendar in [timeMin, timeMax), ordered
// by start time.
func (c *CalendarClient) ListEvents(ctx context.Context, accessToken, calendarId string, timeMin, timeMax time.Time) ([]*gcal.Event, error) {
	service, err := c.prepareService(ctx, accessToken)
	if err != nil {
		return nil, &FetchError{CalendarId: calendarId, Err: err}
	}

	events, err := service.Events.List(calendarId).
		SingleEvents(true).
		OrderBy("startTime").
		TimeMin(FormatInstant(timeMin)).
		TimeMax(FormatInstant(timeMax)).
		MaxResults(MaxEventResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, toFetchError(calendarId, err)
	}
	if events.NextPageToken != "" {
		log.Debugf("calendar %s has more than %d events in range, extra pages are not read", calendarId, MaxEventResults)
	}
	return events.Items, nil
}

func (c *CalendarClient) ListCalendars(ctx context.Context, accessToken string) ([]*gcal.CalendarListEntry, error) {
	service, err := c.prepareService(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	calendars, err := service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendars from Google Calendar: %w", err)
	}
	return calendars.Items, nil
}

func (c *CalendarClient) prepareService(ctx context.Context, accessToken string) (*gcal.Service, error) {
	service, err := gcal.NewService(ctx,
		option.WithHTTPClient(bearerClient(ctx, c.httpClient, accessToken)),
		option.WithEndpoint(c.endpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar client: %w", err)
	}
	return service, nil
}

func toFetchError(calendarId string, err error) *FetchError {
	fetchErr := &FetchError{CalendarId: calendarId, Err: err}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		fetchErr.StatusCode = apiErr.Code
	}
	return fetchErr
}

func apiBase(url string) string {
	return strings.TrimSuffix(url, "/") + "/"
}
