package event

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/klokku/yearview/internal/rest"
	"github.com/klokku/yearview/internal/utils"
	"github.com/klokku/yearview/pkg/account"
	"github.com/klokku/yearview/pkg/selector"
	"github.com/klokku/yearview/pkg/user"
	log "github.com/sirupsen/logrus"
)

type AccountResolver interface {
	ResolveAccounts(ctx context.Context, userId int) []account.ExternalAccount
}

type EventsResponse struct {
	Events []NormalizedEvent `json:"events"`
}

type Handler struct {
	accounts   AccountResolver
	aggregator *Aggregator
	clock      utils.Clock
}

func NewHandler(accounts AccountResolver, aggregator *Aggregator, clock utils.Clock) *Handler {
	return &Handler{accounts: accounts, aggregator: aggregator, clock: clock}
}

// GetEvents godoc
// @Summary List all-day events of a year
// @Description Merges all-day events from the selected calendars of every linked account
// @Tags Events
// @Produce json
// @Param year query int false "Year, defaults to the current year"
// @Param calendarIds query string false "Comma-separated accountId|calendarId selectors"
// @Success 200 {object} EventsResponse
// @Failure 400 {object} rest.ErrorResponse
// @Router /api/events [get]
// @Security XUserId
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	year, err := h.year(r)
	if err != nil {
		log.Debugf("invalid year parameter: %v", err)
		rest.WriteError(w, http.StatusBadRequest, "invalid year parameter")
		return
	}

	userId, err := user.CurrentId(r.Context())
	if err != nil {
		if !errors.Is(err, user.ErrNoUser) {
			log.Errorf("failed to read current user: %v", err)
		}
		rest.WriteJSON(w, http.StatusOK, EventsResponse{Events: []NormalizedEvent{}})
		return
	}

	accounts := h.accounts.ResolveAccounts(r.Context(), userId)
	if len(accounts) == 0 {
		rest.WriteJSON(w, http.StatusOK, EventsResponse{Events: []NormalizedEvent{}})
		return
	}

	events := h.aggregator.FetchEvents(r.Context(), year, accounts, calendarIds(r))
	rest.WriteJSON(w, http.StatusOK, EventsResponse{Events: events})
}

func (h *Handler) year(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return h.clock.Now().UTC().Year(), nil
	}
	return strconv.Atoi(raw)
}

// calendarIds accepts both a comma-separated value and a repeated parameter.
func calendarIds(r *http.Request) []string {
	ids := make([]string, 0)
	for _, value := range r.URL.Query()["calendarIds"] {
		ids = append(ids, selector.SplitParam(value)...)
	}
	return ids
}
