package calendar

import (
	"context"
	"errors"
	"net/http"

	"github.com/klokku/yearview/internal/rest"
	"github.com/klokku/yearview/pkg/account"
	"github.com/klokku/yearview/pkg/user"
	log "github.com/sirupsen/logrus"
)

type AccountResolver interface {
	ResolveAccounts(ctx context.Context, userId int) []account.ExternalAccount
}

type CalendarsResponse struct {
	Calendars []Entry `json:"calendars"`
}

type Handler struct {
	accounts AccountResolver
	service  *Service
}

func NewHandler(accounts AccountResolver, service *Service) *Handler {
	return &Handler{accounts: accounts, service: service}
}

// ListCalendars godoc
// @Summary List selectable calendars
// @Description Lists the calendars of every linked account
// @Tags Calendars
// @Produce json
// @Success 200 {object} CalendarsResponse
// @Router /api/calendars [get]
// @Security XUserId
func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	userId, err := user.CurrentId(r.Context())
	if err != nil {
		if !errors.Is(err, user.ErrNoUser) {
			log.Errorf("failed to read current user: %v", err)
		}
		rest.WriteJSON(w, http.StatusOK, CalendarsResponse{Calendars: []Entry{}})
		return
	}

	accounts := h.accounts.ResolveAccounts(r.Context(), userId)
	rest.WriteJSON(w, http.StatusOK, CalendarsResponse{Calendars: h.service.ListCalendars(r.Context(), accounts)})
}
