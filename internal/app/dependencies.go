package app

import (
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/yearview/internal/config"
	"github.com/klokku/yearview/internal/metrics"
	"github.com/klokku/yearview/internal/utils"
	"github.com/klokku/yearview/pkg/account"
	"github.com/klokku/yearview/pkg/calendar"
	"github.com/klokku/yearview/pkg/event"
	"github.com/klokku/yearview/pkg/google"
	"github.com/klokku/yearview/pkg/user"
)

const googleClientTimeout = 30 * time.Second

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	Clock   utils.Clock
	Metrics *metrics.Metrics

	UserService user.Service

	TokenRefresher   *google.TokenRefresher
	IdentityResolver *google.IdentityResolver
	CalendarClient   *google.CalendarClient

	AccountRepository *account.RepositoryImpl
	AccountResolver   *account.Resolver

	EventAggregator *event.Aggregator
	EventHandler    *event.Handler

	CalendarService *calendar.Service
	CalendarHandler *calendar.Handler
}

// BuildDependencies initializes and wires all application services and handlers.
func BuildDependencies(db *pgxpool.Pool, cfg config.Application) *Dependencies {
	deps := &Dependencies{}

	deps.Clock = utils.SystemClock{}
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New()
	}

	deps.UserService = user.NewUserService(user.NewUserRepo(db))

	httpClient := &http.Client{Timeout: googleClientTimeout}
	deps.TokenRefresher = google.NewTokenRefresher(google.OAuthConfigFrom(cfg.Google), httpClient, deps.Clock)
	deps.IdentityResolver = google.NewIdentityResolver(cfg.Google, httpClient, deps.Metrics)
	deps.CalendarClient = google.NewCalendarClient(cfg.Google, httpClient)

	deps.AccountRepository = account.NewRepository(db)
	deps.AccountResolver = account.NewResolver(deps.AccountRepository, deps.TokenRefresher, deps.IdentityResolver, deps.Clock, deps.Metrics)

	deps.EventAggregator = event.NewAggregator(deps.CalendarClient, deps.Metrics)
	deps.EventHandler = event.NewHandler(deps.AccountResolver, deps.EventAggregator, deps.Clock)

	deps.CalendarService = calendar.NewService(deps.CalendarClient)
	deps.CalendarHandler = calendar.NewHandler(deps.AccountResolver, deps.CalendarService)

	return deps
}
