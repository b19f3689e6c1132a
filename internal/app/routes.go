package app

import (
	"github.com/gorilla/mux"
	"github.com/klokku/yearview/internal/config"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies, cfg config.Application) {
	r.HandleFunc("/api/events", deps.EventHandler.GetEvents).Methods("GET")
	r.HandleFunc("/api/calendars", deps.CalendarHandler.ListCalendars).Methods("GET")

	if cfg.Metrics.Enabled && deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	}
}
