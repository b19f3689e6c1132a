package app

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/klokku/yearview/pkg/user"
	log "github.com/sirupsen/logrus"
)

const userIdHeader = "X-User-Id"

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies) {
	r.Use(userContext(deps.UserService))
}

// userContext propagates the X-User-Id header into the request context. Requests without
// a known user continue anonymously and get empty results downstream.
func userContext(users user.Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			uid := req.Header.Get(userIdHeader)
			ctx := req.Context()

			if uid != "" {
				u, err := users.GetUserByUid(ctx, uid)
				switch {
				case errors.Is(err, user.ErrUserNotFound):
					log.Debugf("user not found: %s", uid)
				case err != nil:
					log.Errorf("failed to get user %s: %v", uid, err)
				default:
					log.Tracef("user found: %s", u.Uid)
					ctx = user.WithUser(ctx, u)
				}
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}
