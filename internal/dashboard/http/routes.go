// Package dashboardhttp exposes the live dashboard of the signed-in principal over HTTP.
package dashboardhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/utilitydesk/billing-console/internal/platform/httpx"
	"github.com/utilitydesk/billing-console/internal/session"
)

// MountRoutes registers dashboard endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "dashboard refreshed too often")
		}),
	)

	r.Group(func(gr chi.Router) {
		gr.Use(session.RequireAuth)
		gr.Get("/dashboard", h.handleDashboard)
		gr.Delete("/dashboard", h.handleClose)
		gr.Get("/dashboard/charts/{chart}.svg", h.handleChart)
		gr.Group(func(limited chi.Router) {
			limited.Use(limiter)
			limited.Post("/dashboard/refresh", h.handleRefresh)
			limited.Get("/dashboard/export.csv", h.handleCSV)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if sess := session.FromContext(r.Context()); sess.Authenticated() {
		if subject := sess.Principal().Subject; subject != "" {
			return "user:" + subject, nil
		}
		return "session:" + sess.ID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
