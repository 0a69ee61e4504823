package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/utilitydesk/billing-console/internal/platform/httpx"
)

// commitWriter persists the session right before the response header goes out.
type commitWriter struct {
	http.ResponseWriter
	ctx           context.Context
	sess          *Session
	manager       *Manager
	logger        *slog.Logger
	headerWritten bool
}

func (w *commitWriter) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		if err := w.manager.Commit(w.ctx, w.ResponseWriter, w.sess); err != nil {
			w.logger.Error("commit session", slog.Any("error", err))
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *commitWriter) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

// Middleware loads the session into the request context and commits it with the response.
func (m *Manager) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, err := m.Load(ctx, r)
			if err != nil {
				logger.Error("load session", slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, "Session Store Unavailable", "")
				return
			}
			ctx = WithSession(ctx, sess)
			next.ServeHTTP(&commitWriter{
				ResponseWriter: w,
				ctx:            ctx,
				sess:           sess,
				manager:        m,
				logger:         logger,
			}, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests without a signed-in session.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !FromContext(r.Context()).Authenticated() {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
