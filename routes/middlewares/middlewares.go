package middlewares

import (
	"context"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mbolis/merchant-survey/form"
	"github.com/mbolis/merchant-survey/log"
)

// SessionCookie is the name of the cookie carrying the survey session id.
const SessionCookie = "qsurvey_session"

type ctxKey struct{}

// RequestLogger logs one line per request with its status and duration.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		entry := log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   m.Code,
			"bytes":    m.Written,
			"duration": m.Duration,
		})
		if id := middleware.GetReqID(r.Context()); id != "" {
			entry = entry.WithField("request_id", id)
		}
		if m.Code >= http.StatusInternalServerError {
			entry.Warn("request")
		} else {
			entry.Debug("request")
		}
	})
}

// Session binds the request to a survey session, creating one (and its
// cookie) when the request carries none or an expired one.
func Session(sessions *form.Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c, err := r.Cookie(SessionCookie); err == nil {
				if s, ok := sessions.Get(c.Value); ok {
					next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, s)))
					return
				}
			}

			s, err := sessions.New()
			if err != nil {
				log.Errorf("session.new: %s", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			http.SetCookie(w, &http.Cookie{
				Path:     "/",
				Name:     SessionCookie,
				Value:    s.ID,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, s)))
		})
	}
}

// SessionFrom returns the session bound by the Session middleware.
func SessionFrom(ctx context.Context) *form.Session {
	s, _ := ctx.Value(ctxKey{}).(*form.Session)
	return s
}
