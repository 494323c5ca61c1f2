package rateLimit

import (
	"net/http"
	"time"

	resp "github.com/Magno-12/prueba-tecnica-quo-digital/internal/lib/api/response"

	"github.com/go-chi/render"
	httprate "github.com/go-chi/httprate"
)

// HitFunc is called with the limiter name whenever a request is rejected.
type HitFunc func(name string)

type Limiter struct {
	onHit HitFunc
}

func New(onHit HitFunc) *Limiter {
	return &Limiter{onHit: onHit}
}

func (l *Limiter) Login() func(http.Handler) http.Handler {
	return l.limitByIP("login", 10, 5*time.Minute)
}

func (l *Limiter) Register() func(http.Handler) http.Handler {
	return l.limitByIP("register", 5, time.Hour)
}

func (l *Limiter) Refresh() func(http.Handler) http.Handler {
	return l.limitByIP("refresh", 30, 10*time.Minute)
}

func (l *Limiter) Logout() func(http.Handler) http.Handler {
	return l.limitByIP("logout", 20, 10*time.Minute)
}

// RequestCode is strict: the endpoint tells whether an email is registered.
func (l *Limiter) RequestCode() func(http.Handler) http.Handler {
	return l.limitByIP("request_code", 3, 15*time.Minute)
}

func (l *Limiter) ResetPassword() func(http.Handler) http.Handler {
	return l.limitByIP("reset_password", 10, 15*time.Minute)
}

func (l *Limiter) limitByIP(name string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if l.onHit != nil {
				l.onHit(name)
			}

			render.Status(r, http.StatusTooManyRequests)
			render.JSON(w, r, resp.Error("too many requests"))
		}),
	)
}
