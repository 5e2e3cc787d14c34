package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

func NewRouter(accounts *AccountHandler, withdrawals *WithdrawalHandler, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", accounts.Create)
		r.Get("/", accounts.List)
		r.Get("/{address}", accounts.Get)
		r.Patch("/{address}/balance", accounts.AdjustBalance)
	})

	r.Route("/withdrawals", func(r chi.Router) {
		r.Post("/", withdrawals.Create)
		r.Get("/", withdrawals.List)
		r.Get("/{withdrawalID}", withdrawals.Get)
		r.Get("/{withdrawalID}/status", withdrawals.Status)
	})

	return r
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request served")
		})
	}
}
