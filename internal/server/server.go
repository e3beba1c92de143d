// Package server собирает HTTP-обработчик приложения.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/UkralStul/starter-repo/internal/auth"
	"github.com/UkralStul/starter-repo/internal/httpapi"
	"github.com/UkralStul/starter-repo/internal/hydrate"
	"github.com/UkralStul/starter-repo/internal/logging"
	"github.com/UkralStul/starter-repo/internal/metrics"
	"github.com/UkralStul/starter-repo/internal/router"
	"github.com/UkralStul/starter-repo/internal/web"
)

// Deps - зависимости обработчика.
type Deps struct {
	App      *router.App
	Verifier *auth.Verifier
	Metrics  *metrics.Metrics
	Limiter  *httpapi.RateLimiter
	Log      logrus.FieldLogger
}

// NewHandler возвращает корневой маршрутизатор: страницы, сетевой
// транспорт процедур, метрики и проверку живости.
func NewHandler(d Deps) (http.Handler, error) {
	pages, err := web.New(d.App, d.Log)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Requests(d.Log))
	r.Use(middleware.Recoverer)
	if d.Metrics != nil {
		r.Use(d.Metrics.Instrument)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return auth.Middleware(d.Verifier, d.Log, next) })

		r.Group(func(r chi.Router) {
			opts := []hydrate.Option{hydrate.WithLogger(d.Log)}
			if d.Metrics != nil {
				opts = append(opts, hydrate.WithObserver(d.Metrics))
			}
			r.Use(func(next http.Handler) http.Handler { return hydrate.Middleware(next, opts...) })
			pages.Register(r)
		})

		r.Route(httpapi.Prefix, func(r chi.Router) {
			if d.Limiter != nil {
				r.Use(d.Limiter.Handler)
			}
			r.Mount("/", httpapi.NewHandler(d.App.Registry(), d.Log).Routes())
		})
	})

	return r, nil
}
