// Package web рендерит страницы приложения на сервере. Страница вызывает
// процедуры через кэш запроса и встраивает его снимок для клиента.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/UkralStul/starter-repo/internal/auth"
	"github.com/UkralStul/starter-repo/internal/domain"
	"github.com/UkralStul/starter-repo/internal/hydrate"
	"github.com/UkralStul/starter-repo/internal/procedure"
	"github.com/UkralStul/starter-repo/internal/router"
)

//go:embed templates/*.html
var templates embed.FS

// HelloText - вход post.hello на главной странице.
const HelloText = "from tRPC"

// LatestState - что страница знает о последнем посте к моменту рендера.
type LatestState string

const (
	LatestLoading     LatestState = "loading"
	LatestReady       LatestState = "ready"
	LatestUnavailable LatestState = "unavailable"
)

type homeData struct {
	Greeting    string
	Email       string
	Secret      router.SecretResult
	SecretError bool
	Latest      *domain.Post
	LatestState LatestState
	State       template.HTML
}

type protectedData struct {
	Email string
	State template.HTML
}

// Pages - обработчики страниц.
type Pages struct {
	app  *router.App
	log  logrus.FieldLogger
	tmpl *template.Template
}

// New разбирает встроенные шаблоны.
func New(app *router.App, log logrus.FieldLogger) (*Pages, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}).ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Pages{app: app, log: log, tmpl: tmpl}, nil
}

// Register монтирует страницы в маршрутизатор.
func (p *Pages) Register(r chi.Router) {
	r.Get("/", p.Home)
	r.Get("/protected", p.Protected)
}

// Home - главная страница.
func (p *Pages) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cache := cacheFor(ctx, p.log)
	data := homeData{Greeting: "Loading tRPC query..."}

	hello, err := hydrate.Fetch(ctx, cache, p.app.Post.Hello, router.HelloInput{Text: HelloText})
	if err != nil {
		p.log.WithError(err).Warn("hello failed")
	} else {
		data.Greeting = hello.Greeting
	}

	// Последний пост не ждём: если вызов не успеет, клиент выполнит его сам.
	hydrate.Prefetch(ctx, cache, p.app.Post.GetLatest, procedure.Empty{})

	secret, err := hydrate.Fetch(ctx, cache, p.app.Post.Secret, procedure.Empty{})
	if err != nil {
		p.log.WithError(err).Warn("secret failed")
		data.SecretError = true
	} else {
		data.Secret = secret
	}

	if id := auth.FromContext(ctx); id != nil {
		data.Email = id.Email
	}

	data.Latest, data.LatestState = latest(cache, p.app.Post.GetLatest)

	p.render(w, cache, "home.html", func(state template.HTML) any {
		data.State = state
		return data
	})
}

// Protected доступна только с личностью; анонимный вызывающий уходит на главную.
func (p *Pages) Protected(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	if id == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	cache := cacheFor(r.Context(), p.log)
	p.render(w, cache, "protected.html", func(state template.HTML) any {
		return protectedData{Email: id.Email, State: state}
	})
}

func latest(cache *hydrate.Cache, proc *procedure.Procedure[procedure.Empty, *domain.Post]) (*domain.Post, LatestState) {
	if post, ok := hydrate.Peek(cache, proc, procedure.Empty{}); ok {
		return post, LatestReady
	}
	key, err := hydrate.Key(proc.Path(), procedure.Empty{})
	if err != nil {
		return nil, LatestUnavailable
	}
	if status, _ := cache.Lookup(key); status == hydrate.StatusFailed {
		return nil, LatestUnavailable
	}
	return nil, LatestLoading
}

// render снимает снимок кэша непосредственно перед выдачей страницы.
func (p *Pages) render(w http.ResponseWriter, cache *hydrate.Cache, name string, data func(template.HTML) any) {
	state, err := hydrate.Script(cache.Dehydrate())
	if err != nil {
		p.log.WithError(err).Error("dehydrate failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&buf, name, data(state)); err != nil {
		p.log.WithError(err).WithField("template", name).Error("render failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil && !errors.Is(err, context.Canceled) {
		p.log.WithError(err).Debug("write page")
	}
}

func cacheFor(ctx context.Context, log logrus.FieldLogger) *hydrate.Cache {
	if c := hydrate.For(ctx); c != nil {
		return c
	}
	return hydrate.New(ctx, hydrate.WithLogger(log))
}
