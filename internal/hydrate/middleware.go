package hydrate

import (
	"context"
	"net/http"
)

type contextKey string

const key = contextKey("hydrate")

// Middleware создает новый Cache на каждый запрос и кладет его в контекст.
// Кэши разных запросов никогда не пересекаются.
func Middleware(next http.Handler, opts ...Option) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cache := New(r.Context(), opts...)
		ctx := WithCache(r.Context(), cache)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithCache кладет кэш в контекст.
func WithCache(ctx context.Context, c *Cache) context.Context {
	return context.WithValue(ctx, key, c)
}

// For извлекает кэш из контекста; nil, если Middleware не установлен.
func For(ctx context.Context) *Cache {
	c, _ := ctx.Value(key).(*Cache)
	return c
}
