package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// SessionCookie - имя cookie с токеном для страниц, открытых в браузере.
const SessionCookie = "session"

type tokenSource int

const (
	sourceNone tokenSource = iota
	sourceHeader
	sourceCookie
)

// Middleware кладет личность в контекст запроса. Запрос без токена
// проходит как анонимный. Невалидный bearer-токен отклоняется с 401,
// а невалидная cookie сессии сбрасывается, и запрос идёт как анонимный.
func Middleware(v *Verifier, log logrus.FieldLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, source := tokenFrom(r)
		if source == sourceNone {
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), nil)))
			return
		}

		id, err := v.Verify(token)
		if err == nil {
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
			return
		}

		entry := log.WithError(err).WithField("path", r.URL.Path)
		if source == sourceCookie {
			entry.Info("stale session cookie dropped")
			http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), nil)))
			return
		}

		entry.Warn("token validation failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "UNAUTHORIZED", "message": "invalid token"},
		})
	})
}

func tokenFrom(r *http.Request) (string, tokenSource) {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1]), sourceHeader
		}
		return "", sourceNone
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value, sourceCookie
	}
	return "", sourceNone
}
