package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/starter-repo/internal/auth"
	"github.com/UkralStul/starter-repo/internal/procedure"
	"github.com/UkralStul/starter-repo/internal/router"
	"github.com/UkralStul/starter-repo/internal/storage/inmemory"
)

func newTestServer(t *testing.T) (*httptest.Server, *auth.Verifier) {
	t.Helper()
	log, _ := test.NewNullLogger()
	app := router.New(procedure.NewLayer(), inmemory.New())
	v := auth.NewVerifier("test-secret")

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler { return auth.Middleware(v, log, next) })
	r.Mount(Prefix, NewHandler(app.Registry(), log).Routes())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, v
}

func do(t *testing.T, req *http.Request) (int, Response) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func post(t *testing.T, srv *httptest.Server, path, body, token string) (int, Response) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+Prefix+"/"+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(t, req)
}

func TestHandler_Hello(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := post(t, srv, "post.hello", `{"text":"from X"}`, "")
	assert.Equal(t, http.StatusOK, status)
	require.Nil(t, body.Error)
	var out router.HelloOutput
	require.NoError(t, json.Unmarshal(body.Result, &out))
	assert.Contains(t, out.Greeting, "from X")

	req, err := http.NewRequest(http.MethodGet, srv.URL+Prefix+"/post.hello?input="+url.QueryEscape(`{"text":"via get"}`), nil)
	require.NoError(t, err)
	status, body = do(t, req)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body.Result), "via get")
}

func TestHandler_Errors(t *testing.T) {
	srv, v := newTestServer(t)

	status, body := post(t, srv, "post.hello", `{"text":""}`, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION", body.Error.Code)

	status, body = post(t, srv, "post.hello", `{"nope":1}`, "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION", body.Error.Code)

	status, body = post(t, srv, "post.missing", `{}`, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)

	status, body = post(t, srv, "post.create", `{"name":"x"}`, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body.Error.Code)

	token, err := v.Issue(auth.Identity{UserID: "u1", Email: "u1@example.com"}, time.Hour)
	require.NoError(t, err)
	status, body = post(t, srv, "post.rename", `{"id":"0b6f3c5e-0000-4000-8000-000000000009","name":"x"}`, token)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body.Error.Code)

	req, err := http.NewRequest(http.MethodGet, srv.URL+Prefix+"/post.create", nil)
	require.NoError(t, err)
	status, _ = do(t, req)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestHandler_CreateThenGetLatest(t *testing.T) {
	srv, v := newTestServer(t)

	status, body := post(t, srv, "post.getLatest", ``, "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, "null", string(body.Result))

	token, err := v.Issue(auth.Identity{UserID: "u1", Email: "u1@example.com"}, time.Hour)
	require.NoError(t, err)
	status, body = post(t, srv, "post.create", `{"name":"hello world"}`, token)
	require.Equal(t, http.StatusOK, status)

	var created struct {
		ID        string  `json:"id"`
		Name      string  `json:"name"`
		UpdatedAt *string `json:"updatedAt"`
		DeletedAt *string `json:"deletedAt"`
	}
	require.NoError(t, json.Unmarshal(body.Result, &created))
	assert.NotEmpty(t, created.ID)
	assert.Nil(t, created.UpdatedAt)
	assert.Nil(t, created.DeletedAt)

	status, body = post(t, srv, "post.getLatest", `{}`, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body.Result), created.ID)
}

func TestRateLimiter(t *testing.T) {
	log, hook := test.NewNullLogger()
	rl := NewRateLimiter(1, 2, log)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
	assert.NotNil(t, hook.LastEntry())

	// другой адрес - свой лимит
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rl.now = func() time.Time { return time.Now().Add(time.Hour) }
	assert.Equal(t, 2, rl.Cleanup(time.Minute))
}
