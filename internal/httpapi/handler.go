// Package httpapi открывает процедуры по сети для вызовов с клиента.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/UkralStul/starter-repo/internal/procedure"
)

// Prefix - префикс маршрутов процедур.
const Prefix = "/api/rpc"

const maxBodyBytes = 1 << 20

// ErrorBody - тело ответа с ошибкой.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Response - конверт ответа.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorBody      `json:"error,omitempty"`
}

// Handler вызывает процедуры из Registry.
type Handler struct {
	registry *procedure.Registry
	log      logrus.FieldLogger
}

// NewHandler создает Handler.
func NewHandler(registry *procedure.Registry, log logrus.FieldLogger) *Handler {
	return &Handler{registry: registry, log: log}
}

// Routes возвращает маршрутизатор для монтирования под Prefix.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{path}", h.post)
	r.Get("/{path}", h.get)
	return r
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	ep, ok := h.lookup(w, r)
	if !ok {
		return
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, procedure.Invalid("unreadable body", err))
		return
	}
	h.invoke(w, r, ep, raw)
}

// get обслуживает только процедуры чтения; вход передаётся в параметре input.
func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ep, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if ep.Kind() != procedure.KindQuery {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, Response{Error: &ErrorBody{
			Code: "METHOD_NOT_ALLOWED", Message: "mutations must use POST",
		}})
		return
	}
	h.invoke(w, r, ep, []byte(r.URL.Query().Get("input")))
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (procedure.Endpoint, bool) {
	path := chi.URLParam(r, "path")
	ep, ok := h.registry.Lookup(path)
	if !ok {
		writeJSON(w, http.StatusNotFound, Response{Error: &ErrorBody{
			Code: string(procedure.CodeNotFound), Message: "no procedure " + path,
		}})
		return nil, false
	}
	return ep, true
}

func (h *Handler) invoke(w http.ResponseWriter, r *http.Request, ep procedure.Endpoint, raw []byte) {
	out, err := ep.Invoke(r.Context(), raw)
	if err != nil {
		h.writeError(w, err)
		return
	}
	result, err := json.Marshal(out)
	if err != nil {
		h.log.WithError(err).WithField("procedure", ep.Path()).Error("failed to encode result")
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Result: result})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	pe := procedure.FromStorage(err)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		pe = procedure.Invalid("request body too large", err)
	}
	if pe.Code == procedure.CodeStorage {
		h.log.WithError(err).Error("procedure failed")
	}
	writeJSON(w, pe.HTTPStatus(), Response{Error: &ErrorBody{Code: string(pe.Code), Message: pe.Message}})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
