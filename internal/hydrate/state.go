package hydrate

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"regexp"
)

// ScriptID - id тега, в который встраивается состояние.
const ScriptID = "__HYDRATE__"

// ErrNoState - в странице нет встроенного состояния.
var ErrNoState = errors.New("hydrate: no embedded state")

// EntryError - ошибка, с которой сервер уже пытался выполнить вызов.
type EntryError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Entry - сериализованная запись кэша.
type Entry struct {
	Status Status          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  *EntryError     `json:"error,omitempty"`
}

// State - снимок кэша, встраиваемый в страницу.
type State struct {
	Entries map[string]Entry `json:"entries"`
}

// Resolved возвращает готовое значение по ключу.
func (s State) Resolved(key string) (json.RawMessage, bool) {
	e, ok := s.Entries[key]
	if !ok || e.Status != StatusResolved {
		return nil, false
	}
	return e.Data, true
}

// Script рендерит состояние в тег script. encoding/json экранирует <, > и &,
// так что содержимое не может закрыть тег.
func Script(s State) (template.HTML, error) {
	if s.Entries == nil {
		s.Entries = map[string]Entry{}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("hydrate: marshal state: %w", err)
	}
	return template.HTML(fmt.Sprintf(`<script id="%s" type="application/json">%s</script>`, ScriptID, raw)), nil
}

var scriptRe = regexp.MustCompile(`(?s)<script id="` + ScriptID + `" type="application/json">(.*?)</script>`)

// ParseState извлекает состояние из отрендеренной страницы.
func ParseState(html []byte) (State, error) {
	m := scriptRe.FindSubmatch(html)
	if m == nil {
		return State{}, ErrNoState
	}
	var s State
	if err := json.Unmarshal(m[1], &s); err != nil {
		return State{}, fmt.Errorf("hydrate: decode state: %w", err)
	}
	if s.Entries == nil {
		s.Entries = map[string]Entry{}
	}
	return s, nil
}
