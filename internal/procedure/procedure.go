// Package procedure реализует типизированные процедуры с пространствами имён.
//
// Процедура вызывается напрямую как функция (страница сервера) или через
// Registry (сетевой транспорт). В обоих случаях вход валидируется до обращения
// к хранилищу, а защищённая процедура сама отклоняет анонимного вызывающего.
package procedure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/UkralStul/starter-repo/internal/auth"
)

// Kind - тип процедуры.
type Kind int

const (
	KindQuery Kind = iota
	KindMutation
)

func (k Kind) String() string {
	if k == KindMutation {
		return "mutation"
	}
	return "query"
}

// Access - вариант авторизации.
type Access int

const (
	// Public - любой вызывающий.
	Public Access = iota
	// Protected - только вызывающий с личностью.
	Protected
)

// Empty - вход процедуры без аргументов.
type Empty struct{}

// Context - контекст исполнения процедуры.
type Context struct {
	Identity *auth.Identity
	Log      logrus.FieldLogger
}

// Handler - тело процедуры.
type Handler[I, O any] func(ctx context.Context, c Context, in I) (O, error)

// Observer получает результат каждого вызова (метрики).
type Observer interface {
	ObserveCall(path string, code string, d time.Duration)
}

// Layer - общие зависимости всех процедур.
type Layer struct {
	validate *validator.Validate
	log      logrus.FieldLogger
	observer Observer
}

// Option настраивает Layer.
type Option func(*Layer)

// WithLogger задаёт логгер.
func WithLogger(log logrus.FieldLogger) Option {
	return func(l *Layer) { l.log = log }
}

// WithObserver задаёт наблюдателя вызовов.
func WithObserver(o Observer) Option {
	return func(l *Layer) { l.observer = o }
}

// NewLayer создает Layer.
func NewLayer(opts ...Option) *Layer {
	l := &Layer{validate: validator.New(validator.WithRequiredStructEnabled())}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		discard := logrus.New()
		discard.Out = io.Discard
		l.log = discard
	}
	return l
}

// Procedure - типизированная процедура.
type Procedure[I, O any] struct {
	layer   *Layer
	path    string
	kind    Kind
	access  Access
	handler Handler[I, O]
}

// Query объявляет процедуру чтения.
func Query[I, O any](l *Layer, path string, access Access, h Handler[I, O]) *Procedure[I, O] {
	return define(l, path, KindQuery, access, h)
}

// Mutation объявляет процедуру записи.
func Mutation[I, O any](l *Layer, path string, access Access, h Handler[I, O]) *Procedure[I, O] {
	return define(l, path, KindMutation, access, h)
}

func define[I, O any](l *Layer, path string, kind Kind, access Access, h Handler[I, O]) *Procedure[I, O] {
	ns, name, ok := strings.Cut(path, ".")
	if !ok || ns == "" || name == "" || strings.Contains(name, ".") {
		panic(fmt.Sprintf("procedure: path %q must be namespace.name", path))
	}
	return &Procedure[I, O]{layer: l, path: path, kind: kind, access: access, handler: h}
}

func (p *Procedure[I, O]) Path() string   { return p.path }
func (p *Procedure[I, O]) Kind() Kind     { return p.kind }
func (p *Procedure[I, O]) Access() Access { return p.access }

// Call вызывает процедуру внутри процесса, без сетевого перехода.
func (p *Procedure[I, O]) Call(ctx context.Context, in I) (O, error) {
	start := time.Now()
	out, err := p.call(ctx, in)
	d := time.Since(start)

	code := string(CodeOf(err))
	if p.layer.observer != nil {
		p.layer.observer.ObserveCall(p.path, code, d)
	}
	entry := p.layer.log.WithFields(logrus.Fields{"procedure": p.path, "duration": d})
	if err != nil {
		entry.WithError(err).Debug("procedure failed")
	} else {
		entry.Debug("procedure called")
	}
	return out, err
}

func (p *Procedure[I, O]) call(ctx context.Context, in I) (O, error) {
	var zero O
	if err := p.layer.validateInput(in); err != nil {
		return zero, p.tag(Invalid("invalid input", err))
	}

	id := auth.FromContext(ctx)
	if p.access == Protected && id == nil {
		return zero, p.tag(Unauthorized("authentication required"))
	}

	out, err := p.handler(ctx, Context{Identity: id, Log: p.layer.log.WithField("procedure", p.path)}, in)
	if err != nil {
		return zero, p.tag(FromStorage(err))
	}
	return out, nil
}

func (p *Procedure[I, O]) tag(e *Error) *Error {
	if e.Path == "" {
		e.Path = p.path
	}
	return e
}

// Invoke декодирует JSON-вход и вызывает процедуру. Используется транспортом.
func (p *Procedure[I, O]) Invoke(ctx context.Context, raw []byte) (any, error) {
	in, err := Decode[I](raw)
	if err != nil {
		return nil, p.tag(Invalid("malformed input", err))
	}
	return p.Call(ctx, in)
}

// Decode разбирает JSON-вход. Пустое тело соответствует нулевому значению.
func Decode[I any](raw []byte) (I, error) {
	var in I
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return in, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, err
	}
	if dec.More() {
		return in, fmt.Errorf("unexpected data after input")
	}
	return in, nil
}

func (l *Layer) validateInput(in any) error {
	v := reflect.ValueOf(in)
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	return l.validate.Struct(v.Interface())
}
