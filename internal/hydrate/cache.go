// Package hydrate - граница предзагрузки и гидратации.
//
// Во время серверного рендера страница вызывает процедуры через Cache.
// Prefetch запускает вызов в фоне и не ждёт результата, Fetch ждёт.
// Одинаковые (процедура, вход) в рамках одного рендера исполняются один раз.
// При завершении ответа Dehydrate снимает снимок кэша: готовые значения
// и ошибки попадают в страницу, незавершённые вызовы отбрасываются,
// и клиент выполнит их сам.
//
// Cache живёт ровно один запрос и передаётся через контекст.
package hydrate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/graph-gophers/dataloader"
	"github.com/sirupsen/logrus"

	"github.com/UkralStul/starter-repo/internal/procedure"
)

// Status - состояние записи кэша.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
	StatusFailed   Status = "failed"
)

// Observer получает количество записей по состояниям при Dehydrate.
type Observer interface {
	ObserveDehydrate(resolved, failed, dropped int)
}

type entry struct {
	run    func() (any, error)
	status Status
	data   any
	err    error
	done   chan struct{}
}

// Cache - кэш вызовов процедур одного рендера.
type Cache struct {
	ctx      context.Context
	loader   *dataloader.Loader
	log      logrus.FieldLogger
	observer Observer

	mu      sync.Mutex
	entries map[string]*entry
}

// Option настраивает Cache.
type Option func(*Cache)

// WithLogger задаёт логгер.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Cache) { c.log = log }
}

// WithObserver задаёт наблюдателя (метрики).
func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

// New создает кэш для одного рендера. Отмена ctx не прерывает уже
// запущенные вызовы: у предзагрузки нет токена отмены.
func New(ctx context.Context, opts ...Option) *Cache {
	c := &Cache{
		ctx:     context.WithoutCancel(ctx),
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logrus.StandardLogger()
	}
	// Кэш лоадера гарантирует одно исполнение на ключ.
	c.loader = dataloader.NewBatchedLoader(c.batch, dataloader.WithWait(time.Millisecond))
	return c
}

// Prefetch запускает процедуру в фоне и сразу возвращает управление.
// Ошибка вызова сохраняется в записи кэша и не возвращается рендеру.
func Prefetch[I, O any](ctx context.Context, c *Cache, p *procedure.Procedure[I, O], in I) {
	key, err := Key(p.Path(), in)
	if err != nil {
		c.log.WithError(err).WithField("procedure", p.Path()).Warn("prefetch skipped")
		return
	}
	c.schedule(key, call(ctx, p, in))
}

// Fetch вызывает процедуру и ждёт результата. Результат тоже попадает в кэш,
// а повторный вызов с тем же входом не исполняет процедуру снова.
func Fetch[I, O any](ctx context.Context, c *Cache, p *procedure.Procedure[I, O], in I) (O, error) {
	var zero O
	key, err := Key(p.Path(), in)
	if err != nil {
		return zero, procedure.Invalid("unserializable input", err)
	}
	v, err := c.schedule(key, call(ctx, p, in))()
	if err != nil {
		return zero, err
	}
	e := v.(*entry)
	select {
	case <-e.done:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	c.mu.Lock()
	data, err := e.data, e.err
	c.mu.Unlock()
	if err != nil {
		return zero, err
	}
	out, _ := data.(O)
	return out, nil
}

func call[I, O any](ctx context.Context, p *procedure.Procedure[I, O], in I) func() (any, error) {
	callCtx := context.WithoutCancel(ctx)
	return func() (any, error) {
		return p.Call(callCtx, in)
	}
}

func (c *Cache) schedule(key string, run func() (any, error)) dataloader.Thunk {
	c.mu.Lock()
	if _, ok := c.entries[key]; !ok {
		c.entries[key] = &entry{run: run, status: StatusPending, done: make(chan struct{})}
	}
	c.mu.Unlock()
	return c.loader.Load(c.ctx, dataloader.StringKey(key))
}

// batch запускает накопленные вызовы параллельно и сразу возвращает записи:
// независимые вызовы одного рендера не ждут друг друга.
func (c *Cache) batch(_ context.Context, keys dataloader.Keys) []*dataloader.Result {
	results := make([]*dataloader.Result, len(keys))
	for i, k := range keys {
		c.mu.Lock()
		e := c.entries[k.String()]
		c.mu.Unlock()

		go func(key string, e *entry) {
			data, err := c.execute(e)
			c.settle(key, e, data, err)
		}(k.String(), e)
		results[i] = &dataloader.Result{Data: e}
	}
	return results
}

func (c *Cache) execute(e *entry) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hydrate: procedure panicked: %v", r)
		}
	}()
	return e.run()
}

func (c *Cache) settle(key string, e *entry, data any, err error) {
	c.mu.Lock()
	if err != nil {
		e.status = StatusFailed
		e.err = err
	} else {
		e.status = StatusResolved
		e.data = data
	}
	c.mu.Unlock()
	close(e.done)

	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("cached call failed")
	}
}

// Peek возвращает результат вызова, если он уже готов, не дожидаясь
// и не запуская его.
func Peek[I, O any](c *Cache, p *procedure.Procedure[I, O], in I) (O, bool) {
	var zero O
	key, err := Key(p.Path(), in)
	if err != nil {
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.status != StatusResolved {
		return zero, false
	}
	out, ok := e.data.(O)
	return out, ok
}

// Lookup возвращает состояние записи по ключу; ok=false, если вызова не было.
func (c *Cache) Lookup(key string) (Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	return e.status, true
}

// Len возвращает количество записей во всех состояниях.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Wait ждёт завершения всех запущенных вызовов или отмены ctx.
func (c *Cache) Wait(ctx context.Context) error {
	c.mu.Lock()
	pending := make([]chan struct{}, 0, len(c.entries))
	for _, e := range c.entries {
		pending = append(pending, e.done)
	}
	c.mu.Unlock()

	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Dehydrate снимает снимок кэша в момент завершения ответа.
// Записи в состоянии Pending в снимок не попадают.
func (c *Cache) Dehydrate() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := State{Entries: make(map[string]Entry, len(c.entries))}
	var resolved, failed, dropped int
	for key, e := range c.entries {
		switch e.status {
		case StatusResolved:
			raw, err := json.Marshal(e.data)
			if err != nil {
				state.Entries[key] = failedEntry(procedure.CodeStorage, "unserializable result")
				failed++
				continue
			}
			state.Entries[key] = Entry{Status: StatusResolved, Data: raw}
			resolved++
		case StatusFailed:
			pe := procedure.FromStorage(e.err)
			state.Entries[key] = failedEntry(pe.Code, pe.Message)
			failed++
		default:
			dropped++
		}
	}

	if c.observer != nil {
		c.observer.ObserveDehydrate(resolved, failed, dropped)
	}
	if dropped > 0 {
		c.log.WithField("dropped", dropped).Debug("pending calls left to the client")
	}
	return state
}

func failedEntry(code procedure.Code, msg string) Entry {
	return Entry{Status: StatusFailed, Error: &EntryError{Code: string(code), Message: msg}}
}
