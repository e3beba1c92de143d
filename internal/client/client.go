// Package client вызывает процедуры с клиентской стороны. Запрос, ключ
// которого уже готов во встроенном состоянии страницы, обслуживается
// из него без сетевого вызова.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/UkralStul/starter-repo/internal/httpapi"
	"github.com/UkralStul/starter-repo/internal/hydrate"
	"github.com/UkralStul/starter-repo/internal/procedure"
)

// Client - клиент процедур.
type Client struct {
	baseURL string
	http    *http.Client
	token   string

	mu    sync.RWMutex
	state hydrate.State

	calls atomic.Int64
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient задаёт HTTP-клиент.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithState задаёт состояние, извлечённое из страницы.
func WithState(s hydrate.State) Option {
	return func(c *Client) { c.state = s }
}

// WithToken задаёт bearer-токен вызывающего.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New создает клиент для сервера по адресу baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http.DefaultClient,
		state:   hydrate.State{Entries: map[string]hydrate.Entry{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.state.Entries == nil {
		c.state.Entries = map[string]hydrate.Entry{}
	}
	return c
}

// Hydrate заменяет состояние клиента снимком со страницы.
func (c *Client) Hydrate(html []byte) error {
	s, err := hydrate.ParseState(html)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	return nil
}

// ServerStatus сообщает, что сервер сделал с вызовом: ok=false означает,
// что вызов на сервере не запрашивался или не успел завершиться.
func (c *Client) ServerStatus(path string, in any) (hydrate.Status, bool, error) {
	key, err := hydrate.Key(path, in)
	if err != nil {
		return "", false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.state.Entries[key]
	return e.Status, ok, nil
}

// NetworkCalls возвращает количество выполненных сетевых вызовов.
func (c *Client) NetworkCalls() int64 {
	return c.calls.Load()
}

// Query выполняет процедуру чтения. Готовое значение из состояния страницы
// используется без сети; ошибка или отсутствие записи ведут к сетевому вызову.
func (c *Client) Query(ctx context.Context, path string, in, out any) error {
	key, err := hydrate.Key(path, in)
	if err != nil {
		return err
	}

	c.mu.RLock()
	raw, ok := c.state.Resolved(key)
	c.mu.RUnlock()
	if ok {
		return decode(raw, out)
	}

	raw, err = c.call(ctx, path, in)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.state.Entries[key] = hydrate.Entry{Status: hydrate.StatusResolved, Data: raw}
	c.mu.Unlock()
	return decode(raw, out)
}

// Mutate выполняет процедуру записи, всегда по сети.
func (c *Client) Mutate(ctx context.Context, path string, in, out any) error {
	raw, err := c.call(ctx, path, in)
	if err != nil {
		return err
	}
	return decode(raw, out)
}

func (c *Client) call(ctx context.Context, path string, in any) (json.RawMessage, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("client: marshal input: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+httpapi.Prefix+"/"+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.calls.Add(1)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: call %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read %s: %w", path, err)
	}
	var envelope httpapi.Response
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("client: decode %s (status %d): %w", path, resp.StatusCode, err)
	}
	if envelope.Error != nil {
		return nil, &procedure.Error{
			Code:    procedure.Code(envelope.Error.Code),
			Message: envelope.Error.Message,
			Path:    path,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("client: call %s: unexpected status %d", path, resp.StatusCode)
	}
	return envelope.Result, nil
}

func decode(raw json.RawMessage, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("client: decode result: %w", err)
	}
	return nil
}
