package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/UkralStul/starter-repo/internal/domain"
	"github.com/UkralStul/starter-repo/internal/storage"
)

// Store реализует интерфейс Storage в памяти.
type Store struct {
	mu    sync.RWMutex
	now   func() time.Time
	posts map[string]*domain.Post
	order []string // id постов в порядке создания
}

var _ storage.Storage = (*Store)(nil)

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	return NewWithClock(func() time.Time { return time.Now().UTC() })
}

// NewWithClock создает хранилище с заданным источником времени.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		now:   now,
		posts: make(map[string]*domain.Post),
	}
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := *post
	p.Name = cloneString(post.Name)
	p.Stamp(s.now())
	if _, ok := s.posts[p.ID]; ok {
		return nil, fmt.Errorf("post with id %s: %w", p.ID, storage.ErrConflict)
	}
	s.posts[p.ID] = &p
	s.order = append(s.order, p.ID)

	*post = p
	return clone(&p), nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, err := s.live(id)
	if err != nil {
		return nil, err
	}
	return clone(post), nil
}

func (s *Store) GetLatestPost(ctx context.Context) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Post
	// Обход с конца: при равном CreatedAt побеждает более поздняя вставка.
	for i := len(s.order) - 1; i >= 0; i-- {
		p := s.posts[s.order[i]]
		if p.IsDeleted() {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return clone(latest), nil
}

func (s *Store) UpdatePostName(ctx context.Context, id string, name *string) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, err := s.live(id)
	if err != nil {
		return nil, err
	}
	post.Name = cloneString(name)
	post.Touch(s.now())
	return clone(post), nil
}

func (s *Store) SoftDeletePost(ctx context.Context, id string) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, err := s.live(id)
	if err != nil {
		return nil, err
	}
	t := post.Touch(s.now())
	post.DeletedAt.Time = t
	post.DeletedAt.Valid = true
	return clone(post), nil
}

func (s *Store) Close() error { return nil }

// live ищет пост, не помеченный как удалённый. Вызывается под блокировкой.
func (s *Store) live(id string) (*domain.Post, error) {
	post, ok := s.posts[id]
	if !ok || post.IsDeleted() {
		return nil, fmt.Errorf("post with id %s: %w", id, storage.ErrNotFound)
	}
	return post, nil
}

func clone(p *domain.Post) *domain.Post {
	c := *p
	c.Name = cloneString(p.Name)
	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
