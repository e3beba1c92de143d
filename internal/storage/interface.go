package storage

import (
	"context"
	"errors"

	"github.com/UkralStul/starter-repo/internal/domain"
)

var (
	// ErrNotFound - запись отсутствует или помечена как удалённая.
	ErrNotFound = errors.New("record not found")
	// ErrConflict - запись с таким id уже существует.
	ErrConflict = errors.New("record already exists")
)

// Storage определяет контракт для хранилищ.
//
// Все методы чтения игнорируют записи с заполненным DeletedAt.
// Одновременные обновления одной записи не синхронизируются: побеждает последняя запись.
type Storage interface {
	CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	GetPostByID(ctx context.Context, id string) (*domain.Post, error)
	// GetLatestPost возвращает последний созданный пост или ErrNotFound.
	GetLatestPost(ctx context.Context) (*domain.Post, error)
	UpdatePostName(ctx context.Context, id string, name *string) (*domain.Post, error)
	SoftDeletePost(ctx context.Context, id string) (*domain.Post, error)

	Close() error
}
