package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/UkralStul/starter-repo/internal/domain"
	"github.com/UkralStul/starter-repo/internal/schema"
	"github.com/UkralStul/starter-repo/internal/storage"
)

// Store реализует интерфейс Storage с использованием PostgreSQL через gorm.
type Store struct {
	db *gorm.DB
}

var _ storage.Storage = (*Store)(nil)

// Config возвращает конфигурацию gorm: префикс таблиц проекта, время в UTC,
// логирование через переданный writer (например, *logrus.Logger).
func Config(w logger.Writer) *gorm.Config {
	cfg := &gorm.Config{
		NamingStrategy: schema.NamingStrategy(),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	}
	if w != nil {
		cfg.Logger = logger.New(w, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}
	return cfg
}

// New создает новый экземпляр хранилища PostgreSQL и применяет миграцию схемы.
func New(dsn string, w logger.Writer) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), Config(w))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.Post{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB оборачивает уже открытое соединение без миграции.
func NewWithDB(db *gorm.DB) *Store {
	return &Store{db: db}
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	// ID, CreatedAt и UpdatedAt выставляет хук BeforeCreate из schema.DefaultFields
	if err := s.db.WithContext(ctx).Create(post).Error; err != nil {
		return nil, translate(err)
	}
	return post, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	var post domain.Post
	// gorm.DeletedAt сам добавляет условие deleted_at IS NULL
	if err := s.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (s *Store) GetLatestPost(ctx context.Context) (*domain.Post, error) {
	var post domain.Post
	if err := s.db.WithContext(ctx).Order("created_at DESC").Take(&post).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (s *Store) UpdatePostName(ctx context.Context, id string, name *string) (*domain.Post, error) {
	var post domain.Post
	// Транзакция нужна, чтобы хук BeforeUpdate видел текущие created_at/updated_at
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Model(&post).Update("name", name).Error; err != nil {
			return err
		}
		post.Name = name
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (s *Store) SoftDeletePost(ctx context.Context, id string) (*domain.Post, error) {
	var post domain.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, "id = ?", id).Error; err != nil {
			return err
		}
		deletedAt := gorm.DeletedAt{Time: tx.NowFunc(), Valid: true}
		if err := tx.Model(&post).Update("deleted_at", deletedAt).Error; err != nil {
			return err
		}
		post.DeletedAt = deletedAt
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("post: %w", storage.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("post: %w", storage.ErrConflict)
	default:
		return err
	}
}
