package router

import (
	"context"
	"errors"

	"github.com/UkralStul/starter-repo/internal/domain"
	"github.com/UkralStul/starter-repo/internal/procedure"
	"github.com/UkralStul/starter-repo/internal/storage"
)

// SecretMessage показывается только вызывающему с личностью.
const SecretMessage = "you can now see this secret message!"

// HelloInput - вход post.hello.
type HelloInput struct {
	Text string `json:"text" validate:"required,max=256"`
}

// HelloOutput - результат post.hello.
type HelloOutput struct {
	Greeting string `json:"greeting"`
}

// CreatePostInput - вход post.create.
type CreatePostInput struct {
	Name string `json:"name" validate:"required,min=1,max=256"`
}

// RenamePostInput - вход post.rename.
type RenamePostInput struct {
	ID   string `json:"id" validate:"required,uuid"`
	Name string `json:"name" validate:"required,min=1,max=256"`
}

// PostIDInput - вход процедур, адресующих пост по id.
type PostIDInput struct {
	ID string `json:"id" validate:"required,uuid"`
}

// SecretResult - результат post.secret. Страница рисует секцию только по тегу
// Authorized и не проверяет личность сама.
type SecretResult struct {
	Authorized bool   `json:"authorized"`
	Message    string `json:"message,omitempty"`
}

// PostRouter - процедуры пространства имён post.
type PostRouter struct {
	Hello     *procedure.Procedure[HelloInput, HelloOutput]
	GetLatest *procedure.Procedure[procedure.Empty, *domain.Post]
	Secret    *procedure.Procedure[procedure.Empty, SecretResult]
	Create    *procedure.Procedure[CreatePostInput, *domain.Post]
	Rename    *procedure.Procedure[RenamePostInput, *domain.Post]
	Delete    *procedure.Procedure[PostIDInput, *domain.Post]
}

// NewPostRouter объявляет процедуры post.* над хранилищем.
func NewPostRouter(l *procedure.Layer, store storage.Storage) *PostRouter {
	return &PostRouter{
		Hello: procedure.Query(l, "post.hello", procedure.Public,
			func(ctx context.Context, c procedure.Context, in HelloInput) (HelloOutput, error) {
				return HelloOutput{Greeting: "Hello " + in.Text}, nil
			}),

		// Отсутствие постов - не ошибка, а пустой результат.
		GetLatest: procedure.Query(l, "post.getLatest", procedure.Public,
			func(ctx context.Context, c procedure.Context, _ procedure.Empty) (*domain.Post, error) {
				post, err := store.GetLatestPost(ctx)
				if errors.Is(err, storage.ErrNotFound) {
					return nil, nil
				}
				return post, err
			}),

		Secret: procedure.Query(l, "post.secret", procedure.Public,
			func(ctx context.Context, c procedure.Context, _ procedure.Empty) (SecretResult, error) {
				if c.Identity == nil {
					return SecretResult{Authorized: false}, nil
				}
				return SecretResult{Authorized: true, Message: SecretMessage}, nil
			}),

		Create: procedure.Mutation(l, "post.create", procedure.Protected,
			func(ctx context.Context, c procedure.Context, in CreatePostInput) (*domain.Post, error) {
				name := in.Name
				post, err := store.CreatePost(ctx, &domain.Post{Name: &name})
				if err != nil {
					return nil, err
				}
				c.Log.WithField("post_id", post.ID).Info("post created")
				return post, nil
			}),

		Rename: procedure.Mutation(l, "post.rename", procedure.Protected,
			func(ctx context.Context, c procedure.Context, in RenamePostInput) (*domain.Post, error) {
				name := in.Name
				return store.UpdatePostName(ctx, in.ID, &name)
			}),

		Delete: procedure.Mutation(l, "post.delete", procedure.Protected,
			func(ctx context.Context, c procedure.Context, in PostIDInput) (*domain.Post, error) {
				post, err := store.SoftDeletePost(ctx, in.ID)
				if err != nil {
					return nil, err
				}
				c.Log.WithField("post_id", post.ID).Info("post soft-deleted")
				return post, nil
			}),
	}
}

// Endpoints возвращает процедуры для регистрации в транспорте.
func (r *PostRouter) Endpoints() []procedure.Endpoint {
	return []procedure.Endpoint{r.Hello, r.GetLatest, r.Secret, r.Create, r.Rename, r.Delete}
}
