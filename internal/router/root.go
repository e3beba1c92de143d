// Package router собирает процедуры приложения.
package router

import (
	"github.com/UkralStul/starter-repo/internal/procedure"
	"github.com/UkralStul/starter-repo/internal/storage"
)

// App - корневой набор процедур. Новые пространства имён добавляются полями.
type App struct {
	Post *PostRouter

	registry *procedure.Registry
}

// New создает App над хранилищем.
func New(l *procedure.Layer, store storage.Storage) *App {
	post := NewPostRouter(l, store)
	return &App{
		Post:     post,
		registry: procedure.NewRegistry(post.Endpoints()...),
	}
}

// Registry возвращает все процедуры приложения для сетевого транспорта.
func (a *App) Registry() *procedure.Registry {
	return a.registry
}
