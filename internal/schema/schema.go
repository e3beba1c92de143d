// Package schema содержит соглашения о схеме: префикс таблиц проекта
// и набор служебных полей, общий для всех сущностей.
package schema

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	gormschema "gorm.io/gorm/schema"
)

// TablePrefix - идентификатор проекта. Позволяет нескольким проектам
// использовать один экземпляр базы данных без конфликтов имён.
const TablePrefix = "starter-repo_"

// TableName возвращает физическое имя таблицы для логического имени.
func TableName(name string) string {
	return TablePrefix + name
}

// NamingStrategy - стратегия именования gorm, добавляющая префикс проекта.
// gorm кэширует разобранную схему, так что префикс применяется один раз на модель.
func NamingStrategy() gormschema.NamingStrategy {
	return gormschema.NamingStrategy{TablePrefix: TablePrefix}
}

// ReservedFields - имена полей DefaultFields. Сущность не должна объявлять их сама.
var ReservedFields = []string{"ID", "CreatedAt", "UpdatedAt", "DeletedAt"}

// DefaultFields - служебные колонки, встраиваемые первым полем в каждую сущность.
type DefaultFields struct {
	ID        string         `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"createdAt" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt *time.Time     `json:"updatedAt" gorm:"autoUpdateTime:false"`
	DeletedAt gorm.DeletedAt `json:"deletedAt" gorm:"index"`
}

// Stamp заполняет поля при создании записи. ID генерируется только если
// не передан вызывающим, время создания вызывающий переопределить не может.
func (d *DefaultFields) Stamp(now time.Time) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = now
	d.UpdatedAt = nil
	d.DeletedAt = gorm.DeletedAt{}
}

// Touch выставляет время обновления для очередной записи строки.
func (d *DefaultFields) Touch(now time.Time) time.Time {
	t := NextUpdate(d.UpdatedAt, d.CreatedAt, now)
	d.UpdatedAt = &t
	return t
}

// IsDeleted сообщает, помечена ли запись как удалённая.
func (d *DefaultFields) IsDeleted() bool {
	return d.DeletedAt.Valid
}

// NextUpdate возвращает время обновления, не меньшее ни времени создания,
// ни предыдущего времени обновления.
func NextUpdate(prev *time.Time, created, now time.Time) time.Time {
	t := now
	if t.Before(created) {
		t = created
	}
	if prev != nil && t.Before(*prev) {
		t = *prev
	}
	return t
}

// BeforeCreate - хук gorm, применяющий Stamp.
func (d *DefaultFields) BeforeCreate(tx *gorm.DB) error {
	d.Stamp(tx.Statement.DB.NowFunc())
	return nil
}

// BeforeUpdate - хук gorm. Время обновления выставляет только слой хранения.
func (d *DefaultFields) BeforeUpdate(tx *gorm.DB) error {
	t := d.Touch(tx.Statement.DB.NowFunc())
	tx.Statement.SetColumn("UpdatedAt", &t)
	return nil
}
