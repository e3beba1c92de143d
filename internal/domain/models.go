package domain

import "github.com/UkralStul/starter-repo/internal/schema"

// Post представляет пост в системе. Служебные поля встраиваются первыми,
// чтобы собственные поля сущности не могли их перекрыть.
type Post struct {
	schema.DefaultFields
	Name *string `json:"name" gorm:"type:varchar(256);index:name_idx"`
}

// PostNameMaxLen - максимальная длина имени поста.
const PostNameMaxLen = 256
