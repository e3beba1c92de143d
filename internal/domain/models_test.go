package domain

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormschema "gorm.io/gorm/schema"

	"github.com/UkralStul/starter-repo/internal/schema"
)

func TestPost_Schema(t *testing.T) {
	s, err := gormschema.Parse(&Post{}, &sync.Map{}, schema.NamingStrategy())
	require.NoError(t, err)

	assert.Equal(t, "starter-repo_posts", s.Table)
	require.GreaterOrEqual(t, len(s.DBNames), 5)
	// Служебные колонки идут первыми.
	assert.Equal(t, []string{"id", "created_at", "updated_at", "deleted_at"}, s.DBNames[:4])
	assert.Contains(t, s.DBNames, "name")

	id := s.LookUpField("id")
	require.NotNil(t, id)
	assert.True(t, id.PrimaryKey)

	createdAt := s.LookUpField("created_at")
	require.NotNil(t, createdAt)
	assert.True(t, createdAt.NotNull)

	updatedAt := s.LookUpField("updated_at")
	require.NotNil(t, updatedAt)
	assert.Zero(t, updatedAt.AutoUpdateTime, "updated_at is set by the storage layer on update only")

	name := s.LookUpField("name")
	require.NotNil(t, name)
	assert.Equal(t, "name_idx", name.TagSettings["INDEX"])
}

func TestPost_DoesNotShadowDefaultFields(t *testing.T) {
	typ := reflect.TypeOf(Post{})
	require.True(t, typ.Field(0).Anonymous)
	assert.Equal(t, reflect.TypeOf(schema.DefaultFields{}), typ.Field(0).Type)

	for i := 1; i < typ.NumField(); i++ {
		assert.NotContains(t, schema.ReservedFields, typ.Field(i).Name)
	}
}
