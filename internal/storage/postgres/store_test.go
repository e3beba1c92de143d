package postgres

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/UkralStul/starter-repo/internal/domain"
	"github.com/UkralStul/starter-repo/internal/storage"
)

var postColumns = []string{"id", "created_at", "updated_at", "deleted_at", "name"}

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), Config(nil))
	require.NoError(t, err)
	return NewWithDB(gdb), mock
}

func TestStore_GetLatestPost_UsesNamespacedTableAndFiltersDeleted(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "starter-repo_posts" WHERE "starter-repo_posts"\."deleted_at" IS NULL ORDER BY created_at DESC`).
		WillReturnRows(sqlmock.NewRows(postColumns).AddRow("0b6f3c5e-0000-4000-8000-000000000001", created, nil, nil, "latest"))

	post, err := store.GetLatestPost(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0b6f3c5e-0000-4000-8000-000000000001", post.ID)
	assert.Equal(t, "latest", *post.Name)
	assert.Nil(t, post.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetLatestPost_Empty(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM "starter-repo_posts"`).WillReturnRows(sqlmock.NewRows(postColumns))

	_, err := store.GetLatestPost(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetPostByID_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM "starter-repo_posts" WHERE id = \$1 AND "starter-repo_posts"\."deleted_at" IS NULL`).
		WillReturnRows(sqlmock.NewRows(postColumns))

	_, err := store.GetPostByID(context.Background(), "0b6f3c5e-0000-4000-8000-000000000002")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetPostByID_StorageError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`FROM "starter-repo_posts"`).WillReturnError(sql.ErrConnDone)

	_, err := store.GetPostByID(context.Background(), "0b6f3c5e-0000-4000-8000-000000000003")
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}

func TestStore_UpdatePostName_StampsUpdatedAt(t *testing.T) {
	store, mock := newMockStore(t)
	id := "0b6f3c5e-0000-4000-8000-000000000004"
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "starter-repo_posts" WHERE id = \$1 AND "starter-repo_posts"\."deleted_at" IS NULL`).
		WillReturnRows(sqlmock.NewRows(postColumns).AddRow(id, created, nil, nil, "old"))
	mock.ExpectExec(`UPDATE "starter-repo_posts" SET "updated_at"=\$1,"name"=\$2 WHERE "starter-repo_posts"\."deleted_at" IS NULL AND "id" = \$3`).
		WithArgs(sqlmock.AnyArg(), "renamed", id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	name := "renamed"
	post, err := store.UpdatePostName(context.Background(), id, &name)
	require.NoError(t, err)
	assert.Equal(t, "renamed", *post.Name)
	require.NotNil(t, post.UpdatedAt)
	assert.False(t, post.UpdatedAt.Before(post.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdatePostName_DeletedIsNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM "starter-repo_posts" WHERE id = \$1 AND "starter-repo_posts"\."deleted_at" IS NULL`).
		WillReturnRows(sqlmock.NewRows(postColumns))
	mock.ExpectRollback()

	name := "renamed"
	_, err := store.UpdatePostName(context.Background(), "0b6f3c5e-0000-4000-8000-000000000005", &name)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SoftDeletePost_StampsUpdatedAtAndDeletedAt(t *testing.T) {
	store, mock := newMockStore(t)
	id := "0b6f3c5e-0000-4000-8000-000000000006"
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "starter-repo_posts" WHERE id = \$1 AND "starter-repo_posts"\."deleted_at" IS NULL`).
		WillReturnRows(sqlmock.NewRows(postColumns).AddRow(id, created, nil, nil, "doomed"))
	mock.ExpectExec(`UPDATE "starter-repo_posts" SET "updated_at"=\$1,"deleted_at"=\$2 WHERE "starter-repo_posts"\."deleted_at" IS NULL AND "id" = \$3`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	post, err := store.SoftDeletePost(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, post.DeletedAt.Valid)
	require.NotNil(t, post.UpdatedAt)
	assert.False(t, post.UpdatedAt.Before(post.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	store, err := New(dsn, nil)
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	name := "integration"
	post, err := store.CreatePost(ctx, &domain.Post{Name: &name})
	require.NoError(t, err)
	assert.NotEmpty(t, post.ID)
	assert.False(t, post.CreatedAt.IsZero())
	assert.Nil(t, post.UpdatedAt)

	renamed := "renamed"
	updated, err := store.UpdatePostName(ctx, post.ID, &renamed)
	require.NoError(t, err)
	require.NotNil(t, updated.UpdatedAt)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	_, err = store.SoftDeletePost(ctx, post.ID)
	require.NoError(t, err)

	_, err = store.GetPostByID(ctx, post.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
