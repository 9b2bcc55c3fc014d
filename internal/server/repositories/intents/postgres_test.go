package intents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/bigdatakeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	now := time.Now()
	mock.ExpectQuery(`(?s)^INSERT INTO upload_intents \(id, storage_key, user_id\).*RETURNING created_at$`).
		WithArgs("i-1", "uploads/abc_a.txt", "u-1").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	in := &models.UploadIntent{ID: "i-1", StorageKey: "uploads/abc_a.txt", UserID: "u-1"}
	require.NoError(t, repo.Create(context.Background(), in))
	assert.True(t, in.CreatedAt.Equal(now))
}

func TestListOlderThan(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	cutoff := time.Now().Add(-time.Hour)
	mock.ExpectQuery(`(?s)FROM upload_intents\s+WHERE created_at < \$1\s+ORDER BY created_at\s+LIMIT \$2`).
		WithArgs(cutoff, 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "storage_key", "user_id", "created_at"}).
			AddRow("i-1", "k1", "u-1", cutoff.Add(-time.Hour)).
			AddRow("i-2", "k2", "u-2", cutoff.Add(-time.Minute)))

	got, err := repo.ListOlderThan(context.Background(), cutoff, 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "k1", got[0].StorageKey)
}

func TestListOlderThan_Error(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM upload_intents`).WillReturnError(errors.New("boom"))

	_, err := repo.ListOlderThan(context.Background(), time.Now(), 10)
	assert.ErrorContains(t, err, "boom")
}

func TestDeletes(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`DELETE FROM upload_intents WHERE id = \$1`).WithArgs("i-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM upload_intents WHERE user_id = \$1`).WithArgs("u-1").WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.Delete(context.Background(), "i-1"))
	require.NoError(t, repo.DeleteByUser(context.Background(), "u-1"))
}
