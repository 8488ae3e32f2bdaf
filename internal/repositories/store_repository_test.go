package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partnerhub/internal/models"
)

func TestStoreRepository_Create(t *testing.T) {
	t.Run("store and categories in one tx", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewStoreRepository(db)
		created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO stores`).
			WithArgs(int64(3), "Bean Brothers", "", "12 Itaewon-ro", "+821012345678", "").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(8, created))
		mock.ExpectExec(`INSERT INTO store_categories`).WithArgs(int64(8), int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO store_categories`).WithArgs(int64(8), int64(4)).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		s := &models.Store{OwnerID: 3, Name: "Bean Brothers", Address: "12 Itaewon-ro", PhoneNumber: "+821012345678"}
		require.NoError(t, repo.Create(context.Background(), s, []int64{1, 4}))
		assert.EqualValues(t, 8, s.ID)
		assert.Equal(t, created, s.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second store for the owner is a conflict", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewStoreRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO stores`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: ConstraintStoreOwner})
		mock.ExpectRollback()

		err := repo.Create(context.Background(), &models.Store{OwnerID: 3}, []int64{1})
		constraint, ok := AsConflict(err)
		require.True(t, ok)
		assert.Equal(t, ConstraintStoreOwner, constraint)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestCategoryRepository_FindByIDs(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCategoryRepository(db)

	got, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	mock.ExpectQuery(`SELECT id, name FROM partnership_categories WHERE id = ANY\(\$1\)`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "cafe").AddRow(4, "fitness"))
	got, err = repo.FindByIDs(context.Background(), []int64{1, 4, 99})
	require.NoError(t, err)
	assert.Equal(t, []models.Category{{ID: 1, Name: "cafe"}, {ID: 4, Name: "fitness"}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
