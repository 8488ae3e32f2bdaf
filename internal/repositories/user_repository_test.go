package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partnerhub/internal/models"
)

var userRowColumns = []string{
	"id", "username", "name", "email", "phone_number", "password_hash", "role",
	"is_verified", "is_active", "created_at", "refresh_token", "refresh_expires_at",
}

func TestUserRepository_CreateWithImage(t *testing.T) {
	t.Run("commits user and image", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)
		created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO users`).
			WithArgs("jimin", "Jimin", "j@x.com", "+821012345678", "hash", models.RoleUser, true).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(11, created))
		mock.ExpectExec(`INSERT INTO user_images`).
			WithArgs(int64(11), "https://cdn/u.png").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		u := &models.User{Username: "jimin", Name: "Jimin", Email: "j@x.com", PhoneNumber: "+821012345678",
			PasswordHash: "hash", Role: models.RoleUser, IsVerified: true}
		require.NoError(t, repo.CreateWithImage(context.Background(), u, "https://cdn/u.png"))
		assert.EqualValues(t, 11, u.ID)
		assert.True(t, u.IsActive)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation rolls back and names the constraint", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: ConstraintEmail})
		mock.ExpectRollback()

		err := repo.CreateWithImage(context.Background(), &models.User{Username: "a"}, "img")
		require.Error(t, err)
		constraint, ok := AsConflict(err)
		assert.True(t, ok)
		assert.Equal(t, ConstraintEmail, constraint)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other errors are not conflicts", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectBegin()
		mock.ExpectQuery(`INSERT INTO users`).
			WillReturnError(&pq.Error{Code: "23503"})
		mock.ExpectRollback()

		err := repo.CreateWithImage(context.Background(), &models.User{}, "img")
		require.Error(t, err)
		_, ok := AsConflict(err)
		assert.False(t, ok)
	})
}

func TestUserRepository_GetByUsername(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM users WHERE username = \$1`).
		WithArgs("jimin").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(1, "jimin", "Jimin", "j@x.com", "+821012345678", "hash", "user", true, true, created, nil, nil))
	mock.ExpectQuery(`FROM users WHERE username = \$1`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	u, err := repo.GetByUsername(context.Background(), "jimin")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "j@x.com", u.Email)
	assert.Nil(t, u.RefreshToken)

	u, err = repo.GetByUsername(context.Background(), "ghost")
	assert.NoError(t, err)
	assert.Nil(t, u)
}

func TestUserRepository_TakenFields(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`BOOL_OR`).
		WithArgs("jimin", "j@x.com", "+821012345678").
		WillReturnRows(sqlmock.NewRows([]string{"u", "e", "p"}).AddRow(false, true, false))

	taken, err := repo.TakenFields(context.Background(), "jimin", "j@x.com", "+821012345678")
	require.NoError(t, err)
	assert.Equal(t, Taken{Email: true}, taken)
}

func TestUserRepository_RotateRefresh(t *testing.T) {
	exp := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("unknown token", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(`UPDATE users\s+SET refresh_token = \$1`).
			WithArgs("new", exp, "old").
			WillReturnError(sql.ErrNoRows)

		u, err := repo.RotateRefresh(context.Background(), "old", "new", exp)
		assert.NoError(t, err)
		assert.Nil(t, u)
	})

	t.Run("rotates live token", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)
		created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		mock.ExpectQuery(`UPDATE users`).
			WithArgs("new", exp, "old").
			WillReturnRows(sqlmock.NewRows(userRowColumns).
				AddRow(1, "jimin", "Jimin", "j@x.com", "+821012345678", "hash", "user", true, true, created, "new", exp))

		u, err := repo.RotateRefresh(context.Background(), "old", "new", exp)
		require.NoError(t, err)
		require.NotNil(t, u)
		require.NotNil(t, u.RefreshToken)
		assert.Equal(t, "new", *u.RefreshToken)
		assert.Equal(t, exp, *u.RefreshExpiresAt)
	})
}
