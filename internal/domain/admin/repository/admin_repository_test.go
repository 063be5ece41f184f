package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestGetByUsername(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := NewAdminRepository(db)

	query := regexp.QuoteMeta(`SELECT * FROM "admins" WHERE username = $1 AND "admins"."deleted_at" IS NULL`)
	mock.ExpectQuery(query).WithArgs("admin", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "role", "status"}).
			AddRow(1, "admin", "$2a$10$hash", "super_admin", "active"))

	admin, err := repo.GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, uint(1), admin.ID)
	assert.Equal(t, "super_admin", admin.Role)

	mock.ExpectQuery(query).WithArgs("ghost", 1).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = repo.GetByUsername(ctx, "ghost")
	assert.ErrorIs(t, err, ErrAdminNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountAndTouchLogin(t *testing.T) {
	ctx := context.Background()
	db, mock := newMockDB(t)
	repo := NewAdminRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "admins"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	total, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	at := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "admins" SET "last_login_at"=\$1,"updated_at"=\$2 WHERE id = \$3`).
		WithArgs(at, sqlmock.AnyArg(), 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.TouchLogin(ctx, 7, at))
	assert.NoError(t, mock.ExpectationsWereMet())
}
