package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

var userCols = []string{"id", "username", "email", "password_hash", "first_name", "last_name", "gender", "user_type", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func testUser(now time.Time) *models.User {
	return &models.User{
		UserName: "ana", Email: "ana@example.com", PasswordHash: "$argon2id$x",
		FirstName: "Ana", LastName: "Lee", Gender: "f", UserType: common.UserTypeNormal,
		CreatedAt: now, UpdatedAt: now,
	}
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	q := `(?s)^INSERT\s+INTO\s+users\s*\(username,\s*email,\s*password_hash,.*\)\s*VALUES\s*\(\$1,.*\$9\)\s*RETURNING\s+id\s*$`

	mock.ExpectQuery(q).
		WithArgs("ana", "ana@example.com", "$argon2id$x", "Ana", "Lee", "f", "normal", now, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("42"))

	got, err := repo.Create(context.Background(), testUser(now))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if got.ID != "42" || got.UserName != "ana" {
		t.Fatalf("unexpected user: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_UniqueViolation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	_, err := repo.Create(context.Background(), testUser(time.Now()))
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("want common.ErrConflict, got %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), testUser(time.Now()))
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetUserByLogin_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	q := `(?s)^SELECT\s+id,\s*username,.*FROM\s+users\s+WHERE\s+username\s*=\s*\$1\s+OR\s+email\s*=\s*\$1.*LIMIT\s+1$`

	rows := sqlmock.NewRows(userCols).
		AddRow("u-1", "ana", "ana@example.com", "hash", "Ana", "Lee", "f", "normal", now, now)
	mock.ExpectQuery(q).WithArgs("ana@example.com").WillReturnRows(rows)

	got, err := repo.GetUserByLogin(context.Background(), "ana@example.com")
	if err != nil {
		t.Fatalf("GetUserByLogin error: %v", err)
	}
	if got.ID != "u-1" || got.UserName != "ana" || got.PasswordHash != "hash" {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestGetUserByLogin_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+users`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUserByLogin(context.Background(), "ghost")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGetByID_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).WithArgs("u-1").WillReturnError(errors.New("db err"))

	_, err := repo.GetByID(context.Background(), "u-1")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetByUsernameAndEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`WHERE\s+username\s*=\s*\$1$`).WithArgs("ana").
		WillReturnRows(sqlmock.NewRows(userCols).AddRow("u-1", "ana", "a@x", "h", "", "", "", "normal", now, now))
	mock.ExpectQuery(`WHERE\s+email\s*=\s*\$1$`).WithArgs("a@x").
		WillReturnError(sql.ErrNoRows)

	u, err := repo.GetByUsername(context.Background(), "ana")
	if err != nil || u.ID != "u-1" {
		t.Fatalf("GetByUsername: %+v %v", u, err)
	}
	if _, err := repo.GetByEmail(context.Background(), "a@x"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(userCols).
		AddRow("u-1", "ana", "a@x", "h", "", "", "", "normal", now, now).
		AddRow("u-2", "bob", "b@x", "h", "", "", "", "admin", now, now)
	mock.ExpectQuery(`(?s)SELECT.*FROM\s+users\s+ORDER\s+BY`).WillReturnRows(rows)

	got, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 2 || got[1].UserType != "admin" {
		t.Fatalf("unexpected list: %+v", got)
	}
}

func TestUpdate(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	u := testUser(now)
	u.ID = "u-1"

	mock.ExpectExec(`(?s)^UPDATE\s+users\s+SET\s+username\s*=\s*\$2.*WHERE\s+id\s*=\s*\$1$`).
		WithArgs("u-1", "ana", "ana@example.com", "$argon2id$x", "Ana", "Lee", "f", "normal", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE\s+users`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE\s+users`).WillReturnError(&pgconn.PgError{Code: "23505"})

	if err := repo.Update(context.Background(), u); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if err := repo.Update(context.Background(), u); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	if err := repo.Update(context.Background(), u); !errors.Is(err, common.ErrConflict) {
		t.Fatalf("want conflict, got %v", err)
	}
}

func TestUpdatePassword(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectExec(`^UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$2,\s*updated_at\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("u-1", "newhash", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdatePassword(context.Background(), "u-1", "newhash", now); err != nil {
		t.Fatalf("UpdatePassword error: %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`).WithArgs("u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`^DELETE\s+FROM\s+users`).WithArgs("u-2").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`^DELETE\s+FROM\s+users`).WithArgs("u-3").
		WillReturnError(errors.New("db err"))

	if err := repo.Delete(context.Background(), "u-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := repo.Delete(context.Background(), "u-2"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	if err := repo.Delete(context.Background(), "u-3"); err == nil {
		t.Fatal("expected error")
	}
}
