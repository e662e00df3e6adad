package refreshtokens

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
)

var tokenCols = []string{"token_id", "user_id", "created_at", "expires_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	q := `(?s)^INSERT\s+INTO\s+refresh_tokens\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*ON\s+CONFLICT\s*\(token_id\)\s*DO\s+NOTHING$`

	mock.ExpectExec(q).
		WithArgs("jti-1", "u1", now, now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), &models.RefreshToken{TokenID: "jti-1", UserID: "u1", CreatedAt: now, ExpiresAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT\s+INTO\s+refresh_tokens`).
		WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.RefreshToken{TokenID: "jti-1"})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFind_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+token_id,\s*user_id,\s*created_at,\s*expires_at\s+FROM\s+refresh_tokens\s+WHERE\s+token_id\s*=\s*\$1$`

	created := time.Now().UTC()
	expires := created.Add(10 * time.Minute)
	mock.ExpectQuery(q).
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow("jti-1", "u1", created, expires))

	got, err := repo.Find(context.Background(), "jti-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != "u1" || !got.ExpiresAt.Equal(expires) || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestFind_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+refresh_tokens`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Find(context.Background(), "missing")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestFind_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+refresh_tokens`).
		WithArgs("jti-1").
		WillReturnError(errors.New("db err"))

	_, err := repo.Find(context.Background(), "jti-1")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestTake(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token_id\s*=\s*\$1\s+RETURNING\s+token_id,\s*user_id,\s*created_at,\s*expires_at$`
	now := time.Now().UTC()

	mock.ExpectQuery(q).WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows(tokenCols).AddRow("jti-1", "u1", now, now.Add(time.Hour)))
	mock.ExpectQuery(q).WithArgs("jti-1").
		WillReturnError(sql.ErrNoRows)

	got, err := repo.Take(context.Background(), "jti-1")
	if err != nil || got.TokenID != "jti-1" {
		t.Fatalf("first Take: %+v %v", got, err)
	}
	if _, err := repo.Take(context.Background(), "jti-1"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("second Take: want not found, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token_id\s*=\s*\$1$`

	mock.ExpectExec(q).WithArgs("jti-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("jti-1").WillReturnError(errors.New("db err"))

	if err := repo.Delete(context.Background(), "jti-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := repo.Delete(context.Background(), "jti-1")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestListByUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`(?s)FROM\s+refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at$`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(tokenCols).
			AddRow("a", "u1", now, now.Add(time.Hour)).
			AddRow("b", "u1", now, now.Add(2*time.Hour)))

	got, err := repo.ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].TokenID != "a" || got[1].TokenID != "b" {
		t.Fatalf("unexpected rows: %+v", got)
	}
}

func TestDeleteByUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1$`).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	if err := repo.DeleteByUser(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectExec(`^DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+expires_at\s*<=\s*\$1$`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteExpired(context.Background(), now)
	if err != nil || n != 4 {
		t.Fatalf("DeleteExpired = %d, %v", n, err)
	}
}
