package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Dan9191/winprob-gateway/internal/models"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*Repository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewRepository(db), mock, db
}

const (
	insertUserQ   = `(?s)INSERT\s+INTO\s+users\s*\(username,\s*password_hash\)\s*VALUES\s*\(\$1,\s*\$2\)\s*RETURNING\s+id,\s*created_at`
	selectUserQ   = `(?s)SELECT\s+id,\s*username,\s*password_hash,\s*created_at\s+FROM\s+users\s+WHERE\s+username\s*=\s*\$1`
	insertLogQ    = `(?s)INSERT\s+INTO\s+prediction_logs\s*\(payload,\s*created_at\)\s*VALUES\s*\(\$1::jsonb,\s*\$2\)\s*RETURNING\s+id`
	countLogsQ    = `(?s)SELECT\s+COUNT\(\*\)\s+FROM\s+prediction_logs\s+WHERE\s+created_at\s*>=\s*\$1\s+AND\s+created_at\s*<\s*\$2`
)

func TestCreateUser_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(insertUserQ).
		WithArgs("alice", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))

	u := &models.User{Username: "alice", PasswordHash: "hash"}
	require.NoError(t, repo.CreateUser(context.Background(), u))
	assert.Equal(t, int64(7), u.ID)
	assert.Equal(t, now, u.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_UniqueViolation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertUserQ).
		WithArgs("alice", "hash").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	err := repo.CreateUser(context.Background(), &models.User{Username: "alice", PasswordHash: "hash"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
}

func TestCreateUser_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertUserQ).
		WithArgs("alice", "hash").
		WillReturnError(errors.New("db down"))

	err := repo.CreateUser(context.Background(), &models.User{Username: "alice", PasswordHash: "hash"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicate))
	assert.Contains(t, err.Error(), "db down")
}

func TestFindUserByUsername_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(selectUserQ).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "created_at"}).
			AddRow(int64(1), "alice", "hash", now))

	u, err := repo.FindUserByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "hash", u.PasswordHash)
}

func TestFindUserByUsername_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectUserQ).
		WithArgs("bob").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindUserByUsername(context.Background(), "bob")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindUserByUsername_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectUserQ).
		WithArgs("bob").
		WillReturnError(errors.New("conn reset"))

	_, err := repo.FindUserByUsername(context.Background(), "bob")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestCreatePredictionLog_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	ts := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	payload := json.RawMessage(`{"over":5,"runs":40}`)
	mock.ExpectQuery(insertLogQ).
		WithArgs(`{"over":5,"runs":40}`, ts).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))

	entry := &models.PredictionLog{Payload: payload, CreatedAt: ts}
	require.NoError(t, repo.CreatePredictionLog(context.Background(), entry))
	assert.Equal(t, int64(11), entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePredictionLog_InvalidPayload(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	err := repo.CreatePredictionLog(context.Background(), &models.PredictionLog{Payload: json.RawMessage(`{`)})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePredictionLog_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertLogQ).
		WithArgs(`{}`, sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	err := repo.CreatePredictionLog(context.Background(), &models.PredictionLog{Payload: json.RawMessage(`{}`), CreatedAt: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create prediction log")
}

func TestCreatePredictionLog_NulEscapeRejectedByJSONB(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	payload := json.RawMessage(`{"team":"a\u0000b"}`)
	require.True(t, json.Valid(payload))
	mock.ExpectQuery(insertLogQ).
		WithArgs(string(payload), sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "22P05", Message: "unsupported Unicode escape sequence"})

	entry := &models.PredictionLog{Payload: payload, CreatedAt: time.Now()}
	err := repo.CreatePredictionLog(context.Background(), entry)
	require.Error(t, err)
	var pqErr *pq.Error
	require.ErrorAs(t, err, &pqErr)
	assert.Equal(t, pq.ErrorCode("22P05"), pqErr.Code)
	assert.Zero(t, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountPredictionLogsBetween(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	to := time.Date(2025, 4, 2, 6, 0, 0, 0, time.UTC)
	from := to.Add(-24 * time.Hour)
	mock.ExpectQuery(countLogsQ).
		WithArgs(from, to).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := repo.CountPredictionLogsBetween(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountPredictionLogsBetween_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(countLogsQ).WillReturnError(errors.New("db down"))

	_, err := repo.CountPredictionLogsBetween(context.Background(), time.Now().Add(-time.Hour), time.Now())
	assert.ErrorContains(t, err, "failed to count prediction logs")
}
