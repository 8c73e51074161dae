package db

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockStore(t *testing.T) (*RequestStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open gorm: %v", err)
	}

	return NewRequestStore(gdb, "node"), mock, sqlDB
}

// assertReleased fails if a query left its connection checked out.
func assertReleased(t *testing.T, sqlDB *sql.DB) {
	t.Helper()
	if inUse := sqlDB.Stats().InUse; inUse != 0 {
		t.Errorf("expected connection released, %d still in use", inUse)
	}
}

func TestInsert(t *testing.T) {
	store, mock, sqlDB := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO public.request (api_name) VALUES ($1)")).
		WithArgs("node").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Insert(context.Background()); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
	assertReleased(t, sqlDB)
}

func TestInsert_Error(t *testing.T) {
	store, mock, sqlDB := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO public.request")).
		WithArgs("node").
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "public.request" does not exist`})

	err := store.Insert(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}

	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected *QueryError, got %T", err)
	}
	if qe.Op != "insert request" {
		t.Errorf("expected op %q, got %q", "insert request", qe.Op)
	}
	if qe.Code != "42P01" {
		t.Errorf("expected code 42P01, got %q", qe.Code)
	}
	assertReleased(t, sqlDB)
}

func TestInsert_NoRowAffected(t *testing.T) {
	store, mock, sqlDB := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO public.request")).
		WithArgs("node").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Insert(context.Background()); err == nil {
		t.Fatal("expected error when no row is inserted")
	}
	assertReleased(t, sqlDB)
}

func TestReadAggregate(t *testing.T) {
	store, mock, sqlDB := newMockStore(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT NOW() AS current_time, COUNT(*) AS request_count")).
		WithArgs("node").
		WillReturnRows(sqlmock.NewRows([]string{"current_time", "request_count"}).AddRow(now, int64(2)))

	agg, err := store.ReadAggregate(context.Background())
	if err != nil {
		t.Fatalf("ReadAggregate failed: %v", err)
	}
	if !agg.CurrentTime.Equal(now) {
		t.Errorf("expected time %v, got %v", now, agg.CurrentTime)
	}
	if agg.RequestCount != 2 {
		t.Errorf("expected count 2, got %d", agg.RequestCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
	assertReleased(t, sqlDB)
}

func TestReadAggregate_Error(t *testing.T) {
	store, mock, sqlDB := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM public.request")).
		WithArgs("node").
		WillReturnError(errors.New("connection reset"))

	agg, err := store.ReadAggregate(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if agg != (Aggregate{}) {
		t.Errorf("expected zero aggregate on error, got %+v", agg)
	}

	var qe *QueryError
	if !errors.As(err, &qe) {
		t.Fatalf("expected *QueryError, got %T", err)
	}
	if qe.Code != "" {
		t.Errorf("expected no code for non-postgres error, got %q", qe.Code)
	}
	if qe.Error() != "read aggregate: connection reset" {
		t.Errorf("unexpected message %q", qe.Error())
	}
	assertReleased(t, sqlDB)
}

func TestReadAggregate_NoRows(t *testing.T) {
	store, mock, sqlDB := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM public.request")).
		WithArgs("node").
		WillReturnRows(sqlmock.NewRows([]string{"current_time", "request_count"}))

	if _, err := store.ReadAggregate(context.Background()); err == nil {
		t.Fatal("expected error for empty result")
	}
	assertReleased(t, sqlDB)
}

func TestQueryError_Message(t *testing.T) {
	err := queryError("insert request", &pgconn.PgError{Severity: "ERROR", Code: "53300", Message: "too many connections"})
	want := "insert request: ERROR: too many connections (SQLSTATE 53300) (code 53300)"
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestRequestRecord_TableName(t *testing.T) {
	if (RequestRecord{}).TableName() != "public.request" {
		t.Errorf("unexpected table name %q", (RequestRecord{}).TableName())
	}
}
