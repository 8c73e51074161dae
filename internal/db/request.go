package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	insertRequestSQL = `INSERT INTO public.request (api_name) VALUES (?)`

	aggregateSQL = `SELECT NOW() AS current_time, COUNT(*) AS request_count
FROM public.request
WHERE api_name = ?`
)

// QueryError is returned by RequestStore when a statement fails. Code
// holds the PostgreSQL SQLSTATE when the server reported one.
type QueryError struct {
	Op   string
	Code string
	Err  error
}

func (e *QueryError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %v (code %s)", e.Op, e.Err, e.Code)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func queryError(op string, err error) error {
	qe := &QueryError{Op: op, Err: err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		qe.Code = pgErr.Code
	}
	return qe
}

// RequestStore records and counts requests for a single service identifier.
type RequestStore struct {
	db      *gorm.DB
	apiName string
}

func NewRequestStore(db *gorm.DB, apiName string) *RequestStore {
	return &RequestStore{db: db, apiName: apiName}
}

// APIName is the identifier rows are tagged and counted with.
func (s *RequestStore) APIName() string {
	return s.apiName
}

// Insert appends one row for this service. Each call checks out its own
// connection and returns it before returning.
func (s *RequestStore) Insert(ctx context.Context) error {
	err := s.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		res := conn.Exec(insertRequestSQL, s.apiName)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("expected 1 row inserted, got %d", res.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return queryError("insert request", err)
	}
	return nil
}

// ReadAggregate returns the database clock and the number of rows
// recorded for this service.
func (s *RequestStore) ReadAggregate(ctx context.Context) (Aggregate, error) {
	var agg Aggregate
	err := s.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		res := conn.Raw(aggregateSQL, s.apiName).Scan(&agg)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errors.New("aggregate query returned no rows")
		}
		return nil
	})
	if err != nil {
		return Aggregate{}, queryError("read aggregate", err)
	}
	return agg, nil
}
