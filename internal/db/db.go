package db

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"apinode/internal/config"
)

// Pool owns the process-wide connection pool. Construct it once at
// startup and hand DB() to the stores that need it.
type Pool struct {
	pg  *pgxpool.Pool
	sql *sql.DB
	db  *gorm.DB
}

// Connect builds a pgx pool from DATABASE_URL (PostgreSQL URL), layers
// database/sql and GORM on top of it, and verifies the database answers.
func Connect(ctx context.Context, cfg *config.Config) (*Pool, error) {
	pcfg, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pg, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pg)
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		PrepareStmt: true,
		Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		_ = sqlDB.Close()
		pg.Close()
		return nil, err
	}

	p := &Pool{pg: pg, sql: sqlDB, db: gdb}
	if err := pg.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return p, nil
}

func poolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is required (PostgreSQL URL)")
	}
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil, errors.New("DATABASE_URL must be a postgres:// or postgresql:// URL")
	}

	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}
	if cfg.DatabaseMaxConns > 0 {
		pcfg.MaxConns = cfg.DatabaseMaxConns
	}

	// Encrypt but skip chain verification; the backend presents a
	// self-signed certificate. No plaintext fallback.
	if cfg.DatabaseInsecureTLS {
		pcfg.ConnConfig.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
		pcfg.ConnConfig.Fallbacks = nil
	}
	return pcfg, nil
}

// DB returns the GORM handle backed by the pool.
func (p *Pool) DB() *gorm.DB {
	return p.db
}

// Close releases every connection. Safe to call once at shutdown.
func (p *Pool) Close() {
	_ = p.sql.Close()
	p.pg.Close()
}

// RegisterMetrics exposes pool occupancy as gauges.
func (p *Pool) RegisterMetrics(reg prometheus.Registerer) error {
	gauge := func(name, help string, fn func(*pgxpool.Stat) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "apinode",
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return fn(p.pg.Stat()) })
	}

	collectors := []prometheus.Collector{
		gauge("max_conns", "Maximum size of the connection pool.", func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
		gauge("total_conns", "Connections currently open.", func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
		gauge("acquired_conns", "Connections currently checked out.", func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
		gauge("idle_conns", "Connections currently idle.", func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Migrate creates the request-tracking table when it does not exist.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&RequestRecord{})
}
