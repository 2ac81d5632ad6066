package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/johncmanuel/isabot/internal/config"
	"github.com/johncmanuel/isabot/internal/domain"
)

// Postgres implements RecordStore on a single records table. The primary
// key index gives ordered prefix scans for free, and INSERT ... ON CONFLICT
// DO NOTHING is the compare-and-set insert.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres connects to PostgreSQL, verifies the connection, and runs
// the schema migration.
func NewPostgres(ctx context.Context, cfg *config.PostgresConfig, logger *slog.Logger) (*Postgres, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Postgres{pool: pool, logger: logger}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Postgres) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS records (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, migration := range migrations {
		if _, err := s.pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	s.logger.Info("database migrations completed")
	return nil
}

// escapeLike escapes LIKE metacharacters so a prefix is matched literally.
func escapeLike(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix)
}

func (s *Postgres) Scan(ctx context.Context, prefix string) ([]KeyValue, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, value FROM records WHERE key LIKE $1 ORDER BY key`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("scanning prefix %q: %w", prefix, err)
	}
	defer rows.Close()

	var results []KeyValue
	for rows.Next() {
		var kv KeyValue
		if err := rows.Scan(&kv.Key, &kv.Value); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		results = append(results, kv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanning prefix %q: %w", prefix, err)
	}
	return results, nil
}

func (s *Postgres) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM records WHERE key = $1`, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting key %q: %w", key, err)
	}
	return value, nil
}

func (s *Postgres) CompareAndSet(ctx context.Context, key string, expectAbsent bool, value []byte) (bool, error) {
	query := `UPDATE records SET value = $2, updated_at = $3 WHERE key = $1`
	if expectAbsent {
		query = `INSERT INTO records (key, value, updated_at) VALUES ($1, $2, $3)
			 ON CONFLICT (key) DO NOTHING`
	}
	result, err := s.pool.Exec(ctx, query, key, value, time.Now())
	if err != nil {
		return false, fmt.Errorf("compare-and-set %q: %w", key, err)
	}
	return result.RowsAffected() == 1, nil
}

func (s *Postgres) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO records (key, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = $3`,
		key, value, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("setting key %q: %w", key, err)
	}
	return nil
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
