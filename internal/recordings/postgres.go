package recordings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Sink backed by PostgreSQL, for deployments that share
// recording metadata with other services.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and applies migrations.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := &PostgresStore{pool: pool}
	if err := store.applyMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, rec Record) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO recordings (filename, start_time, end_time, duration, filesize)
         VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		rec.Filename, formatTime(rec.StartTime), formatTime(rec.EndTime), rec.DurationSeconds, rec.FilesizeBytes,
	).Scan(&id)
	if err != nil {
		return 0, persistenceError("insert recording", err)
	}
	return id, nil
}

func (s *PostgresStore) ListByDate(ctx context.Context, datePrefix string) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, filename, start_time, end_time, duration, filesize
         FROM recordings WHERE filename LIKE $1 ORDER BY start_time DESC`,
		likePrefix(datePrefix),
	)
	if err != nil {
		return nil, persistenceError("list recordings", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceError("iterate recordings", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, filename, start_time, end_time, duration, filesize FROM recordings WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (s *PostgresStore) applyMigrations(ctx context.Context) error {
	migrations, err := loadMigrations("postgres")
	if err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	for _, m := range migrations {
		var count int
		if err := tx.QueryRow(ctx, "SELECT COUNT(1) FROM schema_migrations WHERE version = $1", m.version).Scan(&count); err != nil {
			return fmt.Errorf("scan migration version: %w", err)
		}
		if count > 0 {
			continue
		}
		if _, err := tx.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.version, err)
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
			return fmt.Errorf("record migration %s: %w", m.version, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	return nil
}
