package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/pricelens/backend/internal/domain"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

const (
	listingsTable = "listings"

	// insertBatchSize keeps multi-row inserts under SQLite's bound-parameter limit
	insertBatchSize = 500
)

const schema = `CREATE TABLE IF NOT EXISTS listings (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	title        TEXT NOT NULL DEFAULT '',
	price        TEXT NOT NULL DEFAULT '',
	rating       TEXT NOT NULL DEFAULT '',
	rating_count TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT ''
)`

// SQLiteRepository stores raw catalog rows in an embedded SQLite database.
// Rows keep their scraped text form; normalization happens on read.
type SQLiteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// OpenSQLite opens (creating if needed) the catalog database at path
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return db, nil
}

// NewSQLiteRepository wires a sql.DB opened with OpenSQLite
func NewSQLiteRepository(db *sql.DB, logger *zap.Logger) *SQLiteRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteRepository{db: db, logger: logger}
}

// Snapshot loads every row in insertion order. The version combines the row
// count and the highest row id, which both move on every ingestion.
func (r *SQLiteRepository) Snapshot(ctx context.Context) (*domain.CatalogSnapshot, error) {
	version, err := r.version(ctx)
	if err != nil {
		return nil, err
	}

	query, args, err := squirrel.Select("title", "price", "rating", "rating_count", "source").
		From(listingsTable).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var records []domain.RawRecord
	for rows.Next() {
		var rec domain.RawRecord
		if err := rows.Scan(&rec.Title, &rec.Price, &rec.Rating, &rec.RatingCount, &rec.Source); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: listings table is empty", domain.ErrNoCatalog)
	}

	return &domain.CatalogSnapshot{Records: records, Version: version}, nil
}

func (r *SQLiteRepository) version(ctx context.Context) (string, error) {
	query, args, err := squirrel.Select("COUNT(*)", "COALESCE(MAX(id), 0)").
		From(listingsTable).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build version query: %w", err)
	}

	var count, maxID int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count, &maxID); err != nil {
		return "", fmt.Errorf("query catalog version: %w", err)
	}
	return fmt.Sprintf("%d-%d", count, maxID), nil
}

// Insert appends raw rows in a single transaction and returns how many were written
func (r *SQLiteRepository) Insert(ctx context.Context, records []domain.RawRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for start := 0; start < len(records); start += insertBatchSize {
		end := min(start+insertBatchSize, len(records))

		insert := squirrel.Insert(listingsTable).
			Columns("title", "price", "rating", "rating_count", "source")
		for _, rec := range records[start:end] {
			insert = insert.Values(rec.Title, rec.Price, rec.Rating, rec.RatingCount, rec.Source)
		}

		query, args, err := insert.ToSql()
		if err != nil {
			return 0, fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("insert listings: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit insert: %w", err)
	}

	r.logger.Info("listings inserted", zap.Int("rows", len(records)))
	return len(records), nil
}
