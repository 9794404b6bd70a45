package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/devionx/uidshield/internal/core/domain"
)

type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS records (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	sealed_uids JSONB NOT NULL DEFAULT '[]'::jsonb,
	original_blob_key TEXT NOT NULL DEFAULT '',
	masked_blob_key TEXT NOT NULL DEFAULT '',
	processing_time_ns BIGINT NOT NULL DEFAULT 0,
	locations_found INTEGER NOT NULL DEFAULT 0,
	original_size INTEGER NOT NULL DEFAULT 0,
	masked_size INTEGER NOT NULL DEFAULT 0,
	format TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_status ON records(status);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_records_filename ON records(filename);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *RecordRepository) Create(ctx context.Context, rec *domain.Record) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO records (id, filename, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
`, rec.ID, rec.Filename, string(rec.Status), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

const recordColumns = `id, filename, sealed_uids, original_blob_key, masked_blob_key,
processing_time_ns, locations_found, original_size, masked_size, format,
status, error_message, created_at, updated_at`

func (r *RecordRepository) GetByID(ctx context.Context, id string) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+recordColumns+`
FROM records
WHERE id = $1
`, id)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "get record", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan record: %w", err)
	}
	return rec, nil
}

func (r *RecordRepository) Update(ctx context.Context, rec *domain.Record) error {
	uidsJSON, err := json.Marshal(rec.SealedUIDs)
	if err != nil {
		return fmt.Errorf("marshal sealed uids: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE records
SET sealed_uids = $2, original_blob_key = $3, masked_blob_key = $4,
	processing_time_ns = $5, locations_found = $6, original_size = $7,
	masked_size = $8, format = $9, status = $10, error_message = $11, updated_at = $12
WHERE id = $1
`,
		rec.ID, uidsJSON, rec.OriginalBlobKey, rec.MaskedBlobKey,
		rec.Metadata.ProcessingTime.Nanoseconds(), rec.Metadata.LocationsFound,
		rec.Metadata.OriginalSize, rec.Metadata.MaskedSize, rec.Metadata.Format,
		string(rec.Status), rec.Error, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrRecordNotFound, "update record", fmt.Errorf("id %s", rec.ID))
	}
	return nil
}

func (r *RecordRepository) MarkFailed(ctx context.Context, id, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE records
SET status = $2, error_message = $3, sealed_uids = '[]'::jsonb,
	original_blob_key = '', masked_blob_key = '', updated_at = $4
WHERE id = $1
`, id, string(domain.StatusFailed), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark record failed: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrRecordNotFound, "mark record failed", fmt.Errorf("id %s", id))
	}
	return nil
}

// List pages records newest first with a stable tiebreak; search is a
// case-insensitive substring match on filename only. Identifiers are sealed
// and never part of the predicate.
func (r *RecordRepository) List(ctx context.Context, page, pageSize int, search string) (*domain.RecordPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	pattern := "%" + search + "%"

	var total int
	if err := r.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM records WHERE filename ILIKE $1
`, pattern).Scan(&total); err != nil {
		return nil, fmt.Errorf("count records: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT `+recordColumns+`
FROM records
WHERE filename ILIKE $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`, pattern, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.Record, 0, pageSize)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return &domain.RecordPage{Records: records, Total: total}, nil
}

func (r *RecordRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrRecordNotFound, "delete record", fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *RecordRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var uidsRaw []byte
	var status string
	var processingNS int64

	err := row.Scan(
		&rec.ID, &rec.Filename, &uidsRaw, &rec.OriginalBlobKey, &rec.MaskedBlobKey,
		&processingNS, &rec.Metadata.LocationsFound, &rec.Metadata.OriginalSize,
		&rec.Metadata.MaskedSize, &rec.Metadata.Format,
		&status, &rec.Error, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(uidsRaw, &rec.SealedUIDs); err != nil {
		return nil, fmt.Errorf("unmarshal sealed uids: %w", err)
	}
	rec.Metadata.ProcessingTime = time.Duration(processingNS)
	rec.Status = domain.RecordStatus(status)
	return &rec, nil
}
