package repository

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/salarios-minimos/internal/domain/salary"
	"github.com/FACorreiaa/salarios-minimos/pkg/money"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the goose migrations for the edition mirror.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// DB is the subset of *pgxpool.Pool used by the mirror.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// EditionSummary is one mirrored edition as listed from the database.
type EditionSummary struct {
	RunID       uuid.UUID `json:"run_id"`
	Label       string    `json:"label"`
	SourceURL   string    `json:"source_url"`
	SHA256      string    `json:"sha256"`
	ExtractedAt time.Time `json:"extracted_at"`
	RecordCount int       `json:"record_count"`
}

// PostgresMirror stores every extracted edition with its records.
type PostgresMirror struct {
	db     DB
	logger *slog.Logger
}

// NewPostgresMirror creates a mirror over db.
func NewPostgresMirror(db DB, logger *slog.Logger) *PostgresMirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresMirror{db: db, logger: logger}
}

// SaveEdition writes the edition row and bulk-copies its records in one
// transaction. Salaries are stored in minor units (céntimos).
func (m *PostgresMirror) SaveEdition(ctx context.Context, edition salary.Edition, records []salary.NormalizedRecord) error {
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var retrievedAt *time.Time
	if !edition.RetrievedAt.IsZero() {
		retrievedAt = &edition.RetrievedAt
	}

	insertQuery := `
		INSERT INTO salary_editions (run_id, label, source_url, sha256, retrieved_at, extracted_at, record_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = tx.Exec(ctx, insertQuery,
		edition.RunID,
		edition.Label,
		edition.SourceURL,
		edition.SHA256,
		retrievedAt,
		edition.ExtractedAt,
		len(records),
	)
	if err != nil {
		return fmt.Errorf("failed to insert edition: %w", err)
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"salary_records"},
		[]string{"run_id", "position", "puesto", "codigo", "salario_minor", "currency_code"},
		pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
			r := records[i]
			amount := money.Colones(r.Salary)
			return []any{edition.RunID, i, r.Title, r.Code, amount.Amount(), amount.Currency()}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to copy records: %w", err)
	}
	if copied != int64(len(records)) {
		return fmt.Errorf("copied %d of %d records", copied, len(records))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit edition: %w", err)
	}

	m.logger.Info("edition mirrored",
		slog.String("run_id", edition.RunID.String()),
		slog.String("label", edition.Label),
		slog.Int("records", len(records)),
	)
	return nil
}

// ListEditions returns the most recent mirrored editions, newest first.
func (m *PostgresMirror) ListEditions(ctx context.Context, limit int) ([]EditionSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT run_id, label, source_url, sha256, extracted_at, record_count
		FROM salary_editions
		ORDER BY extracted_at DESC
		LIMIT $1`

	rows, err := m.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list editions: %w", err)
	}
	defer rows.Close()

	editions := make([]EditionSummary, 0)
	for rows.Next() {
		var e EditionSummary
		if err := rows.Scan(&e.RunID, &e.Label, &e.SourceURL, &e.SHA256, &e.ExtractedAt, &e.RecordCount); err != nil {
			return nil, fmt.Errorf("failed to scan edition: %w", err)
		}
		editions = append(editions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate editions: %w", err)
	}
	return editions, nil
}
