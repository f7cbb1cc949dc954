package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go-leaf-inspector/internal/repository"
	"go-leaf-inspector/pkg/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

type pgPredictionRepository struct {
	db *sql.DB
}

func NewPgPredictionRepository(db *sql.DB) repository.PredictionRepository {
	return &pgPredictionRepository{db: db}
}

const selectColumns = `SELECT id, filename, result, model_used, prediction_date, confidence, notes FROM predictions`

func (r *pgPredictionRepository) Create(ctx context.Context, rec *models.PredictionRecord) (*models.PredictionRecord, error) {
	if err := repository.Validate(rec); err != nil {
		return nil, err
	}
	query := `INSERT INTO predictions (filename, result, model_used, prediction_date, confidence, notes)
	           VALUES ($1, $2, $3, $4, $5, $6)
	           RETURNING id`

	out := *rec
	var confidence sql.NullFloat64
	if rec.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *rec.Confidence, Valid: true}
	}
	err := r.db.QueryRowContext(ctx, query,
		rec.Filename, rec.Result, rec.ModelUsed, rec.PredictionDate, confidence, rec.Notes,
	).Scan(&out.ID)
	if err != nil {
		return nil, fmt.Errorf("PredictionRepository.Create: %w", mapError(err))
	}
	return &out, nil
}

func (r *pgPredictionRepository) FindAll(ctx context.Context, filter models.PredictionFilter) ([]*models.PredictionRecord, error) {
	query := selectColumns + `
	           WHERE ($1 = '' OR filename ILIKE $2 ESCAPE '\')
	             AND ($3 = '' OR result = $3)
	           ORDER BY id ASC`

	search := strings.TrimSpace(filter.Search)
	rows, err := r.db.QueryContext(ctx, query, search, "%"+escapeLike(search)+"%", filter.Label)
	if err != nil {
		return nil, fmt.Errorf("PredictionRepository.FindAll: %w", mapError(err))
	}
	defer rows.Close()

	var out []*models.PredictionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("PredictionRepository.FindAll: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("PredictionRepository.FindAll: %w", mapError(err))
	}
	return out, nil
}

func (r *pgPredictionRepository) FindByID(ctx context.Context, id int64) (*models.PredictionRecord, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("PredictionRepository.FindByID: %w", mapError(err))
	}
	return rec, nil
}

func (r *pgPredictionRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM predictions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("PredictionRepository.Delete: %w", mapError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("PredictionRepository.Delete: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *pgPredictionRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrRepositoryUnavailable, err)
	}
	return nil
}

func (r *pgPredictionRepository) Name() string { return "postgresql" }

func (r *pgPredictionRepository) Close() error { return r.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.PredictionRecord, error) {
	rec := &models.PredictionRecord{}
	var confidence sql.NullFloat64
	if err := s.Scan(&rec.ID, &rec.Filename, &rec.Result, &rec.ModelUsed, &rec.PredictionDate, &confidence, &rec.Notes); err != nil {
		return nil, err
	}
	if confidence.Valid {
		c := confidence.Float64
		rec.Confidence = &c
	}
	return rec, nil
}

// escapeLike escapes LIKE wildcards so search terms match literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// mapError translates driver errors from either lib/pq or pgx into
// repository errors.
func mapError(err error) error {
	code := ""
	var pqErr *pq.Error
	var pgErr *pgconn.PgError
	switch {
	case errors.As(err, &pqErr):
		code = pqErr.Code.Name()
	case errors.As(err, &pgErr):
		code = pq.ErrorCode(pgErr.Code).Name()
	}

	switch code {
	case "unique_violation":
		return fmt.Errorf("%w: %v", repository.ErrDuplicateEntry, err)
	case "not_null_violation", "check_violation":
		return fmt.Errorf("%w: %v", repository.ErrInvalidRecord, err)
	case "":
		if errors.Is(err, sql.ErrConnDone) {
			return fmt.Errorf("%w: %v", repository.ErrRepositoryUnavailable, err)
		}
		return err
	default:
		return err
	}
}
