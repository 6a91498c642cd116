package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/m3usync/internal/models"
	"github.com/desertthunder/m3usync/internal/shared"
)

// ResolutionRepository persists [models.Resolution] records.
type ResolutionRepository struct {
	db *sql.DB
}

// NewResolutionRepository creates a new [ResolutionRepository] with the given database connection
func NewResolutionRepository(db *sql.DB) *ResolutionRepository {
	return &ResolutionRepository{db: db}
}

// Record inserts res, assigning its ID and creation time.
func (r *ResolutionRepository) Record(ctx context.Context, res *models.Resolution) error {
	if res.RunID == "" {
		return fmt.Errorf("%w: resolution requires a run id", shared.ErrInvalidInput)
	}

	res.ID = shared.GenerateID()
	res.CreatedAt = now()

	query := `
		INSERT INTO resolutions (id, run_id, playlist, path, title, artist, album, outcome, uri, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		res.ID, res.RunID, res.Playlist, res.Path, res.Title, res.Artist, res.Album,
		string(res.Outcome), nullString(res.URI), nullString(res.Error), res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert resolution: %w", err)
	}
	return nil
}

// ListByRun returns the resolutions of one run in insertion order.
func (r *ResolutionRepository) ListByRun(ctx context.Context, runID string) ([]*models.Resolution, error) {
	return r.list(ctx, `WHERE run_id = ?`, runID)
}

// ListByOutcome returns resolutions of every run with the given outcome in insertion order.
func (r *ResolutionRepository) ListByOutcome(ctx context.Context, outcome models.Outcome) ([]*models.Resolution, error) {
	return r.list(ctx, `WHERE outcome = ?`, string(outcome))
}

// LatestRun returns the id of the most recent run, or "" when nothing was recorded.
func (r *ResolutionRepository) LatestRun(ctx context.Context) (string, error) {
	var runID string
	err := r.db.QueryRowContext(ctx, `SELECT run_id FROM resolutions ORDER BY created_at DESC, rowid DESC LIMIT 1`).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest run: %w", err)
	}
	return runID, nil
}

// DeleteBefore removes resolutions recorded before t.
func (r *ResolutionRepository) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM resolutions WHERE created_at < ?`, stamp(t))
	if err != nil {
		return 0, fmt.Errorf("failed to delete resolutions: %w", err)
	}
	return affected(result)
}

func (r *ResolutionRepository) list(ctx context.Context, where string, args ...any) ([]*models.Resolution, error) {
	query := `
		SELECT id, run_id, playlist, path, title, artist, album, outcome, uri, error, created_at
		FROM resolutions
	` + where + ` ORDER BY rowid ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolutions: %w", err)
	}
	defer rows.Close()

	var out []*models.Resolution
	for rows.Next() {
		var (
			res      models.Resolution
			outcome  string
			uri, msg sql.NullString
		)

		err := rows.Scan(&res.ID, &res.RunID, &res.Playlist, &res.Path, &res.Title, &res.Artist, &res.Album, &outcome, &uri, &msg, &res.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}

		res.Outcome = models.Outcome(outcome)
		res.URI = uri.String
		res.Error = msg.String
		out = append(out, &res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
