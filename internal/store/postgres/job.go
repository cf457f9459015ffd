package postgres

import (
	"context"
	goerrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	dberr "github.com/hoteldex/hotel-admin/internal/errors"
	"github.com/hoteldex/hotel-admin/internal/model"
)

type JobStore struct {
	storage *Store
}

const jobColumns = `
	id, user_id, kind, format, criteria,
	status, progress, processed_records, total_records,
	file_path, file_size, error_message,
	created_at, started_at, completed_at, expires_at`

func scanJob(row pgx.Row) (*model.ExportJob, error) {
	var j model.ExportJob
	err := row.Scan(
		&j.ID, &j.UserID, &j.Kind, &j.Format, &j.Criteria,
		&j.Status, &j.Progress, &j.ProcessedRecords, &j.TotalRecords,
		&j.FilePath, &j.FileSize, &j.ErrorMessage,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *JobStore) Insert(ctx context.Context, job *model.ExportJob) error {
	db, err := s.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("job.insert", err)
	}

	query := `
		INSERT INTO export_jobs
			(id, user_id, kind, format, criteria, status, total_records, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = db.Exec(ctx, query,
		job.ID, job.UserID, job.Kind, job.Format, job.Criteria,
		job.Status, job.TotalRecords, job.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if goerrors.As(err, &pgErr) && pgErr.Code == "23505" {
			return &dberr.DBUniqueViolationError{
				DBError: *dberr.NewDBError("job.insert", pgErr.Message),
				Column:  pgErr.ConstraintName,
			}
		}
		return dberr.NewDBInternalError("job.insert", err)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*model.ExportJob, error) {
	db, err := s.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("job.get", err)
	}

	job, err := scanJob(db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM export_jobs WHERE id = $1`, id))
	if err != nil {
		if goerrors.Is(err, pgx.ErrNoRows) {
			return nil, dberr.NewDBNotFoundError("job.get", "export job not found")
		}
		return nil, dberr.NewDBInternalError("job.get", err)
	}
	return job, nil
}

func (s *JobStore) GetOwned(ctx context.Context, id string, userID int64) (*model.ExportJob, error) {
	db, err := s.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("job.get_owned", err)
	}

	job, err := scanJob(db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM export_jobs WHERE id = $1 AND user_id = $2`, id, userID))
	if err != nil {
		if goerrors.Is(err, pgx.ErrNoRows) {
			return nil, dberr.NewDBNotFoundError("job.get_owned", "export job not found")
		}
		return nil, dberr.NewDBInternalError("job.get_owned", err)
	}
	return job, nil
}

func (s *JobStore) ListOwned(ctx context.Context, userID int64, limit, offset int) ([]*model.ExportJob, error) {
	db, err := s.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("job.list_owned", err)
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.Query(ctx,
		`SELECT `+jobColumns+`
		 FROM export_jobs
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, dberr.NewDBInternalError("job.list_owned", err)
	}
	defer rows.Close()

	var out []*model.ExportJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, dberr.NewDBInternalError("job.list_owned", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.NewDBInternalError("job.list_owned", err)
	}
	return out, nil
}

// MarkProcessing transitions pending -> processing. The status guard in
// the WHERE clause makes illegal transitions a not-found error instead
// of a silent overwrite.
func (s *JobStore) MarkProcessing(ctx context.Context, id string, totalRecords int64, startedAt time.Time) error {
	db, err := s.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("job.mark_processing", err)
	}

	cmd, err := db.Exec(ctx, `
		UPDATE export_jobs
		SET status = $2, started_at = $3, total_records = $4
		WHERE id = $1 AND status = $5`,
		id, model.JobProcessing, startedAt, totalRecords, model.JobPending)
	if err != nil {
		return dberr.NewDBInternalError("job.mark_processing", err)
	}
	if cmd.RowsAffected() == 0 {
		return dberr.NewDBNotFoundError("job.mark_processing", "job not pending or not found")
	}
	return nil
}

// UpdateProgress advances the progress counters. GREATEST keeps both
// monotonically non-decreasing even if updates arrive out of order.
func (s *JobStore) UpdateProgress(ctx context.Context, id string, processedRecords int64, progress int) error {
	db, err := s.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("job.update_progress", err)
	}

	cmd, err := db.Exec(ctx, `
		UPDATE export_jobs
		SET processed_records = GREATEST(processed_records, $2),
		    progress = GREATEST(progress, $3)
		WHERE id = $1 AND status = $4`,
		id, processedRecords, progress, model.JobProcessing)
	if err != nil {
		return dberr.NewDBInternalError("job.update_progress", err)
	}
	if cmd.RowsAffected() == 0 {
		return dberr.NewDBNotFoundError("job.update_progress", "job not processing or not found")
	}
	return nil
}

func (s *JobStore) MarkCompleted(ctx context.Context, id, filePath string, fileSize int64, completedAt, expiresAt time.Time) error {
	db, err := s.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("job.mark_completed", err)
	}

	cmd, err := db.Exec(ctx, `
		UPDATE export_jobs
		SET status = $2, file_path = $3, file_size = $4,
		    progress = 100, error_message = NULL,
		    completed_at = $5, expires_at = $6
		WHERE id = $1 AND status = $7`,
		id, model.JobCompleted, filePath, fileSize, completedAt, expiresAt, model.JobProcessing)
	if err != nil {
		return dberr.NewDBInternalError("job.mark_completed", err)
	}
	if cmd.RowsAffected() == 0 {
		return dberr.NewDBNotFoundError("job.mark_completed", "job not processing or not found")
	}
	return nil
}

func (s *JobStore) MarkFailed(ctx context.Context, id, errorMessage string, completedAt time.Time) error {
	db, err := s.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("job.mark_failed", err)
	}

	cmd, err := db.Exec(ctx, `
		UPDATE export_jobs
		SET status = $2, error_message = $3,
		    file_path = NULL, file_size = NULL,
		    completed_at = $4
		WHERE id = $1 AND status = ANY($5)`,
		id, model.JobFailed, errorMessage, completedAt,
		[]string{string(model.JobPending), string(model.JobProcessing)})
	if err != nil {
		return dberr.NewDBInternalError("job.mark_failed", err)
	}
	if cmd.RowsAffected() == 0 {
		return dberr.NewDBNotFoundError("job.mark_failed", "job already terminal or not found")
	}
	return nil
}

func (s *JobStore) ListExpired(ctx context.Context, asOf time.Time, limit int) ([]*model.ExportJob, error) {
	db, err := s.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("job.list_expired", err)
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.Query(ctx,
		`SELECT `+jobColumns+`
		 FROM export_jobs
		 WHERE expires_at < $1 AND file_path IS NOT NULL
		 ORDER BY expires_at ASC
		 LIMIT $2`, asOf, limit)
	if err != nil {
		return nil, dberr.NewDBInternalError("job.list_expired", err)
	}
	defer rows.Close()

	var out []*model.ExportJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, dberr.NewDBInternalError("job.list_expired", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.NewDBInternalError("job.list_expired", err)
	}
	return out, nil
}

func (s *JobStore) ClearArtifact(ctx context.Context, id string) error {
	db, err := s.storage.Database()
	if err != nil {
		return dberr.NewDBInternalError("job.clear_artifact", err)
	}

	_, err = db.Exec(ctx,
		`UPDATE export_jobs SET file_path = NULL, file_size = NULL WHERE id = $1`, id)
	if err != nil {
		return dberr.NewDBInternalError("job.clear_artifact", err)
	}
	return nil
}
