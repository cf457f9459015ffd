package postgres

import (
	"context"

	dberr "github.com/hoteldex/hotel-admin/internal/errors"
)

type SourceStore struct {
	storage *Store
}

func (s *SourceStore) All(ctx context.Context) ([]string, error) {
	return s.list(ctx, "source.all",
		`SELECT id FROM data_sources ORDER BY id`)
}

func (s *SourceStore) Disabled(ctx context.Context) ([]string, error) {
	return s.list(ctx, "source.disabled",
		`SELECT id FROM data_sources WHERE disabled ORDER BY id`)
}

func (s *SourceStore) Granted(ctx context.Context, userID int64) ([]string, error) {
	db, err := s.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError("source.granted", err)
	}

	rows, err := db.Query(ctx,
		`SELECT source_id FROM user_source_grants WHERE user_id = $1 ORDER BY source_id`, userID)
	if err != nil {
		return nil, dberr.NewDBInternalError("source.granted", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dberr.NewDBInternalError("source.granted", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.NewDBInternalError("source.granted", err)
	}
	return out, nil
}

func (s *SourceStore) list(ctx context.Context, op, query string) ([]string, error) {
	db, err := s.storage.Database()
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}

	rows, err := db.Query(ctx, query)
	if err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, dberr.NewDBInternalError(op, err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.NewDBInternalError(op, err)
	}
	return out, nil
}
