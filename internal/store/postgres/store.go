package postgres

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	conf "github.com/hoteldex/hotel-admin/config"
	"github.com/hoteldex/hotel-admin/internal/errors"
	"github.com/hoteldex/hotel-admin/internal/store"
)

// Store is the struct implementing the Store interface.
type Store struct {
	jobStore     store.JobStore
	catalogStore store.CatalogStore
	sourceStore  store.SourceStore
	config       *conf.DatabaseConfig
	conn         *pgxpool.Pool
}

// New creates a new Store instance.
func New(config *conf.DatabaseConfig) *Store {
	return &Store{config: config}
}

func (s *Store) Job() store.JobStore {
	if s.jobStore == nil {
		s.jobStore = &JobStore{storage: s}
	}
	return s.jobStore
}

func (s *Store) Catalog() store.CatalogStore {
	if s.catalogStore == nil {
		s.catalogStore = &CatalogStore{storage: s}
	}
	return s.catalogStore
}

func (s *Store) Source() store.SourceStore {
	if s.sourceStore == nil {
		s.sourceStore = &SourceStore{storage: s}
	}
	return s.sourceStore
}

// Database returns the database connection or a custom error if it is not opened.
func (s *Store) Database() (*pgxpool.Pool, error) {
	if s.conn == nil {
		return nil, errors.New("database connection is not opened")
	}
	return s.conn, nil
}

// Open establishes a connection to the database and applies the export
// schema.
func (s *Store) Open() error {
	config, err := pgxpool.ParseConfig(s.config.URL)
	if err != nil {
		return err
	}

	conn, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return err
	}
	s.conn = conn

	if _, err := conn.Exec(context.Background(), exportSchema); err != nil {
		conn.Close()
		s.conn = nil
		return errors.NewDBInternalError("store.open.apply_schema", err)
	}

	slog.Debug("hotel_admin.store.connection_opened", slog.String("message", "postgres: connection opened"))
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.conn != nil {
		s.conn.Close()
		slog.Debug("hotel_admin.store.connection_closed", slog.String("message", "postgres: connection closed"))
		s.conn = nil
	}
	return nil
}
