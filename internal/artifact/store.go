// Package artifact owns the lifecycle of generated export files:
// allocation, finalization, reads and the expiry sweep.
package artifact

import (
	"io"
	"os"
	"path/filepath"

	"github.com/hoteldex/hotel-admin/internal/errors"
	"github.com/hoteldex/hotel-admin/internal/model"
)

// Store keeps artifacts under one private directory, named
// {jobID}.{formatExtension}. Files are not world-readable; downloads go
// through the service, never the filesystem.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.New("unable to create artifact directory", errors.WithCause(err))
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Path(jobID string, format model.Format) string {
	return filepath.Join(s.dir, jobID+"."+format.Extension())
}

// Allocate opens the writable sink for a job's artifact. The caller owns
// the handle and must close it on every exit path.
func (s *Store) Allocate(jobID string, format model.Format) (*os.File, error) {
	f, err := os.OpenFile(s.Path(jobID, format), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, errors.New("unable to allocate artifact file", errors.WithCause(err))
	}
	return f, nil
}

// Finalize resolves the completed artifact's path and size.
func (s *Store) Finalize(jobID string, format model.Format) (string, int64, error) {
	path := s.Path(jobID, format)
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, errors.New("unable to stat artifact file", errors.WithCause(err))
	}
	return path, info.Size(), nil
}

// Open returns the readable artifact stream.
func (s *Store) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("export artifact not found",
				errors.WithID("artifact.open.not_found"))
		}
		return nil, errors.New("unable to open artifact file", errors.WithCause(err))
	}
	return f, nil
}

// Remove deletes a job's artifact. A missing file is not an error: a
// failed export may never have written one.
func (s *Store) Remove(jobID string, format model.Format) error {
	err := os.Remove(s.Path(jobID, format))
	if err != nil && !os.IsNotExist(err) {
		return errors.New("unable to remove artifact file", errors.WithCause(err))
	}
	return nil
}
