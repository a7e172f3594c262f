// Package blobstore keeps uploaded spreadsheets on disk with a sqlite
// index, so uploads survive restarts and an hourly janitor can expire
// them.
package blobstore

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned for ids with no stored upload.
var ErrNotFound = errors.New("upload not found")

// Upload is one stored file's metadata.
type Upload struct {
	ID        string
	Name      string
	Size      int64
	CreatedAt time.Time
}

// Store is safe for concurrent use; sqlite serializes writers.
type Store struct {
	db  *sql.DB
	dir string
}

// Open prepares the store under dataDir: files in dataDir/uploads,
// index in dataDir/shiftcal.db.
func Open(dataDir string) (*Store, error) {
	dir := filepath.Join(dataDir, "uploads")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", filepath.Join(dataDir, "shiftcal.db"))
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		size INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, dir: dir}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Put stores the reader's content under a fresh id. Content larger than
// maxBytes is rejected and nothing is kept.
func (s *Store) Put(name string, r io.Reader, maxBytes int64) (*Upload, error) {
	if maxBytes <= 0 {
		maxBytes = math.MaxInt64 - 1
	}

	id := uuid.NewString()
	path := filepath.Join(s.dir, id)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}

	n, err := io.Copy(f, io.LimitReader(r, maxBytes+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > maxBytes {
		err = fmt.Errorf("upload exceeds %d byte limit", maxBytes)
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	up := &Upload{ID: id, Name: name, Size: n, CreatedAt: time.Now().UTC()}
	if _, err := s.db.Exec(
		`INSERT INTO uploads (id, name, size, created_at) VALUES (?, ?, ?, ?)`,
		up.ID, up.Name, up.Size, up.CreatedAt,
	); err != nil {
		os.Remove(path)
		return nil, err
	}
	return up, nil
}

// Stat returns the metadata for id.
func (s *Store) Stat(id string) (*Upload, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	var up Upload
	err := s.db.QueryRow(
		`SELECT id, name, size, created_at FROM uploads WHERE id = ?`, id,
	).Scan(&up.ID, &up.Name, &up.Size, &up.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &up, nil
}

// Open returns the stored content and metadata for id. The caller
// closes the reader.
func (s *Store) Open(id string) (io.ReadCloser, *Upload, error) {
	up, err := s.Stat(id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, up.ID))
	if errors.Is(err, fs.ErrNotExist) {
		// Index row without a file; treat like a missing upload.
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return f, up, nil
}

// Delete removes the upload's file and index row. A missing file with a
// live index row still succeeds; a missing index row is ErrNotFound.
func (s *Store) Delete(id string) error {
	up, err := s.Stat(id)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.dir, up.ID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	_, err = s.db.Exec(`DELETE FROM uploads WHERE id = ?`, up.ID)
	return err
}

// Sweep removes every upload created before cutoff and reports how many
// went away. It keeps going past individual failures and returns them
// joined, so the janitor can log and move on.
func (s *Store) Sweep(cutoff time.Time) (int, error) {
	rows, err := s.db.Query(`SELECT id FROM uploads WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	removed := 0
	var errs []error
	for _, id := range ids {
		if err := s.Delete(id); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("sweep %s: %w", id, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
