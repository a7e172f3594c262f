package blobstore

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutOpenDelete(t *testing.T) {
	s := openStore(t)

	up, err := s.Put("roster.xlsx", strings.NewReader("spreadsheet bytes"), 1<<20)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if up.ID == "" || up.Size != int64(len("spreadsheet bytes")) {
		t.Fatalf("upload = %+v", up)
	}

	rc, meta, err := s.Open(up.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	body, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(body) != "spreadsheet bytes" {
		t.Errorf("body = %q", body)
	}
	if meta.Name != "roster.xlsx" {
		t.Errorf("Name = %q", meta.Name)
	}

	if err := s.Delete(up.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, _, err := s.Open(up.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open after delete: err = %v, want ErrNotFound", err)
	}
	if err := s.Delete(up.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete: err = %v, want ErrNotFound", err)
	}
}

func TestPutEnforcesSizeLimit(t *testing.T) {
	s := openStore(t)

	if _, err := s.Put("big.xlsx", strings.NewReader(strings.Repeat("x", 100)), 10); err == nil {
		t.Fatal("Put accepted an oversized upload")
	}
	// Nothing may be left behind.
	if n, err := s.Sweep(time.Now().Add(time.Hour)); err != nil || n != 0 {
		t.Errorf("Sweep after failed Put: n=%d err=%v", n, err)
	}
}

func TestStatRejectsBogusIDs(t *testing.T) {
	s := openStore(t)

	for _, id := range []string{"", "nope", "../../etc/passwd", "00000000-0000-0000-0000-000000000000"} {
		if _, err := s.Stat(id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Stat(%q) err = %v, want ErrNotFound", id, err)
		}
	}
}

func TestDeleteSurvivesMissingFile(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	up, err := s.Put("roster.xlsx", strings.NewReader("bytes"), 1<<20)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "uploads", up.ID)); err != nil {
		t.Fatalf("remove file: %v", err)
	}

	if err := s.Delete(up.ID); err != nil {
		t.Errorf("Delete with missing file: %v", err)
	}
}

func TestSweep(t *testing.T) {
	s := openStore(t)

	old, err := s.Put("old.xlsx", strings.NewReader("old"), 1<<20)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	fresh, err := s.Put("fresh.xlsx", strings.NewReader("fresh"), 1<<20)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	// Backdate the first upload past the retention window.
	if _, err := s.db.Exec(
		`UPDATE uploads SET created_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-48*time.Hour), old.ID,
	); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	n, err := s.Sweep(time.Now().UTC().Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Errorf("Sweep removed %d, want 1", n)
	}
	if _, err := s.Stat(old.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("old upload still present: %v", err)
	}
	if _, err := s.Stat(fresh.ID); err != nil {
		t.Errorf("fresh upload swept away: %v", err)
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	up, err := s.Put("roster.xlsx", strings.NewReader("bytes"), 1<<20)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	meta, err := s2.Stat(up.ID)
	if err != nil {
		t.Fatalf("Stat after reopen: %v", err)
	}
	if meta.Name != "roster.xlsx" {
		t.Errorf("Name = %q", meta.Name)
	}
}
