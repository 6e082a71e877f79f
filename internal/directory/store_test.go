package directory

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/slaffer-au/searchbot/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "directory.db"), testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_LoadWithoutSnapshot(t *testing.T) {
	s := openTestStore(t)
	_, _, err := s.Load(context.Background())
	if !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("err = %v, want ErrNoSnapshot", err)
	}
}

func TestStore_SaveLoadRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	users := []domain.DirectoryEntry{
		{ID: 7, Name: "Alice", Email: "alice@example.com"},
		{ID: 8, Name: "Bob"},
	}
	orgs := []domain.DirectoryEntry{{ID: 55, Name: "Acme"}}

	if err := s.Save(ctx, users, orgs); err != nil {
		t.Fatalf("save: %v", err)
	}

	gotUsers, gotOrgs, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(gotUsers) != 2 || len(gotOrgs) != 1 {
		t.Fatalf("got %d users, %d orgs", len(gotUsers), len(gotOrgs))
	}
	if gotUsers[0] != users[0] || gotUsers[1] != users[1] {
		t.Fatalf("users roundtrip mismatch: %+v", gotUsers)
	}
	if gotOrgs[0].Name != "Acme" {
		t.Fatalf("orgs roundtrip mismatch: %+v", gotOrgs)
	}
}

func TestStore_SaveReplacesPreviousSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, []domain.DirectoryEntry{{ID: 1, Name: "Old"}}, nil); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := s.Save(ctx, []domain.DirectoryEntry{{ID: 2, Name: "New"}}, nil); err != nil {
		t.Fatalf("second save: %v", err)
	}

	users, _, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(users) != 1 || users[0].ID != 2 {
		t.Fatalf("snapshot not replaced wholesale: %+v", users)
	}
}

func TestStore_VersionMismatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, []domain.DirectoryEntry{{ID: 1, Name: "X"}}, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE snapshot_meta SET value = '999' WHERE key = 'schema_version'`); err != nil {
		t.Fatalf("tamper version: %v", err)
	}

	_, _, err := s.Load(ctx)
	if !errors.Is(err, ErrSnapshotVersion) {
		t.Fatalf("err = %v, want ErrSnapshotVersion", err)
	}
}
