package buildstate

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"shanhu.io/misc/errcode"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorePutLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := &Record{
		Target:       "core",
		Fingerprint:  "abc123",
		Sources:      2,
		Optional:     []string{"mkl"},
		ConfiguredAt: time.Unix(1700000000, 0).UTC(),
	}
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Lookup(ctx, "core")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestStorePutReplaces(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, &Record{Target: "core", Fingerprint: "one", Sources: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, &Record{Target: "core", Fingerprint: "two", Sources: 3}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.Lookup(ctx, "core")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Fingerprint != "two" || got.Sources != 3 {
		t.Fatalf("expected replaced record, got %+v", got)
	}
	if len(got.Optional) != 0 {
		t.Fatalf("expected no optional dependencies, got %v", got.Optional)
	}
}

func TestStoreLookupMissing(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Lookup(context.Background(), "missing")
	if !errcode.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, &Record{Target: "core", Fingerprint: "x"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(ctx, "core"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "core"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := s.Lookup(ctx, "core"); !errcode.IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}
