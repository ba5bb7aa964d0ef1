package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kioku/kioku/internal/models"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestUpsertAssignsID(t *testing.T) {
	r := openTestRegistry(t)
	doc := &models.IntakeDocument{
		Filename: "report.pdf",
		Path:     "/uploads/report.pdf",
		Size:     1024,
		ModTime:  time.Now(),
	}
	if err := r.Upsert(context.Background(), doc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if doc.ID == "" {
		t.Error("Upsert did not assign an ID")
	}
}

func TestUpsertSamePathKeepsID(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	doc := &models.IntakeDocument{Filename: "a.txt", Path: "/uploads/a.txt", Size: 10, ModTime: time.Now()}
	if err := r.Upsert(ctx, doc); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	firstID := doc.ID

	again := &models.IntakeDocument{Filename: "a.txt", Path: "/uploads/a.txt", Size: 20, ModTime: time.Now()}
	if err := r.Upsert(ctx, again); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if again.ID != firstID {
		t.Errorf("re-upsert changed ID: %s vs %s", again.ID, firstID)
	}

	got, err := r.Get(ctx, "/uploads/a.txt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Size != 20 {
		t.Errorf("size not updated: got %d, want 20", got.Size)
	}

	count, err := r.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 1 {
		t.Errorf("Count = %d, want 1", count)
	}
}

func TestListOrderedByFilename(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"charlie.txt", "alpha.txt", "bravo.txt"} {
		doc := &models.IntakeDocument{Filename: name, Path: "/uploads/" + name, ModTime: time.Now()}
		if err := r.Upsert(ctx, doc); err != nil {
			t.Fatalf("Upsert %s: %v", name, err)
		}
	}

	docs, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("List returned %d documents, want 3", len(docs))
	}
	want := []string{"alpha.txt", "bravo.txt", "charlie.txt"}
	for i, doc := range docs {
		if doc.Filename != want[i] {
			t.Errorf("docs[%d].Filename = %s, want %s", i, doc.Filename, want[i])
		}
	}
}

func TestDeleteAndClear(t *testing.T) {
	r := openTestRegistry(t)
	ctx := context.Background()

	for _, name := range []string{"a.txt", "b.txt"} {
		doc := &models.IntakeDocument{Filename: name, Path: "/uploads/" + name, ModTime: time.Now()}
		if err := r.Upsert(ctx, doc); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	if err := r.Delete(ctx, "/uploads/a.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := r.Delete(ctx, "/uploads/never-existed.txt"); err != nil {
		t.Errorf("Delete of unknown path should not error: %v", err)
	}
	count, _ := r.Count(ctx)
	if count != 1 {
		t.Errorf("Count after delete = %d, want 1", count)
	}

	if err := r.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	count, _ = r.Count(ctx)
	if count != 0 {
		t.Errorf("Count after clear = %d, want 0", count)
	}
}

func TestGetMissing(t *testing.T) {
	r := openTestRegistry(t)
	if _, err := r.Get(context.Background(), "/uploads/missing.txt"); err == nil {
		t.Error("Get of unregistered path should error")
	}
}
