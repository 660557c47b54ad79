package repository

import (
	"context"
	"testing"
)

func TestMemoryKVRepo_PutGetDelete(t *testing.T) {
	repo := NewMemoryKVRepo()
	ctx := context.Background()

	if err := repo.Put(ctx, Entry{Key: "a", Value: "1"}, Entry{Key: "b", Value: "2"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if repo.Len() != 2 {
		t.Errorf("Len = %d, want 2", repo.Len())
	}

	v, found, err := repo.Get(ctx, "a")
	if err != nil || !found || v != "1" {
		t.Errorf("Get(a) = %q, %v, %v", v, found, err)
	}

	if err := repo.Delete(ctx, "a", "zzz"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found, _ := repo.Get(ctx, "a"); found {
		t.Error("Delete後にaが残っている")
	}
	if repo.Len() != 1 {
		t.Errorf("Len = %d, want 1", repo.Len())
	}
}
