package localfs

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestSaveAndOpenNestedKey(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()
	if err := storage.Save(ctx, "manifests/v1.json", strings.NewReader(`{"version":"v1"}`)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := storage.Save(ctx, "manifests/v1.json", strings.NewReader(`{"version":"v1b"}`)); err != nil {
		t.Fatalf("overwrite error = %v", err)
	}

	rc, err := storage.Open(ctx, "manifests/v1.json")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	raw, _ := io.ReadAll(rc)
	if string(raw) != `{"version":"v1b"}` {
		t.Fatalf("unexpected content %s", raw)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := storage.Save(context.Background(), "../outside", strings.NewReader("x")); err == nil {
		t.Fatalf("expected error for escaping key")
	}
	if _, err := storage.Open(context.Background(), "missing"); err == nil {
		t.Fatalf("expected error for missing key")
	}
}
