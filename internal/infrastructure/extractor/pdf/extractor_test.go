package pdf

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestExtractRejectsNonPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "case.pdf")
	if err := os.WriteFile(path, []byte("not a pdf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewExtractor().Extract(context.Background(), path); err == nil {
		t.Fatalf("expected error for invalid pdf")
	}
}

func TestExtractMissingFile(t *testing.T) {
	if _, err := NewExtractor().Extract(context.Background(), filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
