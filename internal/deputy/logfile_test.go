package deputy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLineWriterFlushesOnNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deputy.log")

	w, err := openLineBufferedLog(path)
	if err != nil {
		t.Fatalf("openLineBufferedLog: %v", err)
	}

	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "hello\n" {
		t.Fatalf("expected flushed content, got %q", data)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestLineWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deputy.log")

	w1, _ := openLineBufferedLog(path)
	_, _ = w1.Write([]byte("first\n"))
	_ = w1.Close()

	w2, _ := openLineBufferedLog(path)
	_, _ = w2.Write([]byte("second\n"))
	_ = w2.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "first\nsecond\n" {
		t.Fatalf("expected appended content, got %q", data)
	}
}
