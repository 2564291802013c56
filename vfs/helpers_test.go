package vfs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

type fakeHandle struct {
	flushErr error
	flushes  int
	closes   int
}

func (h *fakeHandle) Read([]byte) (int, error)       { return 0, io.EOF }
func (h *fakeHandle) Write(p []byte) (int, error)    { return len(p), nil }
func (h *fakeHandle) Seek(int64, int) (int64, error) { return 0, nil }
func (h *fakeHandle) Flush() error                   { h.flushes++; return h.flushErr }
func (h *fakeHandle) Close() error                   { h.closes++; return nil }

type flushWriter struct {
	err     error
	flushes int
}

func (w *flushWriter) Write(p []byte) (int, error) { return len(p), nil }
func (w *flushWriter) Flush() error                { w.flushes++; return w.err }

func newTestFS(t *testing.T, preopens []string, opts ...Option) *Filesystem {
	t.Helper()

	fs, err := New(preopens, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { fs.Shutdown() })
	return fs
}

// sandbox creates a host directory tree:
//
//	a.txt        "hello"
//	sub/b.txt    "nested"
func sandbox(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("nested"), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func wantErrno(t *testing.T, err error, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("got error %v, want %v", err, want)
	}
}
