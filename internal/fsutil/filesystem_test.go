package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

var (
	_ FileSystem = OSFileSystem{}
	_ FileSystem = (*MemoryFileSystem)(nil)
)

func TestOSFileSystem_CreateExclusive(t *testing.T) {
	osfs := OSFileSystem{}
	path := filepath.Join(t.TempDir(), "rows.csv")

	w, err := osfs.Create(path, true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := w.Write([]byte("first\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := osfs.Create(path, true); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("exclusive Create on existing file: got %v, want fs.ErrExist", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "first\n" {
		t.Errorf("existing file was modified: %q", data)
	}
}

func TestOSFileSystem_CreateTruncates(t *testing.T) {
	osfs := OSFileSystem{}
	path := filepath.Join(t.TempDir(), "rows.csv")
	if err := os.WriteFile(path, []byte("stale contents\n"), 0644); err != nil {
		t.Fatal(err)
	}

	w, err := osfs.Create(path, false)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w.Write([]byte("new\n"))
	w.Close()

	data, _ := os.ReadFile(path)
	if string(data) != "new\n" {
		t.Errorf("got %q, want %q", data, "new\n")
	}
}

func TestMemoryFileSystem_WritesVisibleBeforeClose(t *testing.T) {
	mfs := NewMemoryFileSystem()

	w, err := mfs.Create("/out/rows.csv", true)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	w.Write([]byte("a,b\n"))

	data, err := mfs.ReadFile("/out/rows.csv")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "a,b\n" {
		t.Errorf("got %q before close, want %q", data, "a,b\n")
	}

	w.Write([]byte("c,d\n"))
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	data, _ = mfs.ReadFile("/out/rows.csv")
	if string(data) != "a,b\nc,d\n" {
		t.Errorf("got %q, want both rows", data)
	}

	if _, err := w.Write([]byte("late\n")); !errors.Is(err, ErrClosed) {
		t.Errorf("write after close: got %v, want ErrClosed", err)
	}
	if err := w.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second close: got %v, want ErrClosed", err)
	}
}

func TestMemoryFileSystem_CreateExclusive(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.WriteFile("/rows.csv", []byte("keep"))

	if _, err := mfs.Create("/rows.csv", true); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("got %v, want fs.ErrExist", err)
	}

	w, err := mfs.Create("/rows.csv", false)
	if err != nil {
		t.Fatalf("truncating Create failed: %v", err)
	}
	defer w.Close()
	data, _ := mfs.ReadFile("/rows.csv")
	if len(data) != 0 {
		t.Errorf("expected truncated file, got %q", data)
	}
}

func TestMemoryFileSystem_InjectedErrors(t *testing.T) {
	mfs := NewMemoryFileSystem()
	mfs.CreateErr = fs.ErrPermission

	if _, err := mfs.Create("/denied.csv", true); !errors.Is(err, fs.ErrPermission) {
		t.Fatalf("got %v, want fs.ErrPermission", err)
	}

	mfs.CreateErr = nil
	mfs.CloseErr = errors.New("disk full")
	w, err := mfs.Create("/full.csv", true)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err == nil || err.Error() != "disk full" {
		t.Errorf("Close: got %v, want disk full", err)
	}
}

func TestMemoryFileSystem_Exists(t *testing.T) {
	mfs := NewMemoryFileSystem()
	if mfs.Exists("/a/file") {
		t.Fatal("empty filesystem reports a file")
	}

	mfs.WriteFile("/a/../a/file", []byte("x"))
	if !mfs.Exists("/a/file") {
		t.Error("expected cleaned path to exist")
	}
	if _, err := mfs.ReadFile("/a/other"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("ReadFile of missing file: got %v, want fs.ErrNotExist", err)
	}
}
