package ninjabuild

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDepsLogWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ninja_deps")

	log1, err := OpenDepsLog(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := log1.WriteDeps("out.o", 1, []string{"foo.h", "bar.h"}); err != nil {
		t.Fatal(err)
	}
	if err := log1.WriteDeps("out2.o", 2, []string{"foo.h", "bar2.h"}); err != nil {
		t.Fatal(err)
	}
	if err := log1.Close(); err != nil {
		t.Fatal(err)
	}

	log2, err := OpenDepsLog(path)
	if err != nil {
		t.Fatal(err)
	}
	defer log2.Close()

	rec, ok := log2.Get("out.o")
	if !ok {
		t.Fatal("out.o not found after reopen")
	}
	if rec.Mtime != 1 {
		t.Fatalf("mtime = %d, want 1", rec.Mtime)
	}
	if len(rec.Deps) != 2 || rec.Deps[0] != "foo.h" || rec.Deps[1] != "bar.h" {
		t.Fatalf("deps = %v", rec.Deps)
	}

	rec2, ok := log2.Get("out2.o")
	if !ok {
		t.Fatal("out2.o not found after reopen")
	}
	if rec2.Mtime != 2 || len(rec2.Deps) != 2 || rec2.Deps[1] != "bar2.h" {
		t.Fatalf("out2.o record = %+v", rec2)
	}
}

func TestDepsLogCorruptTailRecompacts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ninja_deps")

	log1, err := OpenDepsLog(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := log1.WriteDeps("out.o", 1, []string{"foo.h"}); err != nil {
		t.Fatal(err)
	}
	if err := log1.Close(); err != nil {
		t.Fatal(err)
	}

	// Append a record claiming an implausible size, simulating a write
	// torn by a crash mid-append; reopening must recover the still-valid
	// prefix by recompacting rather than failing outright.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte{0xff, 0xff, 0xff, 0x7f}); err != nil {
		t.Fatal(err)
	}
	f.Close()

	log2, err := OpenDepsLog(path)
	if err != nil {
		t.Fatal(err)
	}
	defer log2.Close()
	if _, ok := log2.Get("out.o"); !ok {
		t.Fatal("out.o should survive recompaction after a corrupt tail")
	}
}
