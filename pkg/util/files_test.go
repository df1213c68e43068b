package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDirAndFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if !DirExists(dir) || DirExists(file) || DirExists(filepath.Join(dir, "missing")) {
		t.Error("DirExists should report only directories")
	}
	if !FileExists(file) || FileExists(dir) {
		t.Error("FileExists should report only regular files")
	}
}

func TestListFilesAndCleanup(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mp4", "a.MP4", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	names, err := ListFiles(dir, ".mp4")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "a.MP4" || names[1] != "b.mp4" {
		t.Errorf("unexpected listing %v", names)
	}

	CleanupFiles(filepath.Join(dir, "a.MP4"), filepath.Join(dir, "b.mp4"), filepath.Join(dir, "never-existed.mp4"))
	if names, _ := ListFiles(dir, ".mp4"); len(names) != 0 {
		t.Errorf("expected videos removed, still have %v", names)
	}

	if names, err := ListFiles(filepath.Join(dir, "missing")); err != nil || names != nil {
		t.Errorf("missing dir should list nothing, got %v, %v", names, err)
	}
}
