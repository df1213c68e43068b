package download

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestVideoID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ", false},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://vimeo.com/12345", "", true},
		{"http://www.youtube.com/watch?v=dQw4w9WgXcQ", "", true},
		{"https://www.youtube.com/watch?v=short", "", true},
		{"https://www.youtube.com/feed/trending", "", true},
	}

	for _, tt := range tests {
		got, err := VideoID(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("VideoID(%q) expected error, got %q", tt.url, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("VideoID(%q) = %q, %v; want %q", tt.url, got, err, tt.want)
		}
	}
}

func TestFormatSpec(t *testing.T) {
	tests := []struct {
		quality string
		want    string
	}{
		{"best", "bestvideo[ext=mp4]+bestaudio[ext=mp4]/best[ext=mp4]"},
		{"worst", "worstvideo[ext=mp4]+worstaudio[ext=mp4]/worst[ext=mp4]"},
		{"720p", "bestvideo[ext=mp4][height<=720]+bestaudio[ext=mp4]/best[ext=mp4]"},
		{"480", "bestvideo[ext=mp4][height<=480]+bestaudio[ext=mp4]/best[ext=mp4]"},
	}

	for _, tt := range tests {
		got, err := FormatSpec(tt.quality, "mp4")
		if err != nil || got != tt.want {
			t.Errorf("FormatSpec(%q) = %q, %v; want %q", tt.quality, got, err, tt.want)
		}
	}

	if _, err := FormatSpec("ultra", "mp4"); err == nil {
		t.Error("expected error for unknown quality")
	}
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.mkv", "a.mp4", "notes.txt", "c.avi"} {
		os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644)
	}

	videos, err := List(dir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(videos) != 3 || videos[0].ID != "a" || videos[1].ID != "b" || videos[2].ID != "c" {
		t.Errorf("unexpected videos %+v", videos)
	}

	v, err := Find(dir, "b")
	if err != nil || v.Path != filepath.Join(dir, "b.mkv") {
		t.Errorf("Find(b) = %+v, %v", v, err)
	}
	if _, err := Find(dir, "zzz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	missing, err := List(filepath.Join(dir, "missing"))
	if err != nil || len(missing) != 0 {
		t.Errorf("missing dir should list nothing, got %v, %v", missing, err)
	}
}

func TestDownloadWithFakeBinary(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "yt-dlp")
	// the output path follows -o
	script := "#!/bin/sh\nwhile [ \"$1\" != \"-o\" ]; do shift; done\necho downloading\necho video > \"$2\"\n"
	if err := os.WriteFile(bin, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	downloads := filepath.Join(dir, "yt_downloads")
	y, err := NewYouTube(zerolog.Nop(), bin, downloads, "mp4")
	if err != nil {
		t.Fatalf("failed to create downloader: %v", err)
	}

	video, err := y.Download(context.Background(), "https://youtu.be/dQw4w9WgXcQ", "worst")
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if video.ID != "dQw4w9WgXcQ" || video.Path != filepath.Join(downloads, "dQw4w9WgXcQ.mp4") {
		t.Errorf("unexpected video %+v", video)
	}

	// second call reuses the file even if the binary disappears
	os.Remove(bin)
	if _, err := y.Download(context.Background(), "https://youtu.be/dQw4w9WgXcQ", "worst"); err != nil {
		t.Errorf("existing download should be reused: %v", err)
	}
}
