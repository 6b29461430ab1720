package services

import (
	"errors"
	"testing"
	"time"

	yt "github.com/kkdai/youtube/v2"
)

func TestValidateURL(t *testing.T) {
	f := NewFetcher(3*time.Hour, 500*1024*1024)

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"standard watch URL", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", false},
		{"short URL", "https://youtu.be/dQw4w9WgXcQ", false},
		{"mobile URL", "https://m.youtube.com/watch?v=dQw4w9WgXcQ", false},
		{"shorts URL", "https://www.youtube.com/shorts/dQw4w9WgXcQ", false},
		{"embed URL", "https://www.youtube.com/embed/dQw4w9WgXcQ", false},
		{"http scheme allowed", "http://youtube.com/watch?v=dQw4w9WgXcQ", false},
		{"empty", "", true},
		{"other domain", "https://vimeo.com/12345678", true},
		{"lookalike domain", "https://youtube.com.evil.example/watch?v=dQw4w9WgXcQ", true},
		{"no video ID", "https://www.youtube.com/feed/subscriptions", true},
		{"short video ID", "https://www.youtube.com/watch?v=short", true},
		{"file scheme", "file:///etc/passwd", true},
		{"javascript scheme", "javascript:alert(1)", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := f.ValidateURL(tc.url)
			if tc.wantErr && err == nil {
				t.Errorf("Expected error for %q", tc.url)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Unexpected error for %q: %v", tc.url, err)
			}
			if tc.wantErr && err != nil && !errors.Is(err, ErrInvalidSource) {
				t.Errorf("Expected ErrInvalidSource for %q, got %v", tc.url, err)
			}
		})
	}
}

func TestBestUnder(t *testing.T) {
	f := NewFetcher(3*time.Hour, 500*1024*1024)

	formats := yt.FormatList{
		{ItagNo: 1, Height: 1080, Bitrate: 4_000_000, ContentLength: 400 * 1024 * 1024},
		{ItagNo: 2, Height: 720, Bitrate: 2_000_000, ContentLength: 200 * 1024 * 1024},
		{ItagNo: 3, Height: 720, Bitrate: 1_500_000, ContentLength: 150 * 1024 * 1024},
		{ItagNo: 4, Height: 480, Bitrate: 1_000_000, ContentLength: 100 * 1024 * 1024},
		{ItagNo: 5, Height: 360, Bitrate: 600_000, ContentLength: 60 * 1024 * 1024},
	}

	best := f.bestUnder(formats, 720, true)
	if best == nil || best.ItagNo != 2 {
		t.Fatalf("Expected itag 2 (720p, highest bitrate), got %+v", best)
	}
}

func TestBestUnder_SizeCeiling(t *testing.T) {
	f := NewFetcher(3*time.Hour, 120*1024*1024)

	formats := yt.FormatList{
		{ItagNo: 1, Height: 720, Bitrate: 2_000_000, ContentLength: 200 * 1024 * 1024},
		{ItagNo: 2, Height: 480, Bitrate: 1_000_000, ContentLength: 100 * 1024 * 1024},
	}

	best := f.bestUnder(formats, 720, true)
	if best == nil || best.ItagNo != 2 {
		t.Fatalf("Expected the 480p format under the size ceiling, got %+v", best)
	}
}

func TestBestUnder_UnreportedSizePasses(t *testing.T) {
	f := NewFetcher(3*time.Hour, 120*1024*1024)

	formats := yt.FormatList{
		{ItagNo: 1, Height: 720, Bitrate: 2_000_000, ContentLength: 0},
	}

	// A missing ContentLength is not a rejection; the post-download size
	// check is the backstop.
	best := f.bestUnder(formats, 720, true)
	if best == nil || best.ItagNo != 1 {
		t.Fatalf("Expected the unreported-size format to be eligible, got %+v", best)
	}
}

func TestBestUnder_NothingFits(t *testing.T) {
	f := NewFetcher(3*time.Hour, 500*1024*1024)

	formats := yt.FormatList{
		{ItagNo: 1, Height: 1080, Bitrate: 4_000_000},
		{ItagNo: 2, Height: 0, Bitrate: 100_000},
	}

	if best := f.bestUnder(formats, 720, true); best != nil {
		t.Errorf("Expected no eligible format, got %+v", best)
	}
}
