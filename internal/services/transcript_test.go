package services

import (
	"strings"
	"testing"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://example.com/page", ""},
		{"", ""},
	}

	for _, tc := range tests {
		if got := ExtractVideoID(tc.url); got != tc.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", tc.url, got, tc.want)
		}
	}
}

func TestExtractCaptionURL_UnescapesJSONSequences(t *testing.T) {
	page := `{"captionTracks":[{"baseUrl":"https:\/\/www.youtube.com\/api\/timedtext?v=dQw4w9WgXcQ\u0026lang=en\u0026fmt=srv3","name":{"simpleText":"English"}}],"`

	got, err := extractCaptionURL(page)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	want := "https://www.youtube.com/api/timedtext?v=dQw4w9WgXcQ&lang=en&fmt=srv3"
	if got != want {
		t.Errorf("extractCaptionURL = %q, want %q", got, want)
	}
	if strings.Contains(got, `\u0026`) || strings.Contains(got, `\/`) {
		t.Errorf("JSON escapes survived into the caption URL: %q", got)
	}
}

func TestExtractCaptionURL_NoCaptions(t *testing.T) {
	if _, err := extractCaptionURL(`<html><body>no player response here</body></html>`); err == nil {
		t.Error("Expected error for a page without caption tracks")
	}
}

func TestSummarize_PlaceholderForUnparsableURL(t *testing.T) {
	s := NewTranscriptService()

	summary := s.Summarize("https://example.com/not-youtube", "Budget Talk", 300)
	if summary == "" {
		t.Fatal("Expected a non-empty placeholder summary")
	}
	if !strings.Contains(summary, "Budget Talk") {
		t.Errorf("Expected summary to include the title, got %q", summary)
	}
}
