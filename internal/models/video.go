package models

import (
	"time"

	"github.com/google/uuid"
)

// VideoProcess lifecycle statuses. Transitions move strictly forward;
// "failed" is reachable from any non-terminal status.
const (
	StatusPending       = "pending"
	StatusDownloading   = "downloading"
	StatusProcessing    = "processing"
	StatusAnalyzing     = "analyzing"
	StatusCreatingClips = "creating_clips"
	StatusCompleted     = "completed"
	StatusFailed        = "failed"
)

var nextStatus = map[string]string{
	StatusPending:       StatusDownloading,
	StatusDownloading:   StatusProcessing,
	StatusProcessing:    StatusAnalyzing,
	StatusAnalyzing:     StatusCreatingClips,
	StatusCreatingClips: StatusCompleted,
}

// CanTransition reports whether moving from one status to another is legal:
// either the single designated next stage, or failed from any non-terminal one.
func CanTransition(from, to string) bool {
	if from == StatusCompleted || from == StatusFailed {
		return false
	}
	if to == StatusFailed {
		return true
	}
	return nextStatus[from] == to
}

// VideoProcess is one request to turn a YouTube URL into clips plus
// generated text. Owned exclusively by the worker task while running.
type VideoProcess struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	TaskID          string     `json:"task_id"`
	YouTubeURL      string     `json:"youtube_url"`
	Status          string     `json:"status"`
	OriginalTitle   *string    `json:"original_title"`
	ErrorMessage    *string    `json:"error_message"`
	ClipsGenerated  int        `json:"clips_generated"`
	BlogArticle     *string    `json:"blog_article"`
	CarouselPosts   []string   `json:"carousel_posts"`
	DurationSeconds *float64   `json:"video_duration_seconds"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at"`
}

// VideoClip is one rendered vertical clip. Immutable after creation except
// for the view/download counters owned by the serving layer.
type VideoClip struct {
	ID            uuid.UUID `json:"id"`
	ProcessID     uuid.UUID `json:"process_id"`
	Filename      string    `json:"filename"`
	Title         string    `json:"title"`
	Duration      float64   `json:"duration"`
	ViralScore    float64   `json:"viral_score"`
	StartTime     float64   `json:"start_time"`
	EndTime       float64   `json:"end_time"`
	ViewCount     int       `json:"view_count"`
	DownloadCount int       `json:"download_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type ProcessVideoRequest struct {
	URL string `json:"url"`
}

type TaskStatusResponse struct {
	State  string      `json:"state"`
	Status string      `json:"status,omitempty"`
	Result *TaskResult `json:"result,omitempty"`
}

type TaskResult struct {
	OriginalTitle string      `json:"original_title"`
	Clips         []VideoClip `json:"clips"`
	BlogArticle   string      `json:"blog_article"`
	CarouselPosts []string    `json:"carousel_posts"`
}
