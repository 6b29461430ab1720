package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/uteop23/askara-ai-app/internal/middleware"
	"github.com/uteop23/askara-ai-app/internal/models"
	"github.com/uteop23/askara-ai-app/internal/repository"
	"github.com/uteop23/askara-ai-app/internal/services"
)

// statusMessages is what the polling endpoint reports for each in-flight
// stage.
var statusMessages = map[string]string{
	models.StatusPending:       "Task is waiting to be processed",
	models.StatusDownloading:   "Downloading video from YouTube...",
	models.StatusProcessing:    "Extracting audio and analyzing content...",
	models.StatusAnalyzing:     "AI is analyzing content for viral moments...",
	models.StatusCreatingClips: "Creating video clips...",
}

// Narrow store interfaces; the repository types satisfy them.

type VideoStore interface {
	CreateWithCredits(ctx context.Context, userID uuid.UUID, youtubeURL, taskID string, creditCost int) (*models.VideoProcess, error)
	GetByTaskID(ctx context.Context, taskID string) (*models.VideoProcess, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.VideoProcess, error)
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

type ClipStore interface {
	ListByProcess(ctx context.Context, processID uuid.UUID) ([]models.VideoClip, error)
	IncrementViewCount(ctx context.Context, filename string) error
	IncrementDownloadCount(ctx context.Context, filename string) error
}

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	AddCredits(ctx context.Context, id uuid.UUID, amount int) error
}

type TaskQueue interface {
	Enqueue(ctx context.Context, taskID string) error
}

type VideoHandler struct {
	videos     VideoStore
	clips      ClipStore
	users      UserStore
	fetcher    *services.Fetcher
	queue      TaskQueue
	clipsDir   string
	creditCost int
}

func NewVideoHandler(
	videos VideoStore,
	clips ClipStore,
	users UserStore,
	fetcher *services.Fetcher,
	queue TaskQueue,
	clipsDir string,
	creditCost int,
) *VideoHandler {
	return &VideoHandler{
		videos:     videos,
		clips:      clips,
		users:      users,
		fetcher:    fetcher,
		queue:      queue,
		clipsDir:   clipsDir,
		creditCost: creditCost,
	}
}

// ProcessVideo validates the URL, charges the user and queues the job.
// The heavy work happens on the worker pool; this endpoint returns as soon
// as the job row exists.
func (h *VideoHandler) ProcessVideo(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.ProcessVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if err := h.fetcher.ValidateURL(req.URL); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid YouTube URL", r))
		return
	}

	taskID := uuid.New().String()

	vp, err := h.videos.CreateWithCredits(r.Context(), userID, req.URL, taskID, h.creditCost)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			writeJSON(w, http.StatusPaymentRequired, errorResp("INSUFFICIENT_CREDITS", "Not enough credits to process a video", r))
			return
		}
		log.Printf("Failed to create video job: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL", "Failed to create video job", r))
		return
	}

	if err := h.queue.Enqueue(r.Context(), taskID); err != nil {
		// The user was already charged; a job that never reaches the queue
		// must not stay pending forever with their credits gone.
		log.Printf("Failed to enqueue task %s: %v", taskID, err)
		h.abandonJob(r.Context(), vp)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL", "Failed to queue video job", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"task_id": vp.TaskID,
		"status":  vp.Status,
	})
}

// abandonJob marks a never-queued job failed and refunds the charge to
// non-premium users. Premium users were never charged.
func (h *VideoHandler) abandonJob(ctx context.Context, vp *models.VideoProcess) {
	if err := h.videos.MarkFailed(ctx, vp.ID, "Failed to queue video job"); err != nil {
		log.Printf("Failed to mark abandoned task %s as failed: %v", vp.TaskID, err)
	}

	user, err := h.users.GetByID(ctx, vp.UserID)
	if err != nil {
		log.Printf("Failed to load user %s for credit refund: %v", vp.UserID, err)
		return
	}
	if user.IsPremiumActive() {
		return
	}
	if err := h.users.AddCredits(ctx, vp.UserID, h.creditCost); err != nil {
		log.Printf("Failed to refund credits to user %s: %v", vp.UserID, err)
	}
}

// TaskStatus reports the job state in the shape the frontend polls for:
// PENDING, PROGRESS, SUCCESS or FAILURE. Unknown task IDs are 404s.
func (h *VideoHandler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	vp, err := h.videos.GetByTaskID(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Task not found", r))
			return
		}
		log.Printf("Failed to load task %s: %v", taskID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL", "Failed to load task", r))
		return
	}

	resp := models.TaskStatusResponse{}

	switch vp.Status {
	case models.StatusPending:
		resp.State = "PENDING"
		resp.Status = statusMessages[vp.Status]
	case models.StatusCompleted:
		clips, err := h.clips.ListByProcess(r.Context(), vp.ID)
		if err != nil {
			log.Printf("Failed to load clips for task %s: %v", taskID, err)
			writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL", "Failed to load clips", r))
			return
		}
		resp.State = "SUCCESS"
		result := &models.TaskResult{Clips: clips}
		if vp.OriginalTitle != nil {
			result.OriginalTitle = *vp.OriginalTitle
		}
		if vp.BlogArticle != nil {
			result.BlogArticle = *vp.BlogArticle
		}
		result.CarouselPosts = vp.CarouselPosts
		resp.Result = result
	case models.StatusFailed:
		resp.State = "FAILURE"
		if vp.ErrorMessage != nil {
			resp.Status = *vp.ErrorMessage
		} else {
			resp.Status = "Video processing failed"
		}
	default:
		resp.State = "PROGRESS"
		resp.Status = statusMessages[vp.Status]
	}

	writeJSON(w, http.StatusOK, resp)
}

// History lists the user's recent jobs, newest first.
func (h *VideoHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	processes, err := h.videos.ListByUser(r.Context(), userID, 20)
	if err != nil {
		log.Printf("Failed to load history for user %s: %v", userID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL", "Failed to load history", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": processes,
	})
}

// clipFilenamePattern matches the names the renderer produces. Anything
// else never refers to a file we created.
var clipFilenamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-]+\.mp4$`)

// ServeClip streams a rendered clip from disk. The filename is matched
// against the renderer's naming scheme so the path can never escape the
// clips directory.
func (h *VideoHandler) ServeClip(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")

	if !clipFilenamePattern.MatchString(filename) || filename != filepath.Base(filename) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Clip not found", r))
		return
	}

	path := filepath.Join(h.clipsDir, filename)

	// Counting is best-effort; serving the file matters more.
	asDownload := r.URL.Query().Get("download") == "1"
	var countErr error
	if asDownload {
		countErr = h.clips.IncrementDownloadCount(r.Context(), filename)
	} else {
		countErr = h.clips.IncrementViewCount(r.Context(), filename)
	}
	if countErr != nil {
		log.Printf("Failed to count access for %s: %v", filename, countErr)
	}

	w.Header().Set("Content-Type", "video/mp4")
	if asDownload {
		w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	} else {
		w.Header().Set("Content-Disposition", "inline; filename="+filename)
	}
	http.ServeFile(w, r, path)
}

// Shared helpers

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResp(code, message string, r *http.Request) models.ErrorResponse {
	return models.ErrorResponse{
		Error: models.APIError{
			Code:      code,
			Message:   message,
			RequestID: r.Header.Get("X-Request-ID"),
		},
	}
}
