package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uteop23/askara-ai-app/internal/models"
)

// ErrInsufficientCredits is returned when a non-premium user cannot pay
// the credit cost of a video job.
var ErrInsufficientCredits = errors.New("insufficient credits")

type VideoRepo struct {
	pool *pgxpool.Pool
}

func NewVideoRepo(pool *pgxpool.Pool) *VideoRepo {
	return &VideoRepo{pool: pool}
}

// CreateWithCredits deducts the credit cost and creates the job row in one
// transaction: either the user is charged and the job exists, or neither.
// Premium-active users bypass the deduction.
func (r *VideoRepo) CreateWithCredits(ctx context.Context, userID uuid.UUID, youtubeURL, taskID string, creditCost int) (*models.VideoProcess, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var credits int
	var isPremium bool
	var premiumExpires *time.Time
	err = tx.QueryRow(ctx,
		"SELECT credits, is_premium, premium_expires FROM users WHERE id = $1 FOR UPDATE",
		userID,
	).Scan(&credits, &isPremium, &premiumExpires)
	if err != nil {
		return nil, err
	}

	premiumActive := isPremium && (premiumExpires == nil || premiumExpires.After(time.Now().UTC()))
	if !premiumActive {
		if credits < creditCost {
			return nil, ErrInsufficientCredits
		}
		if _, err := tx.Exec(ctx,
			"UPDATE users SET credits = credits - $1 WHERE id = $2", creditCost, userID); err != nil {
			return nil, err
		}
	}

	vp := &models.VideoProcess{
		ID:         uuid.New(),
		UserID:     userID,
		TaskID:     taskID,
		YouTubeURL: youtubeURL,
		Status:     models.StatusPending,
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO video_processes (id, user_id, task_id, youtube_url, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		vp.ID, vp.UserID, vp.TaskID, vp.YouTubeURL, vp.Status,
	).Scan(&vp.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return vp, nil
}

func (r *VideoRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.VideoProcess, error) {
	return r.scanOne(ctx, "WHERE id = $1", id)
}

func (r *VideoRepo) GetByTaskID(ctx context.Context, taskID string) (*models.VideoProcess, error) {
	return r.scanOne(ctx, "WHERE task_id = $1", taskID)
}

func (r *VideoRepo) scanOne(ctx context.Context, where string, arg interface{}) (*models.VideoProcess, error) {
	vp := &models.VideoProcess{}
	var posts []byte

	query := `SELECT id, user_id, task_id, youtube_url, status, original_title, error_message,
		clips_generated, blog_article, carousel_posts, video_duration_seconds, created_at, completed_at
		FROM video_processes ` + where

	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&vp.ID, &vp.UserID, &vp.TaskID, &vp.YouTubeURL, &vp.Status, &vp.OriginalTitle,
		&vp.ErrorMessage, &vp.ClipsGenerated, &vp.BlogArticle, &posts,
		&vp.DurationSeconds, &vp.CreatedAt, &vp.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(posts) > 0 {
		json.Unmarshal(posts, &vp.CarouselPosts)
	}
	return vp, nil
}

func (r *VideoRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE video_processes SET status = $1 WHERE id = $2", status, id)
	return err
}

// SetTitle records the resolved title and duration after a successful fetch.
func (r *VideoRepo) SetTitle(ctx context.Context, id uuid.UUID, title string, durationSec float64) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE video_processes SET original_title = $1, video_duration_seconds = $2 WHERE id = $3",
		title, durationSec, id)
	return err
}

// MarkCompleted persists the generated text content and the final counters.
func (r *VideoRepo) MarkCompleted(ctx context.Context, id uuid.UUID, clipsGenerated int, blogArticle string, carouselPosts []string) error {
	posts, err := json.Marshal(carouselPosts)
	if err != nil {
		posts = []byte("[]")
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE video_processes
		SET status = $1, clips_generated = $2, blog_article = $3, carousel_posts = $4, completed_at = $5
		WHERE id = $6`,
		models.StatusCompleted, clipsGenerated, blogArticle, posts, time.Now().UTC(), id)
	return err
}

// MarkFailed sets the terminal failure state with a human-readable message.
func (r *VideoRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE video_processes SET status = $1, error_message = $2, completed_at = $3 WHERE id = $4",
		models.StatusFailed, errMsg, time.Now().UTC(), id)
	return err
}

// ListByUser returns a user's most recent jobs, newest first.
func (r *VideoRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.VideoProcess, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, task_id, youtube_url, status, original_title, error_message,
		clips_generated, blog_article, carousel_posts, video_duration_seconds, created_at, completed_at
		FROM video_processes WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var processes []models.VideoProcess
	for rows.Next() {
		var vp models.VideoProcess
		var posts []byte
		err := rows.Scan(
			&vp.ID, &vp.UserID, &vp.TaskID, &vp.YouTubeURL, &vp.Status, &vp.OriginalTitle,
			&vp.ErrorMessage, &vp.ClipsGenerated, &vp.BlogArticle, &posts,
			&vp.DurationSeconds, &vp.CreatedAt, &vp.CompletedAt,
		)
		if err != nil {
			return nil, err
		}
		if len(posts) > 0 {
			json.Unmarshal(posts, &vp.CarouselPosts)
		}
		processes = append(processes, vp)
	}
	return processes, rows.Err()
}
