package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/uteop23/askara-ai-app/internal/models"
)

type ClipRepo struct {
	pool *pgxpool.Pool
}

func NewClipRepo(pool *pgxpool.Pool) *ClipRepo {
	return &ClipRepo{pool: pool}
}

// CreateBatch appends clip rows for a completed render. Storage is
// append-only; clips are never updated by the pipeline afterwards.
func (r *ClipRepo) CreateBatch(ctx context.Context, processID uuid.UUID, clips []models.RenderedClip) error {
	for _, c := range clips {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO video_clips (id, process_id, filename, title, duration, viral_score, start_time, end_time)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New(), processID, c.Filename, c.Title, c.Duration, c.ViralScore, c.StartTime, c.EndTime)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *ClipRepo) ListByProcess(ctx context.Context, processID uuid.UUID) ([]models.VideoClip, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, process_id, filename, title, duration, viral_score, start_time, end_time,
		view_count, download_count, created_at
		FROM video_clips WHERE process_id = $1 ORDER BY viral_score DESC, created_at`,
		processID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clips []models.VideoClip
	for rows.Next() {
		var c models.VideoClip
		err := rows.Scan(
			&c.ID, &c.ProcessID, &c.Filename, &c.Title, &c.Duration, &c.ViralScore,
			&c.StartTime, &c.EndTime, &c.ViewCount, &c.DownloadCount, &c.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		clips = append(clips, c)
	}
	return clips, rows.Err()
}

// IncrementViewCount is owned by the serving layer, not the pipeline.
func (r *ClipRepo) IncrementViewCount(ctx context.Context, filename string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE video_clips SET view_count = view_count + 1 WHERE filename = $1", filename)
	return err
}

func (r *ClipRepo) IncrementDownloadCount(ctx context.Context, filename string) error {
	_, err := r.pool.Exec(ctx,
		"UPDATE video_clips SET download_count = download_count + 1 WHERE filename = $1", filename)
	return err
}
