package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/uteop23/askara-ai-app/internal/models"
	"github.com/uteop23/askara-ai-app/internal/services"
)

// QueueVideoProcessing is the Redis list the API pushes queued task
// references onto and the workers block on.
const QueueVideoProcessing = "queue:video-processing"

// QueuedTask is the wire form of one queue entry. The job row itself is
// the source of truth; the queue only carries the reference.
type QueuedTask struct {
	TaskID string `json:"task_id"`
}

// Queue is the producer side of the worker queue, used by the API layer.
type Queue struct {
	redis *redis.Client
}

func NewQueue(redisClient *redis.Client) *Queue {
	return &Queue{redis: redisClient}
}

func (q *Queue) Enqueue(ctx context.Context, taskID string) error {
	payload, err := json.Marshal(QueuedTask{TaskID: taskID})
	if err != nil {
		return err
	}
	return q.redis.LPush(ctx, QueueVideoProcessing, payload).Err()
}

type Runner interface {
	Run(ctx context.Context, vp *models.VideoProcess) error
}

type TaskStore interface {
	GetByTaskID(ctx context.Context, taskID string) (*models.VideoProcess, error)
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	AddCredits(ctx context.Context, id uuid.UUID, amount int) error
}

type Mailer interface {
	SendClipsReadyEmail(to, videoTitle string, clipCount int) error
}

type Pool struct {
	redis       *redis.Client
	pipeline    Runner
	tasks       TaskStore
	users       UserStore
	email       Mailer
	progress    services.ProgressSink
	workerCount int
	maxTasks    int
	softLimit   time.Duration
	hardLimit   time.Duration
	creditCost  int
	stopChan    chan struct{}
}

func NewPool(
	redisClient *redis.Client,
	pipeline Runner,
	tasks TaskStore,
	users UserStore,
	email Mailer,
	progress services.ProgressSink,
	workerCount int,
	maxTasksPerWorker int,
	softLimit time.Duration,
	hardLimit time.Duration,
	creditCost int,
) *Pool {
	return &Pool{
		redis:       redisClient,
		pipeline:    pipeline,
		tasks:       tasks,
		users:       users,
		email:       email,
		progress:    progress,
		workerCount: workerCount,
		maxTasks:    maxTasksPerWorker,
		softLimit:   softLimit,
		hardLimit:   hardLimit,
		creditCost:  creditCost,
		stopChan:    make(chan struct{}),
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		go p.supervise(i)
	}
	log.Printf("Started %d worker goroutines", p.workerCount)
}

func (p *Pool) Stop() {
	close(p.stopChan)
}

// supervise keeps one worker slot occupied. A worker exits after
// maxTasks tasks and is replaced with a fresh one.
func (p *Pool) supervise(id int) {
	for {
		select {
		case <-p.stopChan:
			return
		default:
		}

		p.worker(id)

		select {
		case <-p.stopChan:
			return
		default:
			log.Printf("Worker %d recycled after %d tasks", id, p.maxTasks)
		}
	}
}

func (p *Pool) worker(id int) {
	processed := 0
	for processed < p.maxTasks {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, QueueVideoProcessing).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var queued QueuedTask
		if err := json.Unmarshal([]byte(result[1]), &queued); err != nil {
			log.Printf("Worker %d: failed to parse queue entry: %v", id, err)
			continue
		}

		vp, err := p.tasks.GetByTaskID(ctx, queued.TaskID)
		if err != nil {
			log.Printf("Worker %d: no job row for task %s: %v", id, queued.TaskID, err)
			continue
		}

		// Try to acquire lock
		lockKey := fmt.Sprintf("job_lock:%s", vp.TaskID)
		locked, err := p.redis.SetNX(ctx, lockKey, "1", p.hardLimit).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing task %s", id, vp.TaskID)
		p.runTask(vp)
		processed++

		// Release lock
		p.redis.Del(ctx, lockKey)
	}
}

// runTask executes the pipeline under the soft time limit and enforces the
// hard limit from outside. After the hard limit fires the pipeline context
// is cancelled so the leaked goroutine cannot write a terminal state.
func (p *Pool) runTask(vp *models.VideoProcess) {
	ctx, cancel := context.WithTimeout(context.Background(), p.softLimit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.pipeline.Run(ctx, vp)
	}()

	select {
	case err := <-done:
		if err != nil {
			p.handleFailure(vp, err)
			return
		}
		p.handleSuccess(vp)
	case <-time.After(p.hardLimit):
		cancel()
		p.handleFailure(vp, errors.New("processing exceeded the time limit"))
	}
}

func (p *Pool) handleSuccess(vp *models.VideoProcess) {
	ctx := context.Background()

	user, err := p.users.GetByID(ctx, vp.UserID)
	if err != nil {
		log.Printf("Failed to load user %s for completion email: %v", vp.UserID, err)
		return
	}
	if !user.EmailNotifications {
		return
	}

	title := ""
	if vp.OriginalTitle != nil {
		title = *vp.OriginalTitle
	}
	if err := p.email.SendClipsReadyEmail(user.Email, title, vp.ClipsGenerated); err != nil {
		log.Printf("Failed to send completion email to %s: %v", user.Email, err)
	}
}

func (p *Pool) handleFailure(vp *models.VideoProcess, procErr error) {
	ctx := context.Background()
	msg := failureMessage(procErr)

	log.Printf("Task %s failed: %v", vp.TaskID, procErr)

	if err := p.tasks.MarkFailed(ctx, vp.ID, msg); err != nil {
		log.Printf("Failed to mark task %s as failed: %v", vp.TaskID, err)
	}
	vp.Status = models.StatusFailed

	p.refundCredits(ctx, vp)
	p.progress.Failed(ctx, vp.UserID, vp.TaskID, msg)
}

// refundCredits returns the job cost to non-premium users whose job failed.
// Premium users were never charged.
func (p *Pool) refundCredits(ctx context.Context, vp *models.VideoProcess) {
	user, err := p.users.GetByID(ctx, vp.UserID)
	if err != nil {
		log.Printf("Failed to load user %s for credit refund: %v", vp.UserID, err)
		return
	}
	if user.IsPremiumActive() {
		return
	}
	if err := p.users.AddCredits(ctx, vp.UserID, p.creditCost); err != nil {
		log.Printf("Failed to refund credits to user %s: %v", vp.UserID, err)
	}
}

// failureMessage maps internal errors to the message stored on the job and
// shown to the user.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrInvalidSource):
		return "Invalid YouTube URL"
	case errors.Is(err, services.ErrUnsupportedContent):
		return "Video is too long, a live stream, or otherwise unsupported"
	case errors.Is(err, services.ErrDownloadFailed):
		return "Failed to download the video from YouTube"
	case errors.Is(err, services.ErrOutOfMemory):
		return "Server is under heavy load, please try again later"
	case errors.Is(err, services.ErrNoClipsProduced):
		return "No clips could be generated from this video"
	case errors.Is(err, context.DeadlineExceeded):
		return "Processing exceeded the time limit"
	default:
		return fmt.Sprintf("Video processing failed: %v", err)
	}
}
