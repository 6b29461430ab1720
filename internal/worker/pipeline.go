package worker

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/uteop23/askara-ai-app/internal/models"
	"github.com/uteop23/askara-ai-app/internal/services"
)

// Narrow collaborator interfaces so the pipeline can be exercised with
// injected fakes; the pool wires the concrete implementations.

type Fetcher interface {
	ValidateURL(rawURL string) error
	Fetch(ctx context.Context, rawURL, scratchDir string) (*services.FetchResult, error)
}

type Transcriber interface {
	Summarize(videoURL, title string, durationSec float64) string
}

type Analyzer interface {
	Analyze(ctx context.Context, title, transcript string, duration float64) *models.AnalysisResult
}

type Renderer interface {
	RenderAll(ctx context.Context, videoPath string, sourceDuration float64, segments []models.Segment) ([]models.RenderedClip, error)
}

type Guard interface {
	Check() error
	Release()
	CleanupScratch(dir string)
}

type JobStore interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	SetTitle(ctx context.Context, id uuid.UUID, title string, durationSec float64) error
	MarkCompleted(ctx context.Context, id uuid.UUID, clipsGenerated int, blogArticle string, carouselPosts []string) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

type ClipStore interface {
	CreateBatch(ctx context.Context, processID uuid.UUID, clips []models.RenderedClip) error
}

// Pipeline owns the end-to-end stage sequence for one video job. The job
// record has a single writer: the task running this pipeline.
type Pipeline struct {
	fetcher     Fetcher
	transcriber Transcriber
	analyzer    Analyzer
	renderer    Renderer
	guard       Guard
	jobs        JobStore
	clips       ClipStore
	progress    services.ProgressSink
	scratchRoot string
}

func NewPipeline(
	fetcher Fetcher,
	transcriber Transcriber,
	analyzer Analyzer,
	renderer Renderer,
	guard Guard,
	jobs JobStore,
	clips ClipStore,
	progress services.ProgressSink,
	scratchRoot string,
) *Pipeline {
	return &Pipeline{
		fetcher:     fetcher,
		transcriber: transcriber,
		analyzer:    analyzer,
		renderer:    renderer,
		guard:       guard,
		jobs:        jobs,
		clips:       clips,
		progress:    progress,
		scratchRoot: scratchRoot,
	}
}

// Run executes the stage sequence for one job. Any returned error is
// unrecoverable for the job; the caller converts it into the failed state.
// Scratch resources are released on every exit path.
func (p *Pipeline) Run(ctx context.Context, vp *models.VideoProcess) error {
	scratchDir, err := os.MkdirTemp(p.scratchRoot, "askaraai_")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer p.guard.CleanupScratch(scratchDir)

	// downloading
	if err := p.advance(ctx, vp, models.StatusDownloading, "Downloading video from YouTube..."); err != nil {
		return err
	}
	if err := p.guard.Check(); err != nil {
		return err
	}

	fetched, err := p.fetcher.Fetch(ctx, vp.YouTubeURL, scratchDir)
	if err != nil {
		return err
	}
	if err := p.jobs.SetTitle(ctx, vp.ID, fetched.Title, fetched.Duration); err != nil {
		return fmt.Errorf("failed to save video title: %w", err)
	}
	vp.OriginalTitle = &fetched.Title

	// processing: transcript derivation is best-effort and never fails the job
	if err := p.advance(ctx, vp, models.StatusProcessing, "Extracting audio and analyzing content..."); err != nil {
		return err
	}
	transcript := p.transcriber.Summarize(vp.YouTubeURL, fetched.Title, fetched.Duration)

	// analyzing: the analyzer's fallback contract guarantees a usable result
	if err := p.advance(ctx, vp, models.StatusAnalyzing, "AI is analyzing content for viral moments..."); err != nil {
		return err
	}
	if err := p.guard.Check(); err != nil {
		return err
	}
	analysis := p.analyzer.Analyze(ctx, fetched.Title, transcript, fetched.Duration)
	p.guard.Release()

	if len(analysis.Clips) == 0 {
		return fmt.Errorf("no clips could be generated from this video")
	}

	// creating_clips
	msg := fmt.Sprintf("Creating %d video clips...", len(analysis.Clips))
	if err := p.advance(ctx, vp, models.StatusCreatingClips, msg); err != nil {
		return err
	}

	rendered, err := p.renderer.RenderAll(ctx, fetched.VideoPath, fetched.Duration, analysis.Clips)
	if err != nil {
		return err
	}

	// persist results; completed_at and counters land in the same update
	if err := p.clips.CreateBatch(ctx, vp.ID, rendered); err != nil {
		return fmt.Errorf("failed to save clips: %w", err)
	}
	if err := p.jobs.MarkCompleted(ctx, vp.ID, len(rendered), analysis.BlogArticle, analysis.CarouselPosts); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	vp.Status = models.StatusCompleted
	vp.ClipsGenerated = len(rendered)

	p.progress.Completed(ctx, vp.UserID, vp.TaskID, fetched.Title, len(rendered))
	log.Printf("Video processing completed: task %s, %d clips", vp.TaskID, len(rendered))

	return nil
}

// advance persists a forward transition and reports it on the progress
// channel. Transitions only ever move to the designated next stage.
func (p *Pipeline) advance(ctx context.Context, vp *models.VideoProcess, status, message string) error {
	if !models.CanTransition(vp.Status, status) {
		return fmt.Errorf("illegal status transition %s -> %s", vp.Status, status)
	}
	if err := p.jobs.UpdateStatus(ctx, vp.ID, status); err != nil {
		return fmt.Errorf("failed to update status to %s: %w", status, err)
	}
	vp.Status = status
	p.progress.Report(ctx, vp.UserID, vp.TaskID, status, message)
	return nil
}
