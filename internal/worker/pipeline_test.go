package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/uteop23/askara-ai-app/internal/models"
	"github.com/uteop23/askara-ai-app/internal/services"
)

// Pipeline collaborator fakes.

type fakeFetcher struct {
	result *services.FetchResult
	err    error
}

func (f *fakeFetcher) ValidateURL(rawURL string) error { return nil }

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL, scratchDir string) (*services.FetchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeTranscriber struct{}

func (f *fakeTranscriber) Summarize(videoURL, title string, durationSec float64) string {
	return "content summary"
}

// fakeAnalyzer mirrors the production contract: it always produces a
// usable result, degrading to the deterministic fallback.
type fakeAnalyzer struct{}

func (f *fakeAnalyzer) Analyze(ctx context.Context, title, transcript string, duration float64) *models.AnalysisResult {
	return services.FallbackAnalysis(title, duration)
}

type fakeRenderer struct {
	dropFirst int // simulate per-segment encoder failures
	err       error
}

func (f *fakeRenderer) RenderAll(ctx context.Context, videoPath string, sourceDuration float64, segments []models.Segment) ([]models.RenderedClip, error) {
	if f.err != nil {
		return nil, f.err
	}
	var clips []models.RenderedClip
	for i, seg := range segments {
		if i < f.dropFirst {
			continue
		}
		clips = append(clips, models.RenderedClip{
			Filename:   fmt.Sprintf("clip_%d_test.mp4", i+1),
			Title:      seg.Title,
			Duration:   seg.EndTime - seg.StartTime,
			ViralScore: seg.ViralScore,
			StartTime:  seg.StartTime,
			EndTime:    seg.EndTime,
		})
	}
	if len(clips) == 0 {
		return nil, services.ErrNoClipsProduced
	}
	return clips, nil
}

type fakeGuard struct {
	checks    int
	failCheck int // 1-based check number that returns ErrOutOfMemory; 0 = never
	cleaned   []string
}

func (g *fakeGuard) Check() error {
	g.checks++
	if g.failCheck > 0 && g.checks >= g.failCheck {
		return fmt.Errorf("%w: 3000MB > 2048MB", services.ErrOutOfMemory)
	}
	return nil
}

func (g *fakeGuard) Release() {}

func (g *fakeGuard) CleanupScratch(dir string) {
	g.cleaned = append(g.cleaned, dir)
	if dir != "" {
		os.RemoveAll(dir)
	}
}

type fakeJobStore struct {
	statuses       []string
	title          string
	duration       float64
	completed      bool
	clipsGenerated int
	blogArticle    string
	carouselPosts  []string
	failedMsg      string
}

func (s *fakeJobStore) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	s.statuses = append(s.statuses, status)
	return nil
}

func (s *fakeJobStore) SetTitle(ctx context.Context, id uuid.UUID, title string, durationSec float64) error {
	s.title = title
	s.duration = durationSec
	return nil
}

func (s *fakeJobStore) MarkCompleted(ctx context.Context, id uuid.UUID, clipsGenerated int, blogArticle string, carouselPosts []string) error {
	s.completed = true
	s.clipsGenerated = clipsGenerated
	s.blogArticle = blogArticle
	s.carouselPosts = carouselPosts
	return nil
}

func (s *fakeJobStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	s.failedMsg = errMsg
	return nil
}

type fakeClipStore struct {
	saved []models.RenderedClip
}

func (s *fakeClipStore) CreateBatch(ctx context.Context, processID uuid.UUID, clips []models.RenderedClip) error {
	s.saved = append(s.saved, clips...)
	return nil
}

type fakeProgress struct {
	stages    []string
	completed bool
	failedMsg string
}

func (p *fakeProgress) Report(ctx context.Context, userID uuid.UUID, taskID, stage, message string) {
	p.stages = append(p.stages, stage)
}

func (p *fakeProgress) Completed(ctx context.Context, userID uuid.UUID, taskID, title string, clipsCreated int) {
	p.completed = true
}

func (p *fakeProgress) Failed(ctx context.Context, userID uuid.UUID, taskID, errMsg string) {
	p.failedMsg = errMsg
}

type pipelineFixture struct {
	pipeline *Pipeline
	fetcher  *fakeFetcher
	renderer *fakeRenderer
	guard    *fakeGuard
	jobs     *fakeJobStore
	clips    *fakeClipStore
	progress *fakeProgress
	vp       *models.VideoProcess
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	f := &pipelineFixture{
		fetcher: &fakeFetcher{
			result: &services.FetchResult{
				VideoPath: "/tmp/video.mp4",
				Title:     "Cara Membuat Konten Viral",
				Duration:  600,
			},
		},
		renderer: &fakeRenderer{},
		guard:    &fakeGuard{},
		jobs:     &fakeJobStore{},
		clips:    &fakeClipStore{},
		progress: &fakeProgress{},
		vp: &models.VideoProcess{
			ID:         uuid.New(),
			UserID:     uuid.New(),
			TaskID:     uuid.New().String(),
			YouTubeURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			Status:     models.StatusPending,
		},
	}

	f.pipeline = NewPipeline(
		f.fetcher, &fakeTranscriber{}, &fakeAnalyzer{}, f.renderer,
		f.guard, f.jobs, f.clips, f.progress, t.TempDir(),
	)
	return f
}

// A ten minute video whose model analysis degrades to the fallback still
// completes with six clips, an article and four posts.
func TestPipeline_CompletesWithFallbackAnalysis(t *testing.T) {
	f := newPipelineFixture(t)

	if err := f.pipeline.Run(context.Background(), f.vp); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	wantStatuses := []string{
		models.StatusDownloading, models.StatusProcessing,
		models.StatusAnalyzing, models.StatusCreatingClips,
	}
	if len(f.jobs.statuses) != len(wantStatuses) {
		t.Fatalf("Expected statuses %v, got %v", wantStatuses, f.jobs.statuses)
	}
	for i, want := range wantStatuses {
		if f.jobs.statuses[i] != want {
			t.Errorf("Status %d: expected %s, got %s", i, want, f.jobs.statuses[i])
		}
	}

	if !f.jobs.completed {
		t.Fatal("Expected the job to be marked completed")
	}
	if f.jobs.clipsGenerated != 6 {
		t.Errorf("Expected 6 clips for a 600s video, got %d", f.jobs.clipsGenerated)
	}
	if f.jobs.blogArticle == "" {
		t.Error("Expected a non-empty blog article")
	}
	if len(f.jobs.carouselPosts) != 4 {
		t.Errorf("Expected 4 carousel posts, got %d", len(f.jobs.carouselPosts))
	}
	if f.jobs.title != "Cara Membuat Konten Viral" {
		t.Errorf("Expected the video title to be persisted, got %q", f.jobs.title)
	}
	if len(f.clips.saved) != 6 {
		t.Errorf("Expected 6 clips saved, got %d", len(f.clips.saved))
	}
	if !f.progress.completed {
		t.Error("Expected a completion progress event")
	}
	if len(f.guard.cleaned) != 1 {
		t.Fatalf("Expected one scratch cleanup, got %d", len(f.guard.cleaned))
	}
}

// Unsupported content fails at the downloading stage; scratch space never
// outlives the job.
func TestPipeline_UnsupportedContentFailsEarly(t *testing.T) {
	f := newPipelineFixture(t)
	f.fetcher.err = fmt.Errorf("%w: video too long (4h0m0s)", services.ErrUnsupportedContent)

	err := f.pipeline.Run(context.Background(), f.vp)
	if !errors.Is(err, services.ErrUnsupportedContent) {
		t.Fatalf("Expected ErrUnsupportedContent, got %v", err)
	}

	if len(f.jobs.statuses) != 1 || f.jobs.statuses[0] != models.StatusDownloading {
		t.Errorf("Expected to stop at downloading, statuses: %v", f.jobs.statuses)
	}
	if f.jobs.completed {
		t.Error("Job must not be marked completed")
	}
	if len(f.guard.cleaned) != 1 {
		t.Fatalf("Expected scratch cleanup on the failure path")
	}
	if _, statErr := os.Stat(f.guard.cleaned[0]); !os.IsNotExist(statErr) {
		t.Error("Expected the scratch directory to be removed")
	}
}

// Partial render success still completes; the persisted count matches what
// actually rendered.
func TestPipeline_PartialRenderStillCompletes(t *testing.T) {
	f := newPipelineFixture(t)
	f.renderer.dropFirst = 2

	if err := f.pipeline.Run(context.Background(), f.vp); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if f.jobs.clipsGenerated != 4 {
		t.Errorf("Expected clips_generated 4, got %d", f.jobs.clipsGenerated)
	}
	if len(f.clips.saved) != 4 {
		t.Errorf("Expected 4 clips saved, got %d", len(f.clips.saved))
	}
}

// A memory ceiling breach before analysis aborts the job, not the worker,
// and still releases scratch space.
func TestPipeline_OutOfMemoryAborts(t *testing.T) {
	f := newPipelineFixture(t)
	f.guard.failCheck = 2 // first check passes, analysis check breaches

	err := f.pipeline.Run(context.Background(), f.vp)
	if !errors.Is(err, services.ErrOutOfMemory) {
		t.Fatalf("Expected ErrOutOfMemory, got %v", err)
	}

	want := []string{models.StatusDownloading, models.StatusProcessing, models.StatusAnalyzing}
	if len(f.jobs.statuses) != len(want) {
		t.Fatalf("Expected statuses %v, got %v", want, f.jobs.statuses)
	}
	if f.jobs.completed {
		t.Error("Job must not be marked completed")
	}
	if len(f.guard.cleaned) != 1 {
		t.Fatal("Expected scratch cleanup on the failure path")
	}
	if _, statErr := os.Stat(f.guard.cleaned[0]); !os.IsNotExist(statErr) {
		t.Error("Expected the scratch directory to be removed")
	}
}

func TestPipeline_RendererFailurePropagates(t *testing.T) {
	f := newPipelineFixture(t)
	f.renderer.err = services.ErrNoClipsProduced

	err := f.pipeline.Run(context.Background(), f.vp)
	if !errors.Is(err, services.ErrNoClipsProduced) {
		t.Fatalf("Expected ErrNoClipsProduced, got %v", err)
	}
	if f.jobs.completed {
		t.Error("Job must not be marked completed")
	}
}

func TestPipeline_ScratchDirUsesRecognizablePrefix(t *testing.T) {
	f := newPipelineFixture(t)

	if err := f.pipeline.Run(context.Background(), f.vp); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(f.guard.cleaned) != 1 || !strings.Contains(f.guard.cleaned[0], "askaraai_") {
		t.Errorf("Expected an askaraai_ scratch directory, got %v", f.guard.cleaned)
	}
}

// Pool-level failure handling.

type fakeTaskStore struct {
	failedMsg string
}

func (s *fakeTaskStore) GetByTaskID(ctx context.Context, taskID string) (*models.VideoProcess, error) {
	return nil, errors.New("not used")
}

func (s *fakeTaskStore) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	s.failedMsg = errMsg
	return nil
}

type fakeUserStore struct {
	user     *models.User
	refunded int
}

func (s *fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.user, nil
}

func (s *fakeUserStore) AddCredits(ctx context.Context, id uuid.UUID, amount int) error {
	s.refunded += amount
	return nil
}

type fakeMailer struct {
	sent int
}

func (m *fakeMailer) SendClipsReadyEmail(to, videoTitle string, clipCount int) error {
	m.sent++
	return nil
}

type slowRunner struct{}

func (r *slowRunner) Run(ctx context.Context, vp *models.VideoProcess) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Minute):
		return nil
	}
}

func newTestPool(runner Runner, tasks TaskStore, users UserStore, mailer Mailer, progress services.ProgressSink) *Pool {
	return NewPool(nil, runner, tasks, users, mailer, progress, 1, 100, 20*time.Millisecond, 50*time.Millisecond, 10)
}

func TestPool_HardTimeLimitFailsTheJob(t *testing.T) {
	tasks := &fakeTaskStore{}
	users := &fakeUserStore{user: &models.User{ID: uuid.New(), Credits: 20}}
	progress := &fakeProgress{}
	pool := newTestPool(&slowRunner{}, tasks, users, &fakeMailer{}, progress)

	vp := &models.VideoProcess{
		ID:     uuid.New(),
		UserID: users.user.ID,
		TaskID: uuid.New().String(),
		Status: models.StatusPending,
	}

	pool.runTask(vp)

	if vp.Status != models.StatusFailed {
		t.Errorf("Expected status failed, got %s", vp.Status)
	}
	if !strings.Contains(tasks.failedMsg, "time limit") {
		t.Errorf("Expected a time limit failure message, got %q", tasks.failedMsg)
	}
	if progress.failedMsg == "" {
		t.Error("Expected a failure progress event")
	}
}

func TestPool_RefundsCreditsOnFailure(t *testing.T) {
	tasks := &fakeTaskStore{}
	users := &fakeUserStore{user: &models.User{ID: uuid.New(), Credits: 20}}
	pool := newTestPool(nil, tasks, users, &fakeMailer{}, &fakeProgress{})

	vp := &models.VideoProcess{ID: uuid.New(), UserID: users.user.ID, TaskID: "t1", Status: models.StatusDownloading}
	pool.handleFailure(vp, services.ErrDownloadFailed)

	if users.refunded != 10 {
		t.Errorf("Expected 10 credits refunded, got %d", users.refunded)
	}
}

func TestPool_NoRefundForPremiumUsers(t *testing.T) {
	tasks := &fakeTaskStore{}
	users := &fakeUserStore{user: &models.User{ID: uuid.New(), IsPremium: true}}
	pool := newTestPool(nil, tasks, users, &fakeMailer{}, &fakeProgress{})

	vp := &models.VideoProcess{ID: uuid.New(), UserID: users.user.ID, TaskID: "t1", Status: models.StatusDownloading}
	pool.handleFailure(vp, services.ErrDownloadFailed)

	if users.refunded != 0 {
		t.Errorf("Expected no refund for premium users, got %d", users.refunded)
	}
}

func TestPool_CompletionEmailHonorsPreference(t *testing.T) {
	title := "Done Video"
	tests := []struct {
		name     string
		optedIn  bool
		expected int
	}{
		{"opted in", true, 1},
		{"opted out", false, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users := &fakeUserStore{user: &models.User{
				ID:                 uuid.New(),
				Email:              "user@example.com",
				EmailNotifications: tc.optedIn,
			}}
			mailer := &fakeMailer{}
			pool := newTestPool(nil, &fakeTaskStore{}, users, mailer, &fakeProgress{})

			vp := &models.VideoProcess{
				ID:             uuid.New(),
				UserID:         users.user.ID,
				TaskID:         "t1",
				Status:         models.StatusCompleted,
				OriginalTitle:  &title,
				ClipsGenerated: 5,
			}
			pool.handleSuccess(vp)

			if mailer.sent != tc.expected {
				t.Errorf("Expected %d emails sent, got %d", tc.expected, mailer.sent)
			}
		})
	}
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid source", services.ErrInvalidSource, "Invalid YouTube URL"},
		{"unsupported", fmt.Errorf("%w: live", services.ErrUnsupportedContent), "Video is too long, a live stream, or otherwise unsupported"},
		{"oom", fmt.Errorf("%w: 3000MB", services.ErrOutOfMemory), "Server is under heavy load, please try again later"},
		{"no clips", services.ErrNoClipsProduced, "No clips could be generated from this video"},
		{"deadline", context.DeadlineExceeded, "Processing exceeded the time limit"},
		{"unknown", errors.New("boom"), "Video processing failed: boom"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := failureMessage(tc.err); got != tc.want {
				t.Errorf("failureMessage(%v) = %q, want %q", tc.err, got, tc.want)
			}
		})
	}
}
