package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/uteop23/askara-ai-app/internal/models"
)

const (
	clipWidth     = 720
	clipHeight    = 1280
	minClipSpan   = 10.0 // seconds
	minOutputSize = 1024 // bytes
)

// Renderer extracts segments from the source media and writes them as
// independently playable vertical clips. Segments are processed
// sequentially to bound memory; one bad segment never aborts the batch.
type Renderer struct {
	runner   CommandRunner
	guard    *MemoryGuard
	clipsDir string
	now      func() time.Time
}

func NewRenderer(runner CommandRunner, guard *MemoryGuard, clipsDir string) *Renderer {
	return &Renderer{
		runner:   runner,
		guard:    guard,
		clipsDir: clipsDir,
		now:      time.Now,
	}
}

// RenderAll renders every valid segment and returns the clips that were
// successfully written. It fails only when zero segments succeed.
func (r *Renderer) RenderAll(ctx context.Context, videoPath string, sourceDuration float64, segments []models.Segment) ([]models.RenderedClip, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("source video not found: %w", err)
	}

	if err := os.MkdirAll(r.clipsDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create clips directory: %w", err)
	}

	log.Printf("Creating %d clips from %s", len(segments), videoPath)

	var rendered []models.RenderedClip
	for i, seg := range segments {
		clip, err := r.renderSegment(ctx, videoPath, sourceDuration, seg, i)
		if err != nil {
			log.Printf("Clip %d/%d failed: %v", i+1, len(segments), err)
			continue
		}

		rendered = append(rendered, *clip)
		log.Printf("Clip saved: %s (%.1fs)", clip.Filename, clip.Duration)
	}

	if len(rendered) == 0 {
		return nil, ErrNoClipsProduced
	}

	log.Printf("Clip creation completed: %d/%d clips created", len(rendered), len(segments))
	return rendered, nil
}

func (r *Renderer) renderSegment(ctx context.Context, videoPath string, sourceDuration float64, seg models.Segment, index int) (*models.RenderedClip, error) {
	if err := r.guard.Check(); err != nil {
		return nil, err
	}
	defer r.guard.Release()

	start := clamp(seg.StartTime, 0, sourceDuration)
	end := clamp(seg.EndTime, 0, sourceDuration)

	if end <= start {
		return nil, fmt.Errorf("invalid time range %.1f-%.1f", seg.StartTime, seg.EndTime)
	}
	if end-start < minClipSpan {
		return nil, fmt.Errorf("span too short (%.1fs)", end-start)
	}

	filename := GenerateClipFilename(seg.Title, index, r.now())
	outputPath := filepath.Join(r.clipsDir, filename)

	// Scale so the source height fills the target, center-crop the width
	// only when the scaled frame is wider than the target (crop rejects a
	// width larger than its input), then resize narrow sources up to the
	// exact output dimensions. Constrained bitrate and frame rate keep
	// output size predictable.
	vf := fmt.Sprintf("scale=-1:%d,crop=w='min(in_w,%d)':h=%d,scale=%d:%d",
		clipHeight, clipWidth, clipHeight, clipWidth, clipHeight)

	stderr, err := r.runner.Run(ctx, "ffmpeg",
		"-y",
		"-ss", fmt.Sprintf("%.3f", start),
		"-i", videoPath,
		"-t", fmt.Sprintf("%.3f", end-start),
		"-vf", vf,
		"-c:v", "libx264",
		"-c:a", "aac",
		"-b:v", "1500k",
		"-r", "24",
		"-preset", "fast",
		outputPath,
	)
	if err != nil {
		os.Remove(outputPath)
		return nil, fmt.Errorf("ffmpeg failed: %v (%s)", err, strings.TrimSpace(stderr))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return nil, fmt.Errorf("output file verification failed: %w", err)
	}
	if info.Size() < minOutputSize {
		os.Remove(outputPath)
		return nil, fmt.Errorf("output file too small (%d bytes)", info.Size())
	}

	return &models.RenderedClip{
		Filename:   filename,
		Title:      seg.Title,
		Duration:   end - start,
		ViralScore: clamp(seg.ViralScore, 0, 10),
		StartTime:  start,
		EndTime:    end,
	}, nil
}

// GenerateClipFilename builds a filesystem-safe name from a sanitized title
// fragment, the segment index and a timestamp. Two clips from the same job
// never collide because the index differs.
func GenerateClipFilename(title string, index int, now time.Time) string {
	safe := sanitizeTitle(title, 30)
	if safe == "" {
		safe = fmt.Sprintf("clip_%d", index+1)
	}

	timestamp := now.Format("20060102_150405")
	name := fmt.Sprintf("clip_%d_%s_%s.mp4", index+1, timestamp, safe)
	return strings.ReplaceAll(name, " ", "_")
}

func sanitizeTitle(title string, maxLen int) string {
	var b strings.Builder
	for _, c := range title {
		if unicode.IsLetter(c) && c < 128 || unicode.IsDigit(c) || c == ' ' || c == '-' || c == '_' {
			b.WriteRune(c)
		}
	}

	safe := strings.TrimSpace(b.String())
	if len(safe) > maxLen {
		safe = strings.TrimSpace(safe[:maxLen])
	}
	return safe
}
