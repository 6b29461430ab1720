package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	yt "github.com/kkdai/youtube/v2"
)

var allowedHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
	"youtu.be":        true,
	"www.youtu.be":    true,
}

var videoIDRegex = regexp.MustCompile(`(?:v=|/v/|youtu\.be/|embed/|shorts/)([a-zA-Z0-9_-]{11})`)

// Fetcher resolves metadata for a source URL and downloads the media into
// a job-scoped scratch directory, under resolution and size ceilings.
type Fetcher struct {
	client      *yt.Client
	maxDuration time.Duration
	maxSize     int64
	maxAttempts int
}

// FetchResult is what the pipeline needs from a completed download.
type FetchResult struct {
	VideoPath string
	Title     string
	Duration  float64 // seconds
}

// VideoMetadata is the pre-download view of the source.
type VideoMetadata struct {
	Title    string
	Duration time.Duration
	IsLive   bool
	video    *yt.Video
	format   *yt.Format
}

func NewFetcher(maxDuration time.Duration, maxSizeBytes int64) *Fetcher {
	return &Fetcher{
		client:      &yt.Client{},
		maxDuration: maxDuration,
		maxSize:     maxSizeBytes,
		maxAttempts: 3,
	}
}

// ValidateURL enforces the scheme and source-domain allow-list. The web
// layer performs its own check, but the pipeline never trusts the caller.
func (f *Fetcher) ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q is not allowed", ErrInvalidSource, parsed.Scheme)
	}
	if !allowedHosts[strings.ToLower(parsed.Host)] {
		return fmt.Errorf("%w: host %q is not an allowed video source", ErrInvalidSource, parsed.Host)
	}
	if videoIDRegex.FindStringSubmatch(rawURL) == nil {
		return fmt.Errorf("%w: cannot extract video ID", ErrInvalidSource)
	}
	return nil
}

// ResolveMetadata fetches title, duration and live-ness without downloading
// and rejects content that violates the hard ceilings.
func (f *Fetcher) ResolveMetadata(ctx context.Context, rawURL string) (*VideoMetadata, error) {
	video, err := f.client.GetVideoContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get video information: %v", ErrDownloadFailed, err)
	}

	meta := &VideoMetadata{
		Title:    video.Title,
		Duration: video.Duration,
		IsLive:   video.HLSManifestURL != "" && video.Duration == 0,
		video:    video,
	}

	if meta.IsLive {
		return nil, fmt.Errorf("%w: live streams are not supported", ErrUnsupportedContent)
	}
	if video.Duration > f.maxDuration {
		return nil, fmt.Errorf("%w: video too long (%s), maximum duration is %s",
			ErrUnsupportedContent, video.Duration, f.maxDuration)
	}

	format, err := f.pickFormat(video)
	if err != nil {
		return nil, err
	}
	meta.format = format

	return meta, nil
}

// pickFormat chooses the best muxed stream at or below 720p whose reported
// size fits under the ceiling, falling back to <=480p when nothing fits.
func (f *Fetcher) pickFormat(video *yt.Video) (*yt.Format, error) {
	formats := video.Formats.WithAudioChannels()
	if len(formats) == 0 {
		return nil, fmt.Errorf("%w: no playable formats with audio", ErrUnsupportedContent)
	}

	best := f.bestUnder(formats, 720, true)
	if best == nil {
		best = f.bestUnder(formats, 480, false)
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no format fits the %dMB size ceiling",
			ErrUnsupportedContent, f.maxSize/1024/1024)
	}

	if best.ContentLength > f.maxSize {
		return nil, fmt.Errorf("%w: reported size %dMB exceeds the %dMB ceiling",
			ErrUnsupportedContent, best.ContentLength/1024/1024, f.maxSize/1024/1024)
	}

	return best, nil
}

func (f *Fetcher) bestUnder(formats yt.FormatList, maxHeight int, enforceSize bool) *yt.Format {
	var best *yt.Format
	for i := range formats {
		fm := &formats[i]
		if fm.Height == 0 || fm.Height > maxHeight {
			continue
		}
		// ContentLength 0 means the source did not report a size; let the
		// post-download verification catch oversize files in that case.
		if enforceSize && fm.ContentLength > f.maxSize {
			continue
		}
		if best == nil || fm.Height > best.Height ||
			(fm.Height == best.Height && fm.Bitrate > best.Bitrate) {
			best = fm
		}
	}
	return best
}

// Fetch runs the full validate -> resolve -> download -> verify sequence.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, scratchDir string) (*FetchResult, error) {
	if err := f.ValidateURL(rawURL); err != nil {
		return nil, err
	}

	meta, err := f.ResolveMetadata(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	log.Printf("Video info: %s (%s)", meta.Title, meta.Duration)

	videoPath := filepath.Join(scratchDir, "video.mp4")
	if err := f.download(ctx, meta, videoPath); err != nil {
		return nil, err
	}

	info, err := os.Stat(videoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: downloaded video file not found: %v", ErrDownloadFailed, err)
	}
	if info.Size() < 1024 {
		return nil, fmt.Errorf("%w: downloaded file is too small (%d bytes)", ErrDownloadFailed, info.Size())
	}
	if info.Size() > f.maxSize {
		return nil, fmt.Errorf("%w: downloaded file is too large (%dMB)", ErrDownloadFailed, info.Size()/1024/1024)
	}

	duration := meta.Duration.Seconds()
	if duration == 0 {
		// Downstream segmenting divides by duration.
		duration = 60
	}

	log.Printf("Video file ready: %s (%dMB)", videoPath, info.Size()/1024/1024)

	return &FetchResult{
		VideoPath: videoPath,
		Title:     meta.Title,
		Duration:  duration,
	}, nil
}

// download streams the chosen format to disk, retrying transient errors
// a fixed number of times. Exhaustion surfaces as ErrDownloadFailed.
func (f *Fetcher) download(ctx context.Context, meta *VideoMetadata, dest string) error {
	var lastErr error

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
		}

		lastErr = f.downloadOnce(ctx, meta, dest)
		if lastErr == nil {
			return nil
		}

		log.Printf("Download attempt %d/%d failed: %v", attempt, f.maxAttempts, lastErr)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrDownloadFailed, ctx.Err())
		case <-time.After(time.Duration(attempt) * 2 * time.Second):
		}
	}

	return fmt.Errorf("%w: %v", ErrDownloadFailed, lastErr)
}

func (f *Fetcher) downloadOnce(ctx context.Context, meta *VideoMetadata, dest string) error {
	stream, _, err := f.client.GetStreamContext(ctx, meta.video, meta.format)
	if err != nil {
		return fmt.Errorf("failed to open video stream: %w", err)
	}
	defer stream.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create video file: %w", err)
	}
	defer out.Close()

	written, err := io.Copy(out, io.LimitReader(stream, f.maxSize+1))
	if err != nil {
		os.Remove(dest)
		return fmt.Errorf("failed to read video stream: %w", err)
	}
	if written > f.maxSize {
		os.Remove(dest)
		return fmt.Errorf("video stream exceeds %dMB limit", f.maxSize/1024/1024)
	}

	return nil
}
