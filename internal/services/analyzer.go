package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/uteop23/askara-ai-app/internal/models"
)

const maxAcceptedClips = 8

// Analyzer finds viral moments in a video via Gemini and derives the
// long-form article plus the short social posts. When the model call fails
// or returns an invalid shape, the deterministic fallback substitutes
// permanently for this job; Analyze never returns a malformed result.
type Analyzer struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{}
}

func NewAnalyzer(apiKey string, concurrentReqs int) (*Analyzer, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel("gemini-3-flash-preview")
	model.SetTemperature(0.7)
	model.SetMaxOutputTokens(4000)

	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &Analyzer{
		client:   client,
		model:    model,
		rateChan: rateChan,
	}, nil
}

func (a *Analyzer) Close() {
	a.client.Close()
}

func (a *Analyzer) acquireRate(ctx context.Context) error {
	select {
	case <-a.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (a *Analyzer) releaseRate() {
	a.rateChan <- struct{}{}
}

// Analyze always returns a well-formed result: non-empty clips, article and
// posts. Degradation to the fallback is logged, never surfaced as an error.
func (a *Analyzer) Analyze(ctx context.Context, title, transcript string, duration float64) *models.AnalysisResult {
	result, err := a.analyzeWithModel(ctx, title, transcript, duration)
	if err != nil {
		log.Printf("Gemini analysis failed, using fallback: %v", err)
		return FallbackAnalysis(title, duration)
	}

	log.Printf("Parsed %d valid clips from Gemini", len(result.Clips))
	return result
}

func (a *Analyzer) analyzeWithModel(ctx context.Context, title, transcript string, duration float64) (*models.AnalysisResult, error) {
	if a.model == nil {
		return nil, fmt.Errorf("Gemini model not available")
	}

	if err := a.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer a.releaseRate()

	prompt := buildAnalysisPrompt(title, transcript, duration)

	resp, err := a.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	rawText := extractText(resp)
	if rawText == "" {
		return nil, fmt.Errorf("Gemini returned empty response")
	}

	return ParseAnalysisResponse(rawText, title, duration)
}

func buildAnalysisPrompt(title, transcript string, duration float64) string {
	var b strings.Builder

	b.WriteString("Analyze this video content and find the most viral and engaging moments:\n\n")
	b.WriteString(fmt.Sprintf("Title: %s\n", title))
	b.WriteString(fmt.Sprintf("Duration: %.0f seconds\n", duration))
	b.WriteString(fmt.Sprintf("Content Analysis: %s\n\n", transcript))

	b.WriteString(`Create clips that are:
1. 30-90 seconds long
2. Self-contained stories or key points
3. Have strong hooks in first 3 seconds
4. Include emotional or surprising moments

Respond with ONLY valid JSON in this exact format:
{
    "clips": [
        {
            "title": "Engaging clip title (max 50 chars)",
            "start_time": 30,
            "end_time": 90,
            "viral_score": 8.5,
            "reason": "Why this clip will be viral"
        }
    ],
    "blog_article": "<h1>SEO Blog Article Title</h1><p>Full article content...</p>",
    "carousel_posts": [
        "Post 1: Hook + key insight",
        "Post 2: Detailed explanation",
        "Post 3: Call to action"
    ]
}
`)

	return b.String()
}

type rawAnalysis struct {
	Clips         []rawClip `json:"clips"`
	BlogArticle   string    `json:"blog_article"`
	CarouselPosts []string  `json:"carousel_posts"`
}

type rawClip struct {
	Title      *string  `json:"title"`
	StartTime  *float64 `json:"start_time"`
	EndTime    *float64 `json:"end_time"`
	ViralScore *float64 `json:"viral_score"`
	Reason     string   `json:"reason"`
}

// ParseAnalysisResponse enforces the strict response contract: fenced or
// bare JSON with a non-empty clips array, all four required fields per clip,
// times clamped into the video, sub-10s spans dropped, at most 8 clips kept.
func ParseAnalysisResponse(rawText, title string, duration float64) (*models.AnalysisResult, error) {
	cleaned := stripCodeFences(rawText)

	var parsed rawAnalysis
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON in model response: %w", err)
	}

	if len(parsed.Clips) == 0 {
		return nil, fmt.Errorf("model response contains no clips")
	}

	if len(parsed.Clips) > maxAcceptedClips {
		parsed.Clips = parsed.Clips[:maxAcceptedClips]
	}

	var valid []models.Segment
	for _, c := range parsed.Clips {
		if c.Title == nil || c.StartTime == nil || c.EndTime == nil || c.ViralScore == nil {
			continue
		}

		start := clamp(*c.StartTime, 0, duration-10)
		end := clamp(*c.EndTime, 0, duration)
		if end <= start+10 {
			continue
		}

		valid = append(valid, models.Segment{
			Title:      *c.Title,
			StartTime:  start,
			EndTime:    end,
			ViralScore: clamp(*c.ViralScore, 0, 10),
			Reason:     c.Reason,
		})
	}

	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid clips found in model response")
	}

	result := &models.AnalysisResult{
		Clips:         valid,
		BlogArticle:   parsed.BlogArticle,
		CarouselPosts: parsed.CarouselPosts,
	}
	if result.BlogArticle == "" {
		result.BlogArticle = fallbackArticle(title, duration, len(valid))
	}
	if len(result.CarouselPosts) == 0 {
		result.CarouselPosts = fallbackPosts(title)
	}

	return result, nil
}

// FallbackAnalysis partitions the video into 3-6 equal segments with
// synthetic descending virality scores and templated text content.
func FallbackAnalysis(title string, duration float64) *models.AnalysisResult {
	log.Printf("Creating fallback analysis for %q (%.0fs)", title, duration)

	if duration < 60 {
		// The fetcher guarantees a 60s floor; enforce it again so the
		// output contract holds for any caller.
		duration = 60
	}

	numClips := int(duration / 60)
	if numClips < 3 {
		numClips = 3
	}
	if numClips > 6 {
		numClips = 6
	}

	segmentDuration := duration / float64(numClips)

	var clips []models.Segment
	for i := 0; i < numClips; i++ {
		start := float64(i) * segmentDuration
		clipDuration := segmentDuration * 0.8
		if clipDuration > 60 {
			clipDuration = 60
		}
		end := start + clipDuration
		if end > duration {
			end = duration
		}

		if end-start < 15 {
			continue
		}

		score := 9.0 - float64(i)*0.5
		if score < 5.0 {
			score = 5.0
		}

		clips = append(clips, models.Segment{
			Title:      fmt.Sprintf("Momen Menarik #%d - %s", i+1, truncate(title, 30)),
			StartTime:  round1(start),
			EndTime:    round1(end),
			ViralScore: score,
			Reason:     "Segmen yang dipilih berdasarkan analisis durasi dan konten",
		})
	}

	return &models.AnalysisResult{
		Clips:         clips,
		BlogArticle:   fallbackArticle(title, duration, len(clips)),
		CarouselPosts: fallbackPosts(title),
	}
}

func fallbackArticle(title string, duration float64, clipCount int) string {
	return fmt.Sprintf(`<h1>%s - Analisis Konten Video</h1>
<p>Video ini berisi konten berkualitas dengan durasi %.0f detik. Tim AI kami telah menganalisis dan mengidentifikasi %d momen yang berpotensi viral.</p>

<h2>Highlights Video</h2>
<p>Setiap klip telah dipilih berdasarkan potensi engagement dan kualitas konten. Video original menampilkan informasi berharga yang dapat menarik perhatian audiens target.</p>`,
		title, duration, clipCount)
}

func fallbackPosts(title string) []string {
	return []string{
		fmt.Sprintf("🎬 Thread: %s... - Insights penting dari video ini!", truncate(title, 50)),
		"💡 Tip #1: Konten berkualitas dimulai dari pemilihan momen yang tepat",
		"🚀 Tip #2: Setiap klip harus memiliki nilai tersendiri untuk audiens",
		"✨ Kesimpulan: Dengan tools AI yang tepat, satu video bisa jadi banyak konten!",
	}
}

// Helper functions

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
