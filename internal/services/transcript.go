package services

import (
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	ytapi "github.com/hightemp/youtube-transcript-api-go/api"
)

// TranscriptService derives a textual content summary for a video. This
// stage is best-effort: every failure degrades to a placeholder summary
// instead of failing the job.
type TranscriptService struct {
	httpClient    *http.Client
	transcriptAPI *ytapi.YouTubeTranscriptApi
}

type timedTextXML struct {
	XMLName xml.Name  `xml:"transcript"`
	Texts   []textXML `xml:"text"`
}

type textXML struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Text  string `xml:",chardata"`
}

func NewTranscriptService() *TranscriptService {
	return &TranscriptService{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		transcriptAPI: ytapi.NewYouTubeTranscriptApi(),
	}
}

var extractIDRegex = regexp.MustCompile(`(?:v=|/v/|youtu\.be/|embed/|shorts/)([a-zA-Z0-9_-]{11})`)

// ExtractVideoID pulls the 11-character video ID out of any supported URL form.
func ExtractVideoID(rawURL string) string {
	if m := extractIDRegex.FindStringSubmatch(rawURL); len(m) > 1 {
		return m[1]
	}
	return ""
}

// Summarize returns a transcript-based content summary for the video, or a
// deterministic placeholder when no caption source is reachable.
func (s *TranscriptService) Summarize(videoURL, title string, durationSec float64) string {
	videoID := ExtractVideoID(videoURL)
	if videoID == "" {
		return placeholderSummary(title, durationSec)
	}

	transcript, err := s.getTranscript(videoID)
	if err != nil {
		log.Printf("Transcript extraction failed for %s: %v", videoID, err)
		return placeholderSummary(title, durationSec)
	}

	return transcript
}

func placeholderSummary(title string, durationSec float64) string {
	return fmt.Sprintf(
		"Transcript is unavailable for this video. Title: %s. Duration: %.0f seconds. "+
			"The video appears to contain spoken content suitable for clipping based on its metadata.",
		title, durationSec,
	)
}

func (s *TranscriptService) getTranscript(videoID string) (string, error) {
	transcript, err := s.transcriptAPI.GetTranscript(videoID, []string{"en", "en-US", "en-GB"})
	if err != nil {
		// Any available language beats nothing.
		transcript, err = s.transcriptAPI.GetTranscript(videoID, nil)
		if err != nil {
			legacy, legacyErr := s.getTranscriptViaTimedText(videoID)
			if legacyErr == nil {
				return legacy, nil
			}
			return "", fmt.Errorf("transcript API failed (%v) and timedtext fallback failed (%v)", err, legacyErr)
		}
	}

	if len(transcript.Entries) == 0 {
		return "", fmt.Errorf("subtitle track is empty")
	}

	var fullText strings.Builder
	for _, entry := range transcript.Entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}
		fullText.WriteString(text)
		fullText.WriteString(" ")
	}

	cleaned := strings.TrimSpace(fullText.String())
	if cleaned == "" {
		return "", fmt.Errorf("subtitle text resolved to empty content")
	}

	return cleaned, nil
}

func (s *TranscriptService) getTranscriptViaTimedText(videoID string) (string, error) {
	pageURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
	req, _ := http.NewRequest("GET", pageURL, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch YouTube page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read YouTube page: %w", err)
	}

	captionURL, err := extractCaptionURL(string(body))
	if err != nil {
		return "", err
	}

	captionResp, err := s.httpClient.Get(captionURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch captions: %w", err)
	}
	defer captionResp.Body.Close()

	captionBody, err := io.ReadAll(captionResp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read captions: %w", err)
	}

	transcript, err := parseCaptionsXML(captionBody)
	if err != nil {
		return "", fmt.Errorf("failed to parse captions XML: %w", err)
	}

	return transcript, nil
}

func extractCaptionURL(pageHTML string) (string, error) {
	re := regexp.MustCompile(`"captionTracks"\s*:\s*\[(.*?)\],\s*"`)
	matches := re.FindStringSubmatch(pageHTML)
	if len(matches) < 2 {
		return "", fmt.Errorf("no captions available for this video")
	}

	tracksJSON := matches[1]
	reURL := regexp.MustCompile(`"baseUrl"\s*:\s*"(.*?)"`)
	urlMatches := reURL.FindStringSubmatch(tracksJSON)
	if len(urlMatches) < 2 {
		return "", fmt.Errorf("caption track found but baseUrl missing")
	}

	// The URL sits inside page JSON, so \u0026 and \/ arrive JSON-escaped.
	u := urlMatches[1]
	u = strings.ReplaceAll(u, `\u0026`, "&")
	u = strings.ReplaceAll(u, `\/`, "/")

	return u, nil
}

func parseCaptionsXML(data []byte) (string, error) {
	var tt timedTextXML
	if err := xml.Unmarshal(data, &tt); err != nil {
		return "", err
	}

	var parts []string
	for _, t := range tt.Texts {
		text := html.UnescapeString(t.Text)
		text = strings.TrimSpace(text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", fmt.Errorf("captions XML empty")
	}

	return strings.Join(parts, " "), nil
}
