package models

// Segment is a candidate clip range inside the source video.
type Segment struct {
	Title      string  `json:"title"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
	ViralScore float64 `json:"viral_score"`
	Reason     string  `json:"reason"`
}

// AnalysisResult is the validated output of the content analyzer. Callers
// may rely on Clips being non-empty and BlogArticle/CarouselPosts being set.
type AnalysisResult struct {
	Clips         []Segment `json:"clips"`
	BlogArticle   string    `json:"blog_article"`
	CarouselPosts []string  `json:"carousel_posts"`
}

// RenderedClip describes one successfully written output file.
type RenderedClip struct {
	Filename   string  `json:"filename"`
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	ViralScore float64 `json:"viral_score"`
	StartTime  float64 `json:"start_time"`
	EndTime    float64 `json:"end_time"`
}
