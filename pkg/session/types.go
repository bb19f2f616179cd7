package session

import "strings"

// Song is a candidate song for the term.
type Song struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Artist     string   `json:"artist"`
	BPM        int      `json:"bpm"`
	Genre      string   `json:"genre"`
	Version    string   `json:"version"`
	Difficulty int      `json:"difficulty"` // 1..5
	Concepts   []string `json:"concepts"`
}

// Activity categories.
const (
	CategoryWarmup = "Warmup"
	CategoryGame   = "Game"
)

// Activity is a warmup or game suggested for the selected song.
type Activity struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Category     string   `json:"category"`   // Warmup | Game
	Relevance    string   `json:"relevance"`  // Perfect | Great | Good
	Difficulty   string   `json:"difficulty"` // Easy | Medium | Hard
	Instructions string   `json:"instructions"`
	Resources    []string `json:"resources"`
	Concepts     []string `json:"concepts"`
}

// LessonDetails is the step-one payload that starts a session.
type LessonDetails struct {
	LessonsToGenerate int    `json:"lessonsToGenerate" koanf:"lessonsToGenerate"`
	FirstLessonDate   string `json:"firstLessonDate" koanf:"firstLessonDate"`
	School            string `json:"school" koanf:"school"`
	GroupSize         int    `json:"groupSize" koanf:"groupSize"`
	Concept1          string `json:"concept1" koanf:"concept1"`
	Concept2          string `json:"concept2,omitempty" koanf:"concept2"`
	Concept3          string `json:"concept3,omitempty" koanf:"concept3"`
	Concept4          string `json:"concept4,omitempty" koanf:"concept4"`
	Concept5          string `json:"concept5,omitempty" koanf:"concept5"`
	SkipDate1         string `json:"skipDate1,omitempty" koanf:"skipDate1"`
	SkipDate2         string `json:"skipDate2,omitempty" koanf:"skipDate2"`
	SkipDate3         string `json:"skipDate3,omitempty" koanf:"skipDate3"`
}

// Validate checks the required fields.
func (d LessonDetails) Validate() error {
	switch {
	case d.LessonsToGenerate <= 0:
		return &ValidationError{Field: "lessonsToGenerate", Reason: "must be greater than zero"}
	case strings.TrimSpace(d.FirstLessonDate) == "":
		return &ValidationError{Field: "firstLessonDate", Reason: "is required"}
	case strings.TrimSpace(d.School) == "":
		return &ValidationError{Field: "school", Reason: "is required"}
	case d.GroupSize <= 0:
		return &ValidationError{Field: "groupSize", Reason: "must be greater than zero"}
	case strings.TrimSpace(d.Concept1) == "":
		return &ValidationError{Field: "concept1", Reason: "is required"}
	}
	return nil
}

// Ack is the acknowledgment returned by selection and approval actions.
type Ack struct {
	OK bool `json:"ok"`
}

// Download statuses.
const (
	DownloadsPending = "pending"
	DownloadsReady   = "ready"
	DownloadsFailed  = "failed"
)

// Downloads is the final-step payload.
type Downloads struct {
	Status  string          `json:"status"`
	Summary DownloadSummary `json:"summary"`
	Files   []DownloadFile  `json:"files"`
}

// DownloadSummary describes the generated term.
type DownloadSummary struct {
	LessonsCreated      int     `json:"lessonsCreated"`
	SelectedSongTitle   string  `json:"selectedSongTitle,omitempty"`
	SelectedSongVersion string  `json:"selectedSongVersion,omitempty"`
	WarmupTitle         string  `json:"warmupTitle,omitempty"`
	GameTitle           *string `json:"gameTitle,omitempty"`
	TermStart           string  `json:"termStart,omitempty"`
	TermEnd             string  `json:"termEnd,omitempty"`
}

// DownloadFile is one generated artifact.
type DownloadFile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	SizeBytes int64  `json:"sizeBytes,omitempty"`
	URL       string `json:"url"`
}

// StartResult reports what the start exchange produced.
type StartResult struct {
	PrefetchedSongs  int
	ExecutionContext bool // the engine returned an execution context
}
