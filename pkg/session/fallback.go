package session

import (
	"fmt"
	"strings"
	"time"
)

// Offline fallback data. These values are product behavior: they are what
// every session shows when the engine is unavailable, and must not drift.

func fallbackSongs() []Song {
	return []Song{
		{ID: "1", Title: "Rhythm Road", Artist: "Zylo Band", BPM: 120, Genre: "Pop", Version: "Clean", Difficulty: 2, Concepts: []string{"rhythm", "tempo"}},
		{ID: "2", Title: "Melody Magic", Artist: "The Scales", BPM: 96, Genre: "Rock", Version: "Acoustic", Difficulty: 3, Concepts: []string{"melody", "pitch"}},
		{ID: "3", Title: "Harmony Hills", Artist: "Chord Crew", BPM: 88, Genre: "Folk", Version: "Studio", Difficulty: 1, Concepts: []string{"harmony", "chords"}},
	}
}

func fallbackActivities() []Activity {
	return []Activity{
		{
			ID: "a1", Title: "Clap the Beat", Category: CategoryWarmup, Relevance: "Perfect", Difficulty: "Easy",
			Instructions: "Clap quarter notes with metronome at 100 bpm.",
			Resources:    []string{"Metronome"},
			Concepts:     []string{"rhythm", "tempo"},
		},
		{
			ID: "a2", Title: "Sing the Scale", Category: CategoryWarmup, Relevance: "Great", Difficulty: "Medium",
			Instructions: "Sing do-re-mi-fa-so-la-ti-do in C major.",
			Resources:    []string{"Pitch pipe"},
			Concepts:     []string{"melody", "pitch"},
		},
		{
			ID: "g1", Title: "Tempo Change Game", Category: CategoryGame, Relevance: "Good", Difficulty: "Hard",
			Instructions: "Change tempo on conductor cue; freeze on stop.",
			Resources:    []string{"Conductor cards"},
			Concepts:     []string{"tempo", "listening"},
		},
	}
}

func fallbackAck() Ack { return Ack{OK: true} }

const day = 24 * time.Hour

func isoDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// fallbackPlan renders the six-week demo term starting at now.
func fallbackPlan(now time.Time) string {
	lines := make([]string, 0, 1+6*7)
	lines = append(lines, "TERM OVERVIEW: A 6-week term focusing on rhythm and melody foundations.\n")
	for i := 0; i < 6; i++ {
		lines = append(lines,
			fmt.Sprintf("WEEK %d (%s)", i+1, isoDate(now.Add(time.Duration(i)*7*day))),
			"Objectives: Keep steady beat; Identify pitch up/down",
			"Warmup: Clap the Beat (5m)",
			"Main Activity: Call-and-response rhythm patterns (15m)",
			"Song Work: Practice verse and chorus with dynamics (10m)",
		)
		if i%2 == 0 {
			lines = append(lines, "Game: Tempo Change Game (10m)")
		} else {
			lines = append(lines, "Game: —")
		}
		lines = append(lines, "Homework: Practice clapping rhythms for 5 mins/day\n")
	}
	return strings.Join(lines, "\n")
}

// refineFallback prefixes the requested changes onto base.
func refineFallback(changes, base string) string {
	return strings.Join([]string{"REQUESTED CHANGES: " + changes, "", base}, "\n")
}

func fallbackDownloads(now time.Time) Downloads {
	game := "Tempo Change Game"
	return Downloads{
		Status: DownloadsReady,
		Summary: DownloadSummary{
			LessonsCreated:      6,
			SelectedSongTitle:   "Rhythm Road",
			SelectedSongVersion: "Clean",
			WarmupTitle:         "Clap the Beat",
			GameTitle:           &game,
			TermStart:           isoDate(now),
			TermEnd:             isoDate(now.Add(5 * 7 * day)),
		},
		Files: []DownloadFile{
			{ID: "f1", Name: "Term Overview.pdf", Type: "pdf", SizeBytes: 1024 * 1024, URL: "#"},
			{ID: "f2", Name: "Lesson Plans.zip", Type: "zip", SizeBytes: 5 * 1024 * 1024, URL: "#"},
		},
	}
}
