package session

import (
	"slices"
	"strings"
)

// maxSuggestions caps each list returned by SplitActivities.
const maxSuggestions = 5

// FilterSongs keeps songs whose title, artist, genre or version contains
// query, case-insensitively. An empty query keeps everything.
func FilterSongs(songs []Song, query string) []Song {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return slices.Clone(songs)
	}
	out := make([]Song, 0, len(songs))
	for _, s := range songs {
		if containsAny(q, s.Title, s.Artist, s.Genre, s.Version) {
			out = append(out, s)
		}
	}
	return out
}

// FilterActivities keeps activities whose title, category or difficulty
// contains query, case-insensitively.
func FilterActivities(activities []Activity, query string) []Activity {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return slices.Clone(activities)
	}
	out := make([]Activity, 0, len(activities))
	for _, a := range activities {
		if containsAny(q, a.Title, a.Category, a.Difficulty) {
			out = append(out, a)
		}
	}
	return out
}

func containsAny(q string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// relevanceRank orders Perfect before Great before Good; anything else last.
func relevanceRank(r string) int {
	switch r {
	case "Perfect":
		return 3
	case "Great":
		return 2
	case "Good":
		return 1
	}
	return 0
}

// RankActivities returns a copy sorted by relevance, best first. Equal
// relevance keeps input order.
func RankActivities(activities []Activity) []Activity {
	out := slices.Clone(activities)
	slices.SortStableFunc(out, func(a, b Activity) int {
		return relevanceRank(b.Relevance) - relevanceRank(a.Relevance)
	})
	return out
}

// SplitActivities ranks activities and separates warmups from games, at
// most five of each.
func SplitActivities(activities []Activity) (warmups, games []Activity) {
	for _, a := range RankActivities(activities) {
		switch a.Category {
		case CategoryWarmup:
			if len(warmups) < maxSuggestions {
				warmups = append(warmups, a)
			}
		case CategoryGame:
			if len(games) < maxSuggestions {
				games = append(games, a)
			}
		}
	}
	return warmups, games
}
