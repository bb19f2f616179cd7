package session

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, id(it))
	}
	return out
}

func songID(s Song) string         { return s.ID }
func activityID(a Activity) string { return a.ID }

func TestFilterSongs(t *testing.T) {
	songs := fallbackSongs()

	assert.Equal(t, []string{"1"}, ids(FilterSongs(songs, "  rhythm "), songID))
	assert.Equal(t, []string{"2"}, ids(FilterSongs(songs, "ROCK"), songID))
	assert.Equal(t, []string{"3"}, ids(FilterSongs(songs, "chord crew"), songID))
	assert.Equal(t, []string{"2"}, ids(FilterSongs(songs, "acoustic"), songID))
	assert.Len(t, FilterSongs(songs, ""), 3)
	assert.Empty(t, FilterSongs(songs, "polka"))
}

func TestFilterActivities(t *testing.T) {
	activities := fallbackActivities()

	assert.Equal(t, []string{"a1", "a2"}, ids(FilterActivities(activities, "warmup"), activityID))
	assert.Equal(t, []string{"g1"}, ids(FilterActivities(activities, "hard"), activityID))
	assert.Equal(t, []string{"a2"}, ids(FilterActivities(activities, "scale"), activityID))
	assert.Len(t, FilterActivities(activities, " "), 3)
}

func TestRankActivities_Stable(t *testing.T) {
	in := []Activity{
		{ID: "good", Relevance: "Good"},
		{ID: "great-1", Relevance: "Great"},
		{ID: "odd", Relevance: "Unknown"},
		{ID: "perfect", Relevance: "Perfect"},
		{ID: "great-2", Relevance: "Great"},
	}

	ranked := RankActivities(in)

	assert.Equal(t, []string{"perfect", "great-1", "great-2", "good", "odd"}, ids(ranked, activityID))
	assert.Equal(t, "good", in[0].ID, "input is not reordered")
}

func TestSplitActivities(t *testing.T) {
	var in []Activity
	for i := 0; i < 7; i++ {
		in = append(in, Activity{ID: fmt.Sprintf("w%d", i), Category: CategoryWarmup, Relevance: "Good"})
	}
	in = append(in,
		Activity{ID: "g-good", Category: CategoryGame, Relevance: "Good"},
		Activity{ID: "g-perfect", Category: CategoryGame, Relevance: "Perfect"},
		Activity{ID: "other", Category: "Cooldown", Relevance: "Perfect"},
	)

	warmups, games := SplitActivities(in)

	assert.Equal(t, []string{"w0", "w1", "w2", "w3", "w4"}, ids(warmups, activityID))
	assert.Equal(t, []string{"g-perfect", "g-good"}, ids(games, activityID))
}
