package session

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
)

// LoadSongs returns the song candidates: a prefetched list if the engine
// embedded one earlier, otherwise a loadSongs call, otherwise the offline
// list.
func (c *Client) LoadSongs(ctx context.Context) Result[[]Song] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.admit(ActionLoadSongs, intentAuto); err != nil {
		return finish(ctx, c, ActionLoadSongs, Fallback(orLiteral(c.songs.get(ctx, c), fallbackSongs), err))
	}
	if songs, ok := c.songsPrefetch.take(ctx, c); ok {
		c.songs.set(ctx, c, songs)
		c.logger.Debug("songs served from prefetch", zap.Int("count", len(songs)))
		return finish(ctx, c, ActionLoadSongs, Live(songs))
	}

	songs, err := loadList[Song](ctx, c, ActionLoadSongs, "songs")
	if err != nil {
		songs = fallbackSongs()
		c.songs.set(ctx, c, songs)
		return finish(ctx, c, ActionLoadSongs, Fallback(songs, err))
	}
	c.songs.set(ctx, c, songs)
	return finish(ctx, c, ActionLoadSongs, Live(songs))
}

// SelectSong records the chosen song in the execution context and reports
// it to the engine. An id missing from the last song list is acknowledged
// without a call.
func (c *Client) SelectSong(ctx context.Context, id string) Result[Ack] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.admit(ActionSelectSong, intentAuto); err != nil {
		return finish(ctx, c, ActionSelectSong, Fallback(fallbackAck(), err))
	}

	song, ok := findByID(c.songs.get(ctx, c), id, func(s Song) string { return s.ID })
	if !ok {
		c.logger.Warn("selected song not in catalog", zap.String("song_id", id))
		return finish(ctx, c, ActionSelectSong, Fallback(fallbackAck(), ErrUnknownSong))
	}

	c.execCtx["selectedSongId"] = song.ID
	c.execCtx["selectedSong"] = song
	c.execCtx["selectedAt"] = c.now().UTC().Format(time.RFC3339)
	c.saveStored(ctx, keyExecutionContext, c.execCtx)

	resp, err := c.resume(ctx, ActionSelectSong, map[string]any{
		"songId":       song.ID,
		"selectedSong": song,
	})
	if err != nil {
		return finish(ctx, c, ActionSelectSong, Fallback(fallbackAck(), err))
	}

	if raw, found := resp.field("activities"); found {
		var activities []Activity
		if err := json.Unmarshal(raw, &activities); err == nil {
			c.activitiesPrefetch.put(ctx, c, activities)
		} else {
			c.logger.Warn("ignoring malformed prefetched activities", zap.Error(err))
		}
	}
	return finish(ctx, c, ActionSelectSong, Live(decodeAck(resp)))
}

// LoadActivities mirrors LoadSongs for warmups and games.
func (c *Client) LoadActivities(ctx context.Context) Result[[]Activity] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.admit(ActionLoadActivities, intentAuto); err != nil {
		return finish(ctx, c, ActionLoadActivities, Fallback(orLiteral(c.activities.get(ctx, c), fallbackActivities), err))
	}
	if activities, ok := c.activitiesPrefetch.take(ctx, c); ok {
		c.activities.set(ctx, c, activities)
		return finish(ctx, c, ActionLoadActivities, Live(activities))
	}

	activities, err := loadList[Activity](ctx, c, ActionLoadActivities, "activities")
	if err != nil {
		activities = fallbackActivities()
		c.activities.set(ctx, c, activities)
		return finish(ctx, c, ActionLoadActivities, Fallback(activities, err))
	}
	c.activities.set(ctx, c, activities)
	return finish(ctx, c, ActionLoadActivities, Live(activities))
}

// SelectActivities reports the chosen warmup and optional game. The warmup
// is required.
func (c *Client) SelectActivities(ctx context.Context, warmupID, gameID *string) Result[Ack] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if warmupID == nil || strings.TrimSpace(*warmupID) == "" {
		return finish(ctx, c, ActionSelectActivities,
			Fallback(fallbackAck(), &ValidationError{Field: "warmupId", Reason: "is required"}))
	}
	if err := c.admit(ActionSelectActivities, intentAuto); err != nil {
		return finish(ctx, c, ActionSelectActivities, Fallback(fallbackAck(), err))
	}

	known := c.activities.get(ctx, c)
	var game any
	if gameID != nil && *gameID != "" {
		game = c.activityRecord(known, *gameID)
	} else {
		gameID = nil
	}

	resp, err := c.resume(ctx, ActionSelectActivities, map[string]any{
		"warmupId":       *warmupID,
		"gameId":         gameID,
		"selectedWarmup": c.activityRecord(known, *warmupID),
		"selectedGame":   game,
	})
	if err != nil {
		return finish(ctx, c, ActionSelectActivities, Fallback(fallbackAck(), err))
	}
	return finish(ctx, c, ActionSelectActivities, Live(decodeAck(resp)))
}

// admit applies the gate to a call and logs the decision.
func (c *Client) admit(action string, in intent) error {
	err := c.gate.admit(in)
	switch {
	case err != nil:
		c.logger.Warn("call suppressed", zap.String("action", action), zap.Stringer("intent", in))
	case c.gate.state == GateGated:
		c.logger.Debug("gate bypassed", zap.String("action", action), zap.Stringer("intent", in))
	}
	return err
}

// activityRecord is the cached activity, or a bare {id} when unknown.
func (c *Client) activityRecord(known []Activity, id string) any {
	if a, ok := findByID(known, id, func(a Activity) string { return a.ID }); ok {
		return a
	}
	return map[string]string{"id": id}
}

// LoadLessonPlans returns the generated plan. The first live plan it serves,
// fetched or already cached by a refine, closes the gate; later calls return
// the cache without a request.
func (c *Client) LoadLessonPlans(ctx context.Context) Result[string] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.plan != "" {
		if c.planCause != nil {
			return finish(ctx, c, ActionLoadPlans, Fallback(c.plan, c.planCause))
		}
		c.gate.seal()
		return finish(ctx, c, ActionLoadPlans, Live(c.plan))
	}
	if err := c.admit(ActionLoadPlans, intentAuto); err != nil {
		return finish(ctx, c, ActionLoadPlans, Fallback(fallbackPlan(c.now()), err))
	}

	plan, err := c.loadPlan(ctx, ActionLoadPlans, nil)
	if err != nil {
		return finish(ctx, c, ActionLoadPlans, Fallback(fallbackPlan(c.now()), err))
	}
	c.plan, c.planCause = plan, nil
	c.gate.seal()
	c.logger.Info("lesson plan generated", zap.String("gate", c.gate.state.String()))
	return finish(ctx, c, ActionLoadPlans, Live(plan))
}

// RefineLessonPlans asks the engine to revise the plan. It always bypasses
// the gate and always overwrites the cached plan, live or not.
func (c *Client) RefineLessonPlans(ctx context.Context, changes string) Result[string] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.admit(ActionRefine, intentUser); err != nil {
		return finish(ctx, c, ActionRefine, Fallback(refineFallback(changes, fallbackPlan(c.now())), err))
	}

	plan, err := c.loadPlan(ctx, ActionRefine, map[string]any{"changes": changes})
	if err != nil {
		base := c.plan
		if base == "" {
			base = fallbackPlan(c.now())
		}
		c.plan, c.planCause = refineFallback(changes, base), err
		return finish(ctx, c, ActionRefine, Fallback(c.plan, err))
	}
	c.plan, c.planCause = plan, nil
	return finish(ctx, c, ActionRefine, Live(plan))
}

// ApproveLessonPlans confirms the plan and reopens the gate.
func (c *Client) ApproveLessonPlans(ctx context.Context) Result[Ack] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.admit(ActionApprove, intentUser); err != nil {
		return finish(ctx, c, ActionApprove, Fallback(fallbackAck(), err))
	}

	resp, err := c.resume(ctx, ActionApprove, nil)
	if err != nil {
		return finish(ctx, c, ActionApprove, Fallback(fallbackAck(), err))
	}
	ack := decodeAck(resp)
	if ack.OK {
		c.gate.open()
		c.logger.Info("lesson plan approved", zap.String("gate", c.gate.state.String()))
	}
	return finish(ctx, c, ActionApprove, Live(ack))
}

// GetDownloads fetches the generated files.
func (c *Client) GetDownloads(ctx context.Context) Result[Downloads] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.admit(ActionGetDownloads, intentUser); err != nil {
		return finish(ctx, c, ActionGetDownloads, Fallback(fallbackDownloads(c.now()), err))
	}

	resp, err := c.resume(ctx, ActionGetDownloads, nil)
	if err == nil {
		var d Downloads
		d, err = decodeDownloads(resp)
		if err == nil {
			return finish(ctx, c, ActionGetDownloads, Live(d))
		}
	}
	return finish(ctx, c, ActionGetDownloads, Fallback(fallbackDownloads(c.now()), err))
}

func (c *Client) loadPlan(ctx context.Context, action string, fields map[string]any) (string, error) {
	resp, err := c.resume(ctx, action, fields)
	if err != nil {
		return "", err
	}
	return decodePlan(resp)
}

func loadList[T any](ctx context.Context, c *Client, action, member string) ([]T, error) {
	resp, err := c.resume(ctx, action, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[T](resp, member)
}

func orLiteral[T any](cached []T, literal func() []T) []T {
	if len(cached) > 0 {
		return cached
	}
	return literal()
}

func findByID[T any](items []T, id string, key func(T) string) (T, bool) {
	for _, it := range items {
		if key(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}
