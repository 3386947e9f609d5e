package recalc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tuyosu/pprating/internal/adapters/engine"
	"github.com/tuyosu/pprating/pkg/metrics"
)

// RunContext is the state of one run. It is owned by that run and discarded
// with it.
type RunContext struct {
	ID    uuid.UUID
	Start time.Time

	cacheMu  sync.Mutex
	beatmaps map[int64]*cachedBeatmap

	processed    atomic.Int64
	skipped      atomic.Int64
	failed       atomic.Int64
	usersUpdated atomic.Int64
	usersFailed  atomic.Int64

	logMu        sync.Mutex
	scoreChanges []ScoreChange
	userChanges  []UserChange
}

type cachedBeatmap struct {
	once sync.Once
	bm   *engine.Beatmap
	err  error
}

func newRunContext(now time.Time) *RunContext {
	return &RunContext{
		ID:       uuid.New(),
		Start:    now,
		beatmaps: map[int64]*cachedBeatmap{},
	}
}

// beatmap returns the parsed beatmap for mapID, calling load at most once per
// run. A failed or panicking load is remembered too.
func (rc *RunContext) beatmap(ctx context.Context, mapID int64, load func(context.Context) (*engine.Beatmap, error)) (*engine.Beatmap, error) {
	rc.cacheMu.Lock()
	entry, ok := rc.beatmaps[mapID]
	if !ok {
		entry = &cachedBeatmap{}
		rc.beatmaps[mapID] = entry
		metrics.UpdateBeatmapCacheSize(len(rc.beatmaps))
	}
	rc.cacheMu.Unlock()

	entry.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				entry.bm, entry.err = nil, fmt.Errorf("%w: parse: %v", ErrPanic, r)
			}
		}()
		entry.bm, entry.err = load(ctx)
	})
	return entry.bm, entry.err
}

// CachedBeatmaps returns the number of beatmaps seen this run.
func (rc *RunContext) CachedBeatmaps() int {
	rc.cacheMu.Lock()
	defer rc.cacheMu.Unlock()
	return len(rc.beatmaps)
}

func (rc *RunContext) addScoreChange(c ScoreChange) {
	rc.logMu.Lock()
	defer rc.logMu.Unlock()
	rc.scoreChanges = append(rc.scoreChanges, c)
}

func (rc *RunContext) addUserChange(c UserChange) {
	rc.logMu.Lock()
	defer rc.logMu.Unlock()
	rc.userChanges = append(rc.userChanges, c)
}

func (rc *RunContext) counters() Counters {
	return Counters{
		Processed:    int(rc.processed.Load()),
		Skipped:      int(rc.skipped.Load()),
		Failed:       int(rc.failed.Load()),
		UsersUpdated: int(rc.usersUpdated.Load()),
		UsersFailed:  int(rc.usersFailed.Load()),
	}
}
