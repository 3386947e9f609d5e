// Package recalc recomputes stored ratings and player aggregates across the
// whole corpus. Runs are idempotent: the same stored inputs always produce the
// same persisted values.
package recalc

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/tuyosu/pprating/internal/adapters/engine"
	"github.com/tuyosu/pprating/internal/adapters/leaderboard"
	"github.com/tuyosu/pprating/internal/domain/aggregate"
	"github.com/tuyosu/pprating/internal/domain/model"
	"github.com/tuyosu/pprating/internal/domain/mods"
	"github.com/tuyosu/pprating/internal/domain/rating"
	"github.com/tuyosu/pprating/internal/recalc/chunk"
	"github.com/tuyosu/pprating/pkg/logger"
	"github.com/tuyosu/pprating/pkg/metrics"
)

// Store is the relational storage a run reads and writes.
type Store interface {
	ScoresForRecalc(ctx context.Context, mode mods.Mode) ([]model.ScoreWithMap, error)
	UpdateScorePP(ctx context.Context, scoreID int64, pp float64) error
	UserIDs(ctx context.Context) ([]int64, error)
	BestScores(ctx context.Context, userID int64, mode mods.Mode) ([]model.BestScore, error)
	UpsertStats(ctx context.Context, st model.AggregateStats) error
	User(ctx context.Context, id int64) (model.User, bool, error)
}

// Beatmaps makes .osu files available locally.
type Beatmaps interface {
	Ensure(ctx context.Context, mapID int64, md5 string) (bool, error)
	Read(mapID int64) ([]byte, error)
}

// Parser turns .osu bytes into an engine beatmap.
type Parser interface {
	Parse(ctx context.Context, data []byte) (*engine.Beatmap, error)
}

// Calculator rates one play.
type Calculator interface {
	Calculate(ctx context.Context, bm *engine.Beatmap, req rating.Request) (rating.Breakdown, error)
}

// Leaderboard receives profile ratings of visible players.
type Leaderboard interface {
	Set(ctx context.Context, key string, userID int64, score float64) error
}

// Options selects what a run does.
type Options struct {
	Modes     []mods.Mode
	Scores    bool
	Stats     bool
	ChunkSize int
}

// Orchestrator drives recalculation runs.
type Orchestrator struct {
	store     Store
	beatmaps  Beatmaps
	parser    Parser
	calc      Calculator
	board     Leaderboard
	lbPrefix  string
	now       func() time.Time
	log       logger.Logger
	chunkSize int
}

// New creates an orchestrator.
func New(store Store, beatmaps Beatmaps, parser Parser, calc Calculator, board Leaderboard, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:     store,
		beatmaps:  beatmaps,
		parser:    parser,
		calc:      calc,
		board:     board,
		now:       time.Now,
		log:       logger.Nop(),
		chunkSize: chunk.DefaultSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.Named("recalc")
	return o
}

// Run executes one recalculation. Per-item failures are logged, counted and
// swallowed; only a failure to load the lists a phase iterates is returned.
// The report is returned even then, covering the work done so far.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Report, error) {
	if opts.ChunkSize < 1 {
		opts.ChunkSize = o.chunkSize
	}
	if len(opts.Modes) == 0 {
		opts.Modes = slices.Clone(mods.AllModes)
	}
	rc := newRunContext(o.now())
	log := o.log.With(logger.String("run_id", rc.ID.String()))
	log.Info(ctx, "recalculation started",
		logger.Any("modes", opts.Modes),
		logger.Bool("scores", opts.Scores),
		logger.Bool("stats", opts.Stats),
		logger.Int("chunk_size", opts.ChunkSize),
	)

	var seq int
	err := func() error {
		for _, mode := range opts.Modes {
			if !mode.Valid() {
				return fmt.Errorf("%w: unsupported mode %d", ErrLoad, int(mode))
			}
			if opts.Scores {
				n, err := o.scorePhase(ctx, rc, log, mode, opts.ChunkSize, seq)
				if err != nil {
					return err
				}
				seq += n
			}
			if opts.Stats {
				n, err := o.userPhase(ctx, rc, log, mode, opts.ChunkSize, seq)
				if err != nil {
					return err
				}
				seq += n
			}
		}
		return nil
	}()

	report := rc.report(o.now(), opts)
	metrics.RecordRunDuration(report.End.Sub(report.Start).Seconds())
	if err != nil {
		log.Error(ctx, "recalculation aborted", logger.Error(err))
		return report, err
	}
	log.Info(ctx, "recalculation finished",
		logger.Int("processed", report.Counters.Processed),
		logger.Int("skipped", report.Counters.Skipped),
		logger.Int("failed", report.Counters.Failed),
		logger.Int("users_updated", report.Counters.UsersUpdated),
		logger.Int("users_failed", report.Counters.UsersFailed),
		logger.Duration("elapsed", report.End.Sub(report.Start)),
	)
	return report, nil
}

type scoreTask struct {
	seq   int
	score model.ScoreWithMap
}

func (o *Orchestrator) scorePhase(ctx context.Context, rc *RunContext, log logger.Logger, mode mods.Mode, size, seq int) (int, error) {
	scores, err := o.store.ScoresForRecalc(ctx, mode)
	if err != nil {
		return 0, fmt.Errorf("%w: scores for mode %d: %w", ErrLoad, int(mode), err)
	}
	log.Info(ctx, "recalculating scores", logger.String("mode", mode.String()), logger.Int("scores", len(scores)))

	tasks := make([]scoreTask, len(scores))
	for i, s := range scores {
		tasks[i] = scoreTask{seq: seq + i, score: s}
	}
	for _, batch := range chunk.Split(tasks, size) {
		start := time.Now()
		ready := make([]scoreTask, 0, len(batch))
		for _, t := range batch {
			if o.available(ctx, rc, log, t.score) {
				ready = append(ready, t)
			}
		}
		err := chunk.Run(ctx, ready, func(ctx context.Context, t scoreTask) error {
			return o.recalcScore(ctx, rc, log, t)
		})
		if err != nil {
			log.Warn(ctx, "score chunk finished with failures", logger.String("mode", mode.String()), logger.Error(err))
		}
		metrics.RecordChunkDuration("scores", float64(time.Since(start).Milliseconds()))
	}
	return len(scores), nil
}

func (o *Orchestrator) available(ctx context.Context, rc *RunContext, log logger.Logger, s model.ScoreWithMap) bool {
	ok, err := o.beatmaps.Ensure(ctx, s.Map.ID, s.MapMD5)
	switch {
	case err != nil:
		rc.failed.Add(1)
		metrics.RecordScoreFailed(int(s.Mode), "beatmap")
		log.Error(ctx, "beatmap check failed", logger.Int64("score_id", s.ID), logger.Int64("map_id", s.Map.ID), logger.Error(err))
		return false
	case !ok:
		rc.skipped.Add(1)
		metrics.RecordScoreSkipped(int(s.Mode))
		log.Debug(ctx, "beatmap unavailable, skipping score", logger.Int64("score_id", s.ID), logger.Int64("map_id", s.Map.ID))
		return false
	}
	return true
}

// recalcScore rates and persists one score. Every failure, panics included,
// is counted and logged here; the returned error only reports it upwards.
func (o *Orchestrator) recalcScore(ctx context.Context, rc *RunContext, log logger.Logger, t scoreTask) (err error) {
	s := t.score
	fail := func(reason string, cause error) error {
		rc.failed.Add(1)
		metrics.RecordScoreFailed(int(s.Mode), reason)
		log.Error(ctx, "failed to recalculate score", logger.Int64("score_id", s.ID), logger.String("reason", reason), logger.Error(cause))
		return fmt.Errorf("score %d: %w", s.ID, cause)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fail("panic", fmt.Errorf("%w: %v", ErrPanic, r))
		}
	}()

	bm, err := rc.beatmap(ctx, s.Map.ID, func(ctx context.Context) (*engine.Beatmap, error) {
		data, err := o.beatmaps.Read(s.Map.ID)
		if err != nil {
			return nil, err
		}
		return o.parser.Parse(ctx, data)
	})
	if err != nil {
		return fail("parse", err)
	}

	meta := s.Map.Meta()
	length := s.Map.TotalLength
	userID := s.UserID
	acc := s.Acc
	b, err := o.calc.Calculate(ctx, bm, rating.Request{
		Stats:            s.Statistics(),
		Map:              &meta,
		Length:           &length,
		PlayerID:         &userID,
		ApplyCap:         true,
		RecordedAccuracy: &acc,
	})
	if err != nil {
		reason := "engine"
		if errors.Is(err, rating.ErrInvalidInput) {
			reason = "invalid"
		}
		return fail(reason, err)
	}

	if err := o.store.UpdateScorePP(ctx, s.ID, b.Total); err != nil {
		return fail("storage", err)
	}
	rc.processed.Add(1)
	metrics.RecordScoreProcessed(int(s.Mode))
	rc.addScoreChange(ScoreChange{
		seq:     t.seq,
		ScoreID: s.ID,
		UserID:  s.UserID,
		Map:     s.MapLabel(),
		Mode:    s.Mode,
		Mods:    s.Mods,
		Relax:   s.Mods.IsRelax(),
		OldPP:   round3(s.PP),
		NewPP:   b.Total,
		Change:  round3(b.Total - s.PP),
	})
	log.Debug(ctx, "recalculated score",
		logger.Int64("score_id", s.ID),
		logger.Float64("old_pp", s.PP),
		logger.Float64("new_pp", b.Total),
	)
	return nil
}

type userTask struct {
	seq int
	id  int64
}

func (o *Orchestrator) userPhase(ctx context.Context, rc *RunContext, log logger.Logger, mode mods.Mode, size, seq int) (int, error) {
	ids, err := o.store.UserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: user ids: %w", ErrLoad, err)
	}
	log.Info(ctx, "recalculating user stats", logger.String("mode", mode.String()), logger.Int("users", len(ids)))

	tasks := make([]userTask, len(ids))
	for i, id := range ids {
		tasks[i] = userTask{seq: seq + i, id: id}
	}
	for _, batch := range chunk.Split(tasks, size) {
		start := time.Now()
		err := chunk.Run(ctx, batch, func(ctx context.Context, t userTask) error {
			if err := o.recalcUser(ctx, rc, log, mode, t); err != nil {
				rc.usersFailed.Add(1)
				metrics.RecordUserFailed(int(mode))
				log.Error(ctx, "failed to recalculate user", logger.Int64("user_id", t.id), logger.String("mode", mode.String()), logger.Error(err))
				return fmt.Errorf("user %d: %w", t.id, err)
			}
			return nil
		})
		if err != nil {
			log.Warn(ctx, "user chunk finished with failures", logger.String("mode", mode.String()), logger.Error(err))
		}
		metrics.RecordChunkDuration("users", float64(time.Since(start).Milliseconds()))
	}
	return len(ids), nil
}

func (o *Orchestrator) recalcUser(ctx context.Context, rc *RunContext, log logger.Logger, mode mods.Mode, t userTask) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	best, err := o.store.BestScores(ctx, t.id, mode)
	if err != nil {
		return err
	}
	entries := make([]aggregate.Entry, len(best))
	for i, b := range best {
		entries[i] = aggregate.Entry{PP: b.PP, Acc: b.Acc}
	}
	res, ok := aggregate.Compute(entries)
	if !ok {
		return nil
	}

	if err := o.store.UpsertStats(ctx, model.AggregateStats{
		UserID: t.id,
		Mode:   mode,
		PP:     res.PP,
		Acc:    res.Acc,
		Plays:  res.Plays,
	}); err != nil {
		return err
	}

	user, found, err := o.store.User(ctx, t.id)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %d", ErrUnknownUser, t.id)
	}
	if user.Visible() {
		if err := o.board.Set(ctx, leaderboard.GlobalKey(o.lbPrefix, mode), t.id, float64(res.PP)); err != nil {
			return err
		}
		metrics.RecordLeaderboardWrite("global")
		if err := o.board.Set(ctx, leaderboard.CountryKey(o.lbPrefix, mode, user.Country), t.id, float64(res.PP)); err != nil {
			return err
		}
		metrics.RecordLeaderboardWrite("country")
	}

	rc.usersUpdated.Add(1)
	metrics.RecordUserUpdated(int(mode))
	rc.addUserChange(UserChange{
		seq:         t.seq,
		UserID:      t.id,
		Mode:        mode,
		PP:          res.PP,
		Acc:         round3(res.Acc),
		TotalScores: res.Plays,
	})
	log.Debug(ctx, "recalculated user", logger.Int64("user_id", t.id), logger.Int("pp", res.PP), logger.Float64("acc", res.Acc))
	return nil
}
