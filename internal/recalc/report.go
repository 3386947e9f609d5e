package recalc

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tuyosu/pprating/internal/domain/mods"
)

const (
	logTimeLayout = "2006-01-02 15:04:05"
	logFileLayout = "20060102_150405"
)

var rule = strings.Repeat("=", 80)

// ScoreChange records one persisted score rating.
type ScoreChange struct {
	seq     int
	ScoreID int64
	UserID  int64
	Map     string
	Mode    mods.Mode
	Mods    mods.Mods
	Relax   bool
	OldPP   float64
	NewPP   float64
	Change  float64
}

// UserChange records one upserted stats row.
type UserChange struct {
	seq         int
	UserID      int64
	Mode        mods.Mode
	PP          int
	Acc         float64
	TotalScores int
}

// Counters summarise a run.
type Counters struct {
	Processed    int
	Skipped      int
	Failed       int
	UsersUpdated int
	UsersFailed  int
}

// Report is the outcome of a run.
type Report struct {
	RunID        uuid.UUID
	Start        time.Time
	End          time.Time
	Modes        []mods.Mode
	Scores       bool
	Stats        bool
	ScoreChanges []ScoreChange
	UserChanges  []UserChange
	Counters     Counters
}

func (rc *RunContext) report(end time.Time, opts Options) *Report {
	rc.logMu.Lock()
	scores := slices.Clone(rc.scoreChanges)
	users := slices.Clone(rc.userChanges)
	rc.logMu.Unlock()

	slices.SortFunc(scores, func(a, b ScoreChange) int { return a.seq - b.seq })
	slices.SortFunc(users, func(a, b UserChange) int { return a.seq - b.seq })

	return &Report{
		RunID:        rc.ID,
		Start:        rc.Start,
		End:          end,
		Modes:        slices.Clone(opts.Modes),
		Scores:       opts.Scores,
		Stats:        opts.Stats,
		ScoreChanges: scores,
		UserChanges:  users,
		Counters:     rc.counters(),
	}
}

// TotalPPChange sums the change of every recalculated score.
func (r *Report) TotalPPChange() float64 {
	var total float64
	for _, c := range r.ScoreChanges {
		total += c.Change
	}
	return total
}

// AveragePPChange is TotalPPChange over the number of recalculated scores, or
// zero when there are none.
func (r *Report) AveragePPChange() float64 {
	if len(r.ScoreChanges) == 0 {
		return 0
	}
	return r.TotalPPChange() / float64(len(r.ScoreChanges))
}

// LogFileName returns recalc_YYYYMMDD_HHMMSS.log for the run start.
func (r *Report) LogFileName() string {
	return RunLogName(r.Start)
}

// RunLogName names the run log of a run started at start.
func RunLogName(start time.Time) string {
	return "recalc_" + start.Format(logFileLayout) + ".log"
}

// WriteLogFile writes the run log into dir, creating it if needed, and returns
// the file path.
func (r *Report) WriteLogFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, r.LogFileName())
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create log file: %w", err)
	}
	if err := r.WriteLog(f); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close log file: %w", err)
	}
	return path, nil
}

// WriteLog renders the human-readable run log.
func (r *Report) WriteLog(w io.Writer) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) { _, _ = fmt.Fprintf(bw, format, args...) }
	section := func(title string) { p("%s\n%s\n%s\n\n", rule, title, rule) }

	section("PP RECALCULATION LOG")
	p("Run ID: %s\n", r.RunID)
	p("Start Time: %s\n", r.Start.Format(logTimeLayout))
	p("End Time: %s\n", r.End.Format(logTimeLayout))
	p("Modes: %s\n", joinModes(r.Modes))
	p("Recalculate Scores: %s\n", titleBool(r.Scores))
	p("Recalculate Stats: %s\n", titleBool(r.Stats))
	p("\n")

	if len(r.ScoreChanges) > 0 {
		section(fmt.Sprintf("SCORE CHANGES (%d total)", len(r.ScoreChanges)))
		for _, c := range r.ScoreChanges {
			p("Score ID: %d\n", c.ScoreID)
			p("  Map: %s\n", c.Map)
			p("  Mode: %d | Mods: %d | Relax: %s\n", int(c.Mode), uint32(c.Mods), titleBool(c.Relax))
			p("  PP Change: %.3fpp -> %.3fpp (%s%.3fpp)\n", c.OldPP, c.NewPP, sign(c.Change), c.Change)
			p("\n")
		}
	}

	if len(r.UserChanges) > 0 {
		section(fmt.Sprintf("USER STAT UPDATES (%d total)", len(r.UserChanges)))
		for _, u := range r.UserChanges {
			p("User ID: %d\n", u.UserID)
			p("  Mode: %d\n", int(u.Mode))
			p("  PP: %.3fpp\n", float64(u.PP))
			p("  Accuracy: %.3f%%\n", u.Acc)
			p("  Total Scores: %d\n", u.TotalScores)
			p("\n")
		}
	}

	section("SUMMARY")
	p("Total Scores Recalculated: %d\n", len(r.ScoreChanges))
	p("Total Users Updated: %d\n", len(r.UserChanges))
	p("Scores Skipped: %d\n", r.Counters.Skipped)
	p("Scores Failed: %d\n", r.Counters.Failed)
	p("Users Failed: %d\n", r.Counters.UsersFailed)
	if len(r.ScoreChanges) > 0 {
		total, avg := r.TotalPPChange(), r.AveragePPChange()
		p("Total PP Change: %s%.3fpp\n", sign(total), total)
		p("Average PP Change: %s%.3fpp\n", sign(avg), avg)
	}
	p("\n%s\nEND OF LOG\n%s\n", rule, rule)

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func joinModes(modes []mods.Mode) string {
	parts := make([]string, len(modes))
	for i, m := range modes {
		parts[i] = fmt.Sprint(int(m))
	}
	return strings.Join(parts, ", ")
}

func sign(v float64) string {
	if v >= 0 {
		return "+"
	}
	return ""
}

func titleBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
