package main

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/tuyosu/pprating/internal/adapters/engine"
	"github.com/tuyosu/pprating/internal/adapters/storage"
	app "github.com/tuyosu/pprating/internal/app"
	"github.com/tuyosu/pprating/internal/config"
	"github.com/tuyosu/pprating/internal/domain/mods"
)

// capture runs the command with args and returns the options it received.
func capture(args ...string) (runOptions, bool, error) {
	var got runOptions
	called := false
	cmd := newRootCmd(func(_ context.Context, opts runOptions, _ io.Writer) error {
		got, called = opts, true
		return nil
	})
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return got, called, err
}

func TestRootCommandFlags(t *testing.T) {
	convey.Convey("Given the recalc command", t, func() {
		convey.Convey("Without flags every mode and phase is selected", func() {
			opts, called, err := capture()
			convey.So(err, convey.ShouldBeNil)
			convey.So(called, convey.ShouldBeTrue)
			convey.So(opts.selectedModes(), convey.ShouldResemble, mods.AllModes)
			convey.So(opts.noScores, convey.ShouldBeFalse)
			convey.So(opts.noStats, convey.ShouldBeFalse)
		})

		convey.Convey("Modes can be repeated or comma separated", func() {
			opts, _, err := capture("--mode", "0", "--mode", "4,8", "--mode", "4")
			convey.So(err, convey.ShouldBeNil)
			convey.So(opts.selectedModes(), convey.ShouldResemble, []mods.Mode{0, 4, 8})
		})

		convey.Convey("Unknown modes are rejected before running", func() {
			_, called, err := capture("--mode", "7")
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "0,1,2,3,4,5,6,8")
			convey.So(called, convey.ShouldBeFalse)
		})

		convey.Convey("Phase and tuning flags are passed through", func() {
			opts, _, err := capture("--no-stats", "--debug", "--chunk-size", "25", "--export-parquet", "--config", "x.yaml")
			convey.So(err, convey.ShouldBeNil)
			convey.So(opts.noStats, convey.ShouldBeTrue)
			convey.So(opts.debug, convey.ShouldBeTrue)
			convey.So(opts.chunkSize, convey.ShouldEqual, 25)
			convey.So(opts.exportParquet, convey.ShouldBeTrue)
			convey.So(opts.configPath, convey.ShouldEqual, "x.yaml")
		})

		convey.Convey("A negative chunk size is rejected", func() {
			_, _, err := capture("--chunk-size", "-1")
			convey.So(err, convey.ShouldNotBeNil)
		})

		convey.Convey("The stats subcommand skips scores and keeps parent flags", func() {
			opts, called, err := capture("stats", "--mode", "4")
			convey.So(err, convey.ShouldBeNil)
			convey.So(called, convey.ShouldBeTrue)
			convey.So(opts.noScores, convey.ShouldBeTrue)
			convey.So(opts.noStats, convey.ShouldBeFalse)
			convey.So(opts.selectedModes(), convey.ShouldResemble, []mods.Mode{mods.RelaxOsu})
		})

		convey.Convey("Positional arguments are rejected", func() {
			_, _, err := capture("everything")
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

const osuFile = "osu file format v14\n\n[General]\nMode: 0\n\n[Difficulty]\nCircleSize:4\nOverallDifficulty:9\nApproachRate:9.6\nHPDrainRate:5\n"

type stubEngine struct{}

func (stubEngine) Parse(_ context.Context, data []byte) (*engine.Beatmap, error) {
	return &engine.Beatmap{Data: data, CircleSize: 4}, nil
}

func (stubEngine) Calculate(_ context.Context, _ *engine.Beatmap, p engine.Params) (engine.Attributes, error) {
	combo := 0
	if p.Combo != nil {
		combo = *p.Combo
	}
	total := 100 + float64(combo)
	return engine.Attributes{Total: total, Aim: total * 0.4, Speed: total * 0.4}, nil
}

// seed writes one player with one standard score on a local beatmap.
func seed(t *testing.T, dsn, beatmapsDir string) {
	t.Helper()
	ctx := context.Background()
	sum := md5.Sum([]byte(osuFile))
	hash := hex.EncodeToString(sum[:])
	if err := os.MkdirAll(beatmapsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(beatmapsDir, "100.osu"), []byte(osuFile), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := storage.Open(ctx, config.BackendSQLite, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = st.Close() }()
	if err := st.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	stmts := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO users (id, name, country, priv) VALUES (?, ?, ?, ?)`, []any{1, "cookiezi", "kr", 1}},
		{`INSERT INTO maps (id, set_id, md5, artist, title, version, creator, total_length, status, cs)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, []any{100, 10, hash, "xi", "Blue Zenith", "FOUR DIMENSIONS", "Asphyxia", 120, 2, 4.0}},
		{`INSERT INTO scores (id, map_md5, userid, mode, mods, pp, acc, max_combo, n300, n100, n50, ngeki, nkatu, nmiss, status, play_time)
VALUES (?, ?, ?, 0, 0, 0, 98.5, ?, 500, 5, 0, 0, 0, 0, 2, ?)`, []any{1, hash, 1, 500, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}},
	}
	for _, s := range stmts {
		if _, err := st.DB().ExecContext(ctx, s.query, s.args...); err != nil {
			t.Fatalf("%s: %v", s.query, err)
		}
	}
}

func TestRunRecalc(t *testing.T) {
	convey.Convey("Given a SQLite database with one score", t, func() {
		dir := t.TempDir()
		logDir := filepath.Join(dir, "logs")
		beatmapsDir := filepath.Join(dir, "osu")
		dsn := filepath.Join(dir, "pprating.db")
		seed(t, dsn, beatmapsDir)

		cfgPath := filepath.Join(dir, "pprating.yaml")
		yaml := "db_backend: sqlite\n" +
			"db_dsn: " + dsn + "\n" +
			"db_migrate: true\n" +
			"beatmaps_dir: " + beatmapsDir + "\n" +
			"beatmap_mirror_url: \"\"\n" +
			"recalc_log_dir: " + logDir + "\n"
		convey.So(os.WriteFile(cfgPath, []byte(yaml), 0o600), convey.ShouldBeNil)

		convey.Convey("When a run completes", func() {
			var out bytes.Buffer
			opts := runOptions{modes: []int{0}, configPath: cfgPath, chunkSize: 10, exportParquet: true}
			err := runRecalcWith(context.Background(), opts, &out, app.WithEngine(stubEngine{}))
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the log location and summary are printed", func() {
				convey.So(out.String(), convey.ShouldContainSubstring, "Logging to "+logDir)
				convey.So(out.String(), convey.ShouldContainSubstring, "Scores recalculated")
				convey.So(out.String(), convey.ShouldContainSubstring, "Score changes exported to")
				convey.So(out.String(), convey.ShouldContainSubstring, "Log saved to")
			})

			convey.Convey("Then the run log lists the change and ends with its trailer", func() {
				matches, err := filepath.Glob(filepath.Join(logDir, "recalc_*.log"))
				convey.So(err, convey.ShouldBeNil)
				convey.So(matches, convey.ShouldHaveLength, 1)
				data, err := os.ReadFile(matches[0])
				convey.So(err, convey.ShouldBeNil)
				text := string(data)
				convey.So(text, convey.ShouldContainSubstring, "SCORE CHANGES")
				convey.So(text, convey.ShouldContainSubstring, "USER STAT UPDATES")
				convey.So(text, convey.ShouldContainSubstring, "rating service stopped")
				convey.So(strings.LastIndex(text, "END OF LOG"), convey.ShouldBeGreaterThan, strings.LastIndex(text, "rating service stopped"))
			})

			convey.Convey("Then the new rating is stored", func() {
				st, err := storage.Open(context.Background(), config.BackendSQLite, dsn)
				convey.So(err, convey.ShouldBeNil)
				defer func() { _ = st.Close() }()
				var pp float64
				convey.So(st.DB().QueryRow(`SELECT pp FROM scores WHERE id = 1`).Scan(&pp), convey.ShouldBeNil)
				convey.So(pp, convey.ShouldBeGreaterThan, 0)
			})
		})

		convey.Convey("When the config file is missing", func() {
			err := runRecalc(context.Background(), runOptions{configPath: filepath.Join(dir, "nope.yaml")}, io.Discard)

			convey.Convey("Then the run fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}
