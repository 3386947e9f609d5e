package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	app "github.com/tuyosu/pprating/internal/app"
	"github.com/tuyosu/pprating/internal/config"
	"github.com/tuyosu/pprating/internal/recalc"
	"github.com/tuyosu/pprating/pkg/logger"
	"github.com/tuyosu/pprating/pkg/metrics"
)

const (
	pushJob     = "pprating_recalc"
	stopTimeout = 30 * time.Second
)

// runRecalc loads configuration, performs one run and writes its artifacts.
func runRecalc(ctx context.Context, opts runOptions, out io.Writer) error {
	return runRecalcWith(ctx, opts, out)
}

// runRecalcWith is runRecalc with extra rating service options.
func runRecalcWith(ctx context.Context, opts runOptions, out io.Writer, svcOpts ...app.Option) error {
	cfg, err := loadConfig(ctx, opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.RecalcLogDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	logPath := filepath.Join(cfg.RecalcLogDir, recalc.RunLogName(time.Now()))
	logFile, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("create log file: %w", err)
	}
	defer func() { _ = logFile.Close() }()

	if err := logger.InitWithWriter(io.MultiWriter(os.Stderr, logFile)); err != nil {
		return err
	}
	level := cfg.LogLevel
	if opts.debug {
		level = "debug"
	}
	if err := logger.SetLevelString(level); err != nil {
		_ = logger.SetLevelString("info")
	}
	log := logger.Get().Named("recalc-cli")
	_, _ = fmt.Fprintf(out, "Logging to %s\n", logPath)

	svc := app.New(cfg, append([]app.Option{app.WithLogger(logger.Get())}, svcOpts...)...)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	stopService := func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Warn(stopCtx, "service stop incomplete", logger.Error(err))
		}
	}

	orch, err := svc.Recalculator()
	if err != nil {
		stopService()
		return err
	}

	report, runErr := orch.Run(ctx, recalc.Options{
		Modes:     opts.selectedModes(),
		Scores:    !opts.noScores,
		Stats:     !opts.noStats,
		ChunkSize: cfg.ChunkSize,
	})
	// Stop before the report so the run log ends with its own trailer.
	stopService()
	if report == nil {
		return runErr
	}

	if err := report.WriteLog(logFile); err != nil {
		log.Error(ctx, "writing run log failed", logger.Error(err))
	}
	if err := recalc.PrintSummary(out, report); err != nil {
		log.Error(ctx, "printing summary failed", logger.Error(err))
	}

	if opts.exportParquet || cfg.RecalcExportParquet {
		path, err := report.WriteParquet(cfg.RecalcLogDir)
		if err != nil {
			log.Error(ctx, "parquet export failed", logger.Error(err))
		} else {
			_, _ = fmt.Fprintf(out, "Score changes exported to %s\n", path)
		}
	}

	if cfg.PushgatewayURL != "" {
		err := metrics.Push(ctx, cfg.PushgatewayURL, pushJob, map[string]string{"run_id": report.RunID.String()})
		if err != nil {
			log.Warn(ctx, "pushing metrics failed", logger.Error(err))
		}
	}

	_, _ = fmt.Fprintf(out, "Log saved to %s\n", logPath)
	return runErr
}

func loadConfig(ctx context.Context, opts runOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(ctx, opts.configPath)
	} else {
		cfg, err = config.Load(ctx)
	}
	if err != nil {
		return nil, err
	}
	if opts.chunkSize > 0 {
		cfg.ChunkSize = opts.chunkSize
	}
	return cfg, nil
}
