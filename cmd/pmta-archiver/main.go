// cmd/pmta-archiver/main.go
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/emailops/pmta-archiver/internal/archive"
	"github.com/emailops/pmta-archiver/internal/config"
	"github.com/emailops/pmta-archiver/internal/storage"
	"github.com/emailops/pmta-archiver/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "pmta-archiver",
		Usage: "Move aged PMTA accounting logs to R2, verify the upload, then delete the local copy",
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Execute one archival pass over the log directory",
				Flags:  runFlags(),
				Action: runArchive,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Error().Err(err).Msg("pmta-archiver failed")
		os.Exit(1)
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Report what would be archived without uploading or deleting anything",
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Env file with the archiver configuration",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Override LOG_LEVEL (trace, debug, info, warn, error)",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Override LOG_FORMAT (console or json)",
		},
	}
}

func runArchive(c *cli.Context) error {
	envFile := c.String("env-file")
	if err := godotenv.Load(envFile); err != nil {
		// The default .env is optional; a file the operator named is not.
		if c.IsSet("env-file") || !os.IsNotExist(err) {
			return fmt.Errorf("cannot load env file %s: %w", envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if level := c.String("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if format := c.String("log-format"); format != "" {
		cfg.Log.Format = format
	}
	cfg.Archive.DryRun = c.Bool("dry-run")

	logger.SetLevel(cfg.Log.Level)
	logger.SetFormat(cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	store, err := storage.NewR2Client(storage.R2Config{
		AccountID:       cfg.Remote.AccountID,
		AccessKeyID:     cfg.Remote.AccessKeyID,
		SecretAccessKey: cfg.Remote.SecretAccessKey,
		Bucket:          cfg.Remote.Bucket,
	})
	if err != nil {
		return err
	}

	// SIGTERM finishes the file in flight, then stops before the next one.
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runLog := logger.Log.With().Str("run_id", uuid.NewString()).Logger()
	engine := archive.New(store, archive.Options{
		LogDirectory:    cfg.Archive.LogDirectory,
		FilenamePattern: cfg.Archive.FilenamePattern,
		RetentionDays:   cfg.Archive.RetentionDays,
		PathPrefix:      cfg.Remote.PathPrefix,
		DryRun:          cfg.Archive.DryRun,
	}, runLog)

	_, err = engine.Run(ctx, time.Now())
	return err
}
