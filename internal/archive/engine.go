// Package archive moves aged log files into object storage, deleting the
// local copy only after the remote copy is verified.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/emailops/pmta-archiver/internal/logfile"
	"github.com/emailops/pmta-archiver/internal/retention"
	"github.com/emailops/pmta-archiver/internal/storage"
)

// ErrRunFailed reports that a run finished but at least one file needs
// operator attention. The summary still carries every per-file outcome.
var ErrRunFailed = errors.New("archive run finished with failures")

// removeFile is swapped out by tests that need a failing delete.
var removeFile = os.Remove

// Options carries everything one archival pass needs besides the store.
type Options struct {
	LogDirectory    string
	FilenamePattern string
	RetentionDays   int
	PathPrefix      string
	DryRun          bool
}

// Engine performs archival passes: scan, classify, and for each eligible
// file upload, verify, delete, strictly in that order, one file at a time.
// A failure on one file never blocks the remaining files.
type Engine struct {
	store storage.ObjectStorage
	opts  Options
	log   zerolog.Logger
}

func New(store storage.ObjectStorage, opts Options, log zerolog.Logger) *Engine {
	return &Engine{store: store, opts: opts, log: log}
}

// Run executes one archival pass against the state of the directory at call
// time. Per-file problems are recorded in the summary and surface as
// ErrRunFailed; only an unreachable store or an unreadable directory aborts
// the pass before any file is touched.
func (e *Engine) Run(ctx context.Context, now time.Time) (*Summary, error) {
	if err := e.preflight(ctx); err != nil {
		return nil, fmt.Errorf("remote store preflight: %w", err)
	}

	cutoff := retention.Cutoff(now, e.opts.RetentionDays)
	files, err := logfile.Scan(e.opts.LogDirectory, e.opts.FilenamePattern)
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("directory", e.opts.LogDirectory).
		Str("pattern", e.opts.FilenamePattern).
		Str("cutoff", cutoff).
		Int("candidates", len(files)).
		Bool("dry_run", e.opts.DryRun).
		Msg("starting archival pass")

	summary := &Summary{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("archival pass aborted: %w", err)
		}
		outcome := e.processFile(ctx, f, cutoff)
		summary.add(outcome)
		e.logOutcome(f, outcome)
	}

	e.log.Info().
		Int("archived", summary.Archived).
		Int64("archived_bytes", summary.ArchivedBytes).
		Int("failed", summary.Failed).
		Int("kept", summary.Kept).
		Int("skipped", summary.Skipped).
		Msg("archival pass finished")

	if summary.Failed > 0 {
		return summary, fmt.Errorf("%w: %d of %d files", ErrRunFailed, summary.Failed, len(files))
	}
	return summary, nil
}

// preflight reads at most one entry of the remote listing so credential and
// connectivity problems surface before any file is touched.
func (e *Engine) preflight(ctx context.Context) error {
	for _, err := range e.store.ListObjects(ctx, e.opts.PathPrefix) {
		if err != nil {
			return err
		}
		break
	}
	return nil
}

func (e *Engine) processFile(ctx context.Context, f logfile.LogFile, cutoff string) Outcome {
	if f.Date == "" {
		return Outcome{Name: f.Name, Bytes: f.Size, Status: StatusSkipped, Reason: "no date in filename"}
	}
	if !retention.Eligible(f.Date, cutoff) {
		return Outcome{Name: f.Name, Bytes: f.Size, Status: StatusKept}
	}

	key := f.RemoteKey(e.opts.PathPrefix)
	if e.opts.DryRun {
		return Outcome{Name: f.Name, Key: key, Bytes: f.Size, Status: StatusSkipped, Reason: "dry run"}
	}
	return e.archiveFile(ctx, f, key)
}

// archiveFile walks one file through upload, verify, delete. The local copy
// is removed only after the remote size matches a fresh local stat. Every
// failure leaves the file on disk for the next run, except a failed delete,
// which leaves a verified remote copy next to the local one.
func (e *Engine) archiveFile(ctx context.Context, f logfile.LogFile, key string) Outcome {
	outcome := Outcome{Name: f.Name, Key: key, Bytes: f.Size}

	if err := e.store.UploadFile(ctx, f.Path, key); err != nil {
		outcome.Status = StatusFailed
		outcome.Stage = StageUpload
		outcome.Reason = err.Error()
		return outcome
	}

	remote, err := e.store.StatObject(ctx, key)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Stage = StageVerify
		outcome.Reason = err.Error()
		return outcome
	}

	local, err := os.Stat(f.Path)
	if err != nil {
		outcome.Status = StatusFailed
		outcome.Stage = StageVerify
		outcome.Reason = fmt.Sprintf("cannot stat local copy: %v", err)
		return outcome
	}
	if remote.Size != local.Size() {
		outcome.Status = StatusFailed
		outcome.Stage = StageVerify
		outcome.Reason = fmt.Sprintf("size mismatch: local %d bytes, remote %d bytes", local.Size(), remote.Size)
		return outcome
	}

	if err := removeFile(f.Path); err != nil {
		outcome.Status = StatusFailed
		outcome.Stage = StageDelete
		outcome.Reason = err.Error()
		return outcome
	}

	outcome.Status = StatusArchived
	outcome.Bytes = local.Size()
	return outcome
}

func (e *Engine) logOutcome(f logfile.LogFile, o Outcome) {
	switch o.Status {
	case StatusArchived:
		e.log.Info().Str("file", o.Name).Str("key", o.Key).Int64("bytes", o.Bytes).Msg("archived")
	case StatusKept:
		e.log.Debug().Str("file", o.Name).Str("date", f.Date).Msg("kept, inside retention window")
	case StatusSkipped:
		e.log.Info().Str("file", o.Name).Str("reason", o.Reason).Msg("skipped")
	case StatusFailed:
		evt := e.log.Error().
			Str("file", o.Name).
			Str("key", o.Key).
			Str("stage", string(o.Stage)).
			Str("reason", o.Reason)
		if o.Stage == StageDelete {
			evt.Msg("local delete failed after verified upload, remote copy needs manual reconciliation")
			return
		}
		evt.Msg("archive failed, file left on disk")
	}
}
