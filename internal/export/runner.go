package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"mailferry/internal/model"
)

// Ledger records which messages have already been exported so a later run
// can skip them. Implementations live in internal/store.
type Ledger interface {
	ExportedIDs(ctx context.Context, folderID string) (map[string]struct{}, error)
	MarkExported(ctx context.Context, folderID, messageID string) error
}

// Options configures a run. Zero values mean: export everything the walker
// finds, no ledger, no image recompression.
type Options struct {
	RootFolderID       string
	IncludeAttachments bool
}

// Runner drives the whole pipeline: walk folders, then per folder fetch,
// transform and write each message, updating the tracker after every item.
// One Runner performs one run on one goroutine.
type Runner struct {
	Source   Source
	Sink     Sink
	Tracker  *Tracker
	Ledger   Ledger        // optional
	Pool     *ImagePool    // optional
	Log      *slog.Logger  // optional
	Progress func(model.Progress)
	Opts     Options
}

// Run executes the export and returns the terminal status. The returned
// error is non-nil only for fatal failures (auth); per-item and per-folder
// trouble is reflected in the status and the tracker counters instead.
func (r *Runner) Run(ctx context.Context) (model.RunStatus, error) {
	log := r.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	hadErrors := false

	if total, err := r.Source.CountMessages(ctx); err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return model.StatusFailed, err
		}
		// The count is presentation-only; a failed count query never
		// stops the run.
		log.Warn("count query failed", "err", err)
	} else {
		r.Tracker.SetTotal(total)
	}

	folders, err := WalkFolders(ctx, r.Source, r.Opts.RootFolderID, func() bool {
		return r.stopRequested(ctx)
	}, func(found int) {
		r.emit("walk", "", found)
	})
	if err != nil {
		var authErr *AuthError
		switch {
		case errors.As(err, &authErr):
			return model.StatusFailed, err
		case r.stopRequested(ctx):
			return model.StatusCancelled, nil
		default:
			// Partial walk results stay usable.
			log.Warn("folder walk aborted", "err", err, "folders", len(folders))
			hadErrors = true
		}
	}

	for _, folder := range folders {
		if r.stopRequested(ctx) {
			return model.StatusCancelled, nil
		}
		status, err := r.exportFolder(ctx, folder, log)
		switch {
		case err != nil:
			return model.StatusFailed, err
		case status == model.StatusCancelled:
			return model.StatusCancelled, nil
		case status == model.StatusPartial:
			hadErrors = true
		}
	}

	stats := r.Tracker.Stats()
	r.emit("done", "", stats.Folders)
	if hadErrors || stats.Failed > 0 {
		return model.StatusPartial, nil
	}
	return model.StatusCompleted, nil
}

// exportFolder processes one folder. It returns StatusCancelled when the
// operator stopped the run mid-folder, StatusPartial when any item or page
// failed, and a non-nil error only for fatal auth failures. The folder's
// sink handle is always closed before return; a close failure means the
// final record separators may be missing, so it downgrades a clean folder
// to StatusPartial.
func (r *Runner) exportFolder(ctx context.Context, folder model.Folder, log *slog.Logger) (status model.RunStatus, err error) {
	r.Tracker.AddFolder()
	r.emit("export", folder.Path, 0)

	handle, err := r.Sink.Open(folder)
	if err != nil {
		log.Error("open sink failed", "folder", folder.Path, "err", err)
		return model.StatusPartial, nil
	}
	defer func() {
		if cerr := handle.Close(); cerr != nil {
			log.Error("close sink failed", "folder", folder.Path, "err", cerr)
			if err == nil && status == model.StatusCompleted {
				status = model.StatusPartial
			}
		}
	}()

	var exported map[string]struct{}
	if r.Ledger != nil {
		exported, err = r.Ledger.ExportedIDs(ctx, folder.ID)
		if err != nil {
			log.Warn("ledger read failed, exporting everything", "folder", folder.Path, "err", err)
		}
	}

	hadErrors := false
	cursor := ""
	for {
		if r.stopRequested(ctx) {
			return model.StatusCancelled, nil
		}
		page, err := r.Source.ListMessages(ctx, folder.ID, cursor)
		if err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				return model.StatusFailed, err
			}
			// Abort this folder's enumeration only; other folders
			// still proceed.
			log.Error("list messages failed", "folder", folder.Path,
				"err", &TransientError{Op: "list messages", Err: err})
			return model.StatusPartial, nil
		}

		for _, ref := range page.Refs {
			if r.stopRequested(ctx) {
				return model.StatusCancelled, nil
			}
			if _, done := exported[ref.ID]; done {
				r.Tracker.Skip()
				continue
			}
			if err := r.exportItem(ctx, folder, ref, handle); err != nil {
				var authErr *AuthError
				if errors.As(err, &authErr) {
					return model.StatusFailed, err
				}
				r.Tracker.Fail()
				hadErrors = true
				log.Error("item failed", "folder", folder.Path,
					"err", &ItemError{MessageID: ref.ID, Err: err})
			} else {
				r.Tracker.Succeed()
			}
			r.emit("export", folder.Path, 0)
		}

		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	if hadErrors {
		return model.StatusPartial, nil
	}
	return model.StatusCompleted, nil
}

// exportItem fetches, transforms and writes a single message. Errors other
// than auth expiry stay inside the per-item boundary.
func (r *Runner) exportItem(ctx context.Context, folder model.Folder, ref model.MessageRef, handle Handle) error {
	msg, err := r.Source.GetMessage(ctx, ref.ID)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	msg.FolderID = folder.ID

	if r.Opts.IncludeAttachments {
		for i := range msg.Attachments {
			data, err := r.Source.GetAttachment(ctx, msg.ID, msg.Attachments[i].ID)
			if err != nil {
				return fmt.Errorf("fetch attachment %s: %w", msg.Attachments[i].ID, err)
			}
			msg.Attachments[i].Data = data
		}
		r.Pool.Recompress(ctx, msg.Attachments)
	}

	out, err := Transform(msg, r.Opts.IncludeAttachments)
	if err != nil {
		return fmt.Errorf("transform: %w", err)
	}
	out.Folder = folder

	if err := handle.Write(out); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if r.Ledger != nil {
		if err := r.Ledger.MarkExported(ctx, folder.ID, msg.ID); err != nil {
			return fmt.Errorf("record export: %w", err)
		}
	}
	return nil
}

func (r *Runner) stopRequested(ctx context.Context) bool {
	return ctx.Err() != nil || r.Tracker.Cancelled()
}

func (r *Runner) emit(phase, folder string, found int) {
	if r.Progress == nil {
		return
	}
	stats := r.Tracker.Stats()
	if phase == "walk" && found > stats.Folders {
		stats.Folders = found
	}
	r.Progress(model.Progress{Phase: phase, Folder: folder, Stats: stats})
}
