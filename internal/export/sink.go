package export

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-mbox"
	"github.com/gofrs/flock"

	"mailferry/internal/model"
	"mailferry/internal/util"
)

// Handle receives the outputs of one folder. Write may be called zero or
// more times between Open and Close; Close flushes and releases resources
// and must be called even when the run is cancelled or fails.
type Handle interface {
	Write(out *Output) error
	Close() error
}

// Sink opens one Handle per folder.
type Sink interface {
	Open(folder model.Folder) (Handle, error)
}

// folderDir maps a folder onto a directory path under root. With hierarchy
// preservation each path segment is sanitized separately; otherwise
// everything lands in root and the folder only contributes a file name.
func folderDir(root string, folder model.Folder, preserveHierarchy bool) string {
	if !preserveHierarchy {
		return root
	}
	parts := strings.Split(folder.Path, "/")
	for i, p := range parts {
		parts[i] = util.SanitizeName(p)
	}
	return filepath.Join(append([]string{root}, parts...)...)
}

func folderBase(folder model.Folder, preserveHierarchy bool) string {
	if preserveHierarchy {
		return util.SanitizeName(folder.Name)
	}
	return util.SanitizeName(strings.ReplaceAll(folder.Path, "/", "_"))
}

// MboxSink appends every message of a folder to a single growing mbox
// archive. The archive is guarded with an advisory file lock so concurrent
// processes cannot interleave records; the lock is held from Open to Close
// and buffered writes are flushed before it is released.
type MboxSink struct {
	Root              string
	PreserveHierarchy bool
}

func (s *MboxSink) Open(folder model.Folder) (Handle, error) {
	dir := folderDir(s.Root, folder, s.PreserveHierarchy)
	if s.PreserveHierarchy {
		dir = filepath.Dir(dir) // the archive sits next to the folder's directory
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	path := filepath.Join(dir, folderBase(folder, s.PreserveHierarchy)+".mbox")

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("lock archive %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	bw := bufio.NewWriter(f)
	return &mboxHandle{f: f, bw: bw, mw: mbox.NewWriter(bw), lock: lock}, nil
}

type mboxHandle struct {
	f    *os.File
	bw   *bufio.Writer
	mw   *mbox.Writer
	lock *flock.Flock
}

func (h *mboxHandle) Write(out *Output) error {
	w, err := h.mw.CreateMessage(out.From, out.Date)
	if err != nil {
		return fmt.Errorf("create mbox record: %w", err)
	}
	if _, err := w.Write(out.Raw); err != nil {
		return fmt.Errorf("write mbox record: %w", err)
	}
	// The message is recorded in the ledger as soon as Write returns, so
	// the record has to be on disk by then, not at Close.
	if err := h.bw.Flush(); err != nil {
		return fmt.Errorf("flush mbox record: %w", err)
	}
	return nil
}

// Close flushes buffered records before the lock is released so an aborted
// run never leaves a truncated archive behind the lock.
func (h *mboxHandle) Close() error {
	var errs []error
	if err := h.mw.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := h.bw.Flush(); err != nil {
		errs = append(errs, err)
	}
	if err := h.f.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := h.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// EmlSink writes one .eml file per message under the folder's directory.
type EmlSink struct {
	Root              string
	PreserveHierarchy bool
}

func (s *EmlSink) Open(folder model.Folder) (Handle, error) {
	dir := folderDir(s.Root, folder, s.PreserveHierarchy)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create message directory: %w", err)
	}
	return &emlHandle{dir: dir}, nil
}

type emlHandle struct {
	dir string
}

func (h *emlHandle) Write(out *Output) error {
	path := filepath.Join(h.dir, util.SanitizeName(out.MessageID)+".eml")
	if err := os.WriteFile(path, out.Raw, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (h *emlHandle) Close() error { return nil }

// MultiSink fans out to several sinks. A write failure in one artifact does
// not prevent the attempt on the others; all errors are joined.
type MultiSink struct {
	Sinks []Sink
}

func (s *MultiSink) Open(folder model.Folder) (Handle, error) {
	handles := make([]Handle, 0, len(s.Sinks))
	for _, sink := range s.Sinks {
		h, err := sink.Open(folder)
		if err != nil {
			for _, open := range handles {
				open.Close()
			}
			return nil, err
		}
		handles = append(handles, h)
	}
	return &multiHandle{handles: handles}, nil
}

type multiHandle struct {
	handles []Handle
}

func (h *multiHandle) Write(out *Output) error {
	var errs []error
	for _, hh := range h.handles {
		if err := hh.Write(out); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *multiHandle) Close() error {
	var errs []error
	for _, hh := range h.handles {
		if err := hh.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
