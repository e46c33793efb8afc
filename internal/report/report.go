// Package report writes remediation reports for scrubs that left versions behind.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/input-output-hk/catalyst-forge-libs/bucketscrubber/s3types"
)

// Reason values for report entries.
const (
	ReasonError       = "error"
	ReasonUnconfirmed = "unconfirmed"
)

// Entry is one version that may still exist after the scrub.
type Entry struct {
	Key       string `json:"key"`
	VersionID string `json:"version_id"`
	Reason    string `json:"reason"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Report summarises a scrub and lists the versions needing manual attention.
type Report struct {
	ScrubID     string    `json:"scrub_id"`
	Bucket      string    `json:"bucket"`
	Prefix      string    `json:"prefix,omitempty"`
	Status      string    `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Seen        int       `json:"seen"`
	Deleted     int       `json:"deleted"`
	Errored     int       `json:"errored"`
	Unconfirmed int       `json:"unconfirmed"`
	Entries     []Entry   `json:"entries"`
}

// AddErrors appends per-target delete failures.
func (r *Report) AddErrors(errs []s3types.DeleteError) {
	for _, e := range errs {
		r.Entries = append(r.Entries, Entry{
			Key:       e.Key,
			VersionID: e.VersionID,
			Reason:    ReasonError,
			Code:      e.Code,
			Message:   e.Message,
		})
	}
}

// AddUnconfirmed appends targets the backend never reported on.
func (r *Report) AddUnconfirmed(targets []s3types.Target) {
	for _, t := range targets {
		r.Entries = append(r.Entries, Entry{
			Key:       t.Key,
			VersionID: t.VersionID,
			Reason:    ReasonUnconfirmed,
		})
	}
}

// Writer persists reports to a billy filesystem.
type Writer struct {
	fs billy.Filesystem
}

// NewWriter creates a Writer on fsys.
func NewWriter(fsys billy.Filesystem) *Writer {
	return &Writer{fs: fsys}
}

// NewOSWriter creates a Writer rooted at dir on the local disk.
func NewOSWriter(dir string) *Writer {
	return NewWriter(osfs.New(dir))
}

// Write stores r as indented JSON at path, creating parent directories.
func (w *Writer) Write(path string, r *Report) error {
	if r.Entries == nil {
		r.Entries = []Entry{}
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := w.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("report: mkdirall %q: %w", dir, err)
		}
	}
	if err := util.WriteFile(w.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("report: write %q: %w", path, err)
	}
	return nil
}

// Read loads a report written by Write.
func (w *Writer) Read(path string) (*Report, error) {
	data, err := util.ReadFile(w.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("report: %q does not exist: %w", path, err)
		}
		return nil, fmt.Errorf("report: read %q: %w", path, err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("report: decode %q: %w", path, err)
	}
	return &r, nil
}
