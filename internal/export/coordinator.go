package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/day"
	"github.com/starford/tally/internal/models"
)

// Request headers sent with every export.
const (
	HeaderExportID = "X-Tally-Export-Id"
	HeaderDigest   = "X-Tally-Payload-Sha256"
)

// DefaultTimeout bounds the webhook call.
const DefaultTimeout = 30 * time.Second

// Committer archives the active period and seeds the given day.
type Committer interface {
	ArchiveAndReseed(ctx context.Context, date string) (int64, error)
}

// SnapshotWriter keeps a local copy of each exported payload.
type SnapshotWriter interface {
	Write(name string, content []byte) error
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ExportError describes a failed transport call. It matches apperr.ErrExportFailed.
type ExportError struct {
	StatusCode int
	Status     string
	Err        error
}

func (e *ExportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("export failed: server responded with %s", e.Status)
	}
	return fmt.Sprintf("export failed: %v", e.Err)
}

func (e *ExportError) Unwrap() []error {
	if e.Err == nil {
		return []error{apperr.ErrExportFailed}
	}
	return []error{apperr.ErrExportFailed, e.Err}
}

// Result reports a completed close-period operation.
type Result struct {
	ExportID      string  `json:"export_id"`
	PeriodEndDate string  `json:"period_end_date"`
	Exported      int     `json:"exported"`
	Archived      int64   `json:"archived"`
	Delivered     bool    `json:"delivered"`
	Payload       Payload `json:"-"`
}

// Coordinator runs the export-then-archive sequence. Only one close may be
// in flight at a time.
type Coordinator struct {
	commit    Committer
	http      httpDoer
	clock     day.Clock
	timeout   time.Duration
	snapshots SnapshotWriter
	logger    *slog.Logger

	inFlight sync.Mutex

	mu sync.Mutex
	// unsettled is the digest of a payload the remote accepted but that was
	// never archived locally.
	unsettled string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c httpDoer) Option {
	return func(co *Coordinator) { co.http = c }
}

// WithClock sets the clock used to compute the period end and reseed day.
func WithClock(c day.Clock) Option {
	return func(co *Coordinator) { co.clock = c }
}

// WithTimeout bounds the webhook call.
func WithTimeout(d time.Duration) Option {
	return func(co *Coordinator) {
		if d > 0 {
			co.timeout = d
		}
	}
}

// WithSnapshots stores every successful payload through w.
func WithSnapshots(w SnapshotWriter) Option {
	return func(co *Coordinator) { co.snapshots = w }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(co *Coordinator) { co.logger = l }
}

// NewCoordinator creates a coordinator committing through commit.
func NewCoordinator(commit Committer, opts ...Option) *Coordinator {
	c := &Coordinator{
		commit:  commit,
		clock:   day.SystemClock{},
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

// Unsettled reports whether a previous export reached the remote but was
// not archived locally.
func (c *Coordinator) Unsettled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsettled != ""
}

// ClosePeriod exports entries to exportURL and, on success, archives the
// active period and seeds today. On ErrExportFailed nothing is changed and
// the call may be retried. On ErrPartialCommit the remote has the data; a
// retry with the same payload skips the network call and only re-runs the
// local commit.
//
// Once the request is sent, cancelling ctx no longer aborts the sequence.
func (c *Coordinator) ClosePeriod(ctx context.Context, exportURL string, entries []models.DailyEntry) (*Result, error) {
	exportURL = strings.TrimSpace(exportURL)
	if exportURL == "" {
		return nil, apperr.ErrMissingExportTarget
	}
	if !c.inFlight.TryLock() {
		return nil, apperr.ErrExportInProgress
	}
	defer c.inFlight.Unlock()

	today := day.TodayAt(c.clock)
	payload := BuildPayload(entries, today)
	body, digest, err := payload.encode()
	if err != nil {
		return nil, err
	}

	res := &Result{
		ExportID:      uuid.NewString(),
		PeriodEndDate: today,
		Exported:      len(entries),
		Payload:       payload,
	}
	logger := c.logger.With(slog.String("export_id", res.ExportID))

	c.mu.Lock()
	alreadySent := c.unsettled != "" && c.unsettled == digest
	c.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	if alreadySent {
		logger.Warn("export: payload already delivered, retrying local commit only")
	} else {
		if err := c.send(detached, exportURL, res.ExportID, digest, body); err != nil {
			logger.Warn("export: send failed", slog.String("error", err.Error()))
			return nil, err
		}
		res.Delivered = true
		logger.Info("export: delivered", slog.Int("entries", len(entries)), slog.String("period_end", today))
	}

	archived, err := c.commit.ArchiveAndReseed(detached, today)
	if err != nil {
		c.mu.Lock()
		c.unsettled = digest
		c.mu.Unlock()
		logger.Error("export: local archive failed after delivery",
			slog.String("digest", digest), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", apperr.ErrPartialCommit, err)
	}

	c.mu.Lock()
	c.unsettled = ""
	c.mu.Unlock()
	res.Archived = archived

	if c.snapshots != nil {
		if err := c.snapshots.Write(snapshotName(today, res.ExportID), body); err != nil {
			logger.Warn("export: snapshot failed", slog.String("error", err.Error()))
		}
	}
	return res, nil
}

func (c *Coordinator) send(ctx context.Context, url, exportID, digest string, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &ExportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderExportID, exportID)
	req.Header.Set(HeaderDigest, digest)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &ExportError{Err: fmt.Errorf("timed out after %s: %w", c.timeout, err)}
		}
		return &ExportError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		status := resp.Status
		if status == "" {
			status = fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return &ExportError{StatusCode: resp.StatusCode, Status: status}
	}
	return nil
}

func snapshotName(periodEnd, exportID string) string {
	return fmt.Sprintf("period-%s-%s.json", periodEnd, exportID[:8])
}
