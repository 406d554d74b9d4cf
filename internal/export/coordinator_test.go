package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/tally/internal/apperr"
	"github.com/starford/tally/internal/day"
	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/store"
	"github.com/starford/tally/internal/testutil"
)

var fixedNow = time.Date(2024, time.January, 10, 15, 0, 0, 0, time.Local)

// seedPeriod creates 2024-01-01..2024-01-03 with assorted notes and scores.
func seedPeriod(t *testing.T, db *store.DB) []models.DailyEntry {
	t.Helper()
	ctx := context.Background()
	testutil.Seed(t, db, "2024-01-01", "2024-01-02", "2024-01-03")
	_ = db.UpdateNotes(ctx, "2024-01-01", "slept badly")
	_ = db.UpdateScore(ctx, "2024-01-01", "meditate", models.ScoreFull)
	_ = db.UpdateScore(ctx, "2024-01-02", "exercise", models.ScorePartial)
	_ = db.UpdateNotes(ctx, "2024-01-03", "good day")
	_ = db.UpdateScore(ctx, "2024-01-03", "meditate", models.ScoreNone)

	entries, err := db.ActiveEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	return entries
}

type memSnapshots struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memSnapshots) Write(name string, content []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = map[string][]byte{}
	}
	m.files[name] = content
	return nil
}

type failingCommitter struct {
	calls atomic.Int32
	err   error
	next  Committer
}

func (f *failingCommitter) ArchiveAndReseed(ctx context.Context, date string) (int64, error) {
	if f.calls.Add(1) == 1 {
		return 0, f.err
	}
	return f.next.ArchiveAndReseed(ctx, date)
}

func TestBuildPayload(t *testing.T) {
	entries := []models.DailyEntry{
		{Date: "2024-01-01", Notes: "a", Scores: models.Scores{"x": models.ScoreFull}, IsArchived: false},
		{Date: "2024-01-02", Notes: "", Scores: nil},
	}
	p := BuildPayload(entries, "2024-01-02")

	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"period_end_date":"2024-01-02","entries":[{"date":"2024-01-01","notes":"a","scores":{"x":1}},{"date":"2024-01-02","notes":"","scores":{}}]}`
	if string(raw) != want {
		t.Errorf("payload =\n%s\nwant\n%s", raw, want)
	}
}

func TestClosePeriod_EndToEnd(t *testing.T) {
	db := testutil.TestDB(t)
	entries := seedPeriod(t, db)

	var (
		gotBody    Payload
		gotHeaders http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	snaps := &memSnapshots{}
	co := NewCoordinator(db, WithClock(&day.FixedClock{T: fixedNow}), WithSnapshots(snaps))

	res, err := co.ClosePeriod(context.Background(), srv.URL, entries)
	if err != nil {
		t.Fatalf("ClosePeriod: %v", err)
	}

	if gotHeaders.Get("Content-Type") != "application/json" {
		t.Errorf("content-type = %q", gotHeaders.Get("Content-Type"))
	}
	if gotHeaders.Get(HeaderExportID) != res.ExportID {
		t.Errorf("export id header = %q, want %q", gotHeaders.Get(HeaderExportID), res.ExportID)
	}
	if gotBody.PeriodEndDate != "2024-01-10" {
		t.Errorf("period_end_date = %q", gotBody.PeriodEndDate)
	}
	wantDates := []string{"2024-01-01", "2024-01-02", "2024-01-03"}
	if len(gotBody.Entries) != 3 {
		t.Fatalf("payload entries = %d", len(gotBody.Entries))
	}
	for i, e := range gotBody.Entries {
		if e.Date != wantDates[i] {
			t.Errorf("entries[%d].date = %s, want %s", i, e.Date, wantDates[i])
		}
	}
	if gotBody.Entries[0].Notes != "slept badly" || gotBody.Entries[0].Scores["meditate"] != models.ScoreFull {
		t.Errorf("entry 0 = %+v", gotBody.Entries[0])
	}
	if gotBody.Entries[1].Scores["exercise"] != models.ScorePartial {
		t.Errorf("entry 1 = %+v", gotBody.Entries[1])
	}

	active, _ := db.ActiveEntries(context.Background())
	if len(active) != 1 {
		t.Fatalf("active after close = %d, want 1", len(active))
	}
	if active[0].Date != "2024-01-10" || active[0].Notes != "" || len(active[0].Scores) != 0 {
		t.Errorf("fresh entry = %+v", active[0])
	}
	if res.Archived != 3 || !res.Delivered {
		t.Errorf("result = %+v", res)
	}
	if len(snaps.files) != 1 {
		t.Errorf("snapshots = %d, want 1", len(snaps.files))
	}
}

func TestClosePeriod_MissingURL(t *testing.T) {
	db := testutil.TestDB(t)
	entries := seedPeriod(t, db)
	co := NewCoordinator(db)

	_, err := co.ClosePeriod(context.Background(), "   ", entries)
	if !errors.Is(err, apperr.ErrMissingExportTarget) {
		t.Errorf("err = %v, want ErrMissingExportTarget", err)
	}
}

func TestClosePeriod_HTTPFailureLeavesEntries(t *testing.T) {
	db := testutil.TestDB(t)
	before := seedPeriod(t, db)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	co := NewCoordinator(db, WithClock(&day.FixedClock{T: fixedNow}))
	_, err := co.ClosePeriod(context.Background(), srv.URL, before)
	if !errors.Is(err, apperr.ErrExportFailed) {
		t.Fatalf("err = %v, want ErrExportFailed", err)
	}
	var exportErr *ExportError
	if !errors.As(err, &exportErr) || exportErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("export error = %+v", exportErr)
	}

	after, _ := db.ActiveEntries(context.Background())
	if !reflect.DeepEqual(before, after) {
		t.Errorf("active entries changed:\nbefore %+v\nafter  %+v", before, after)
	}
}

func TestClosePeriod_NetworkFailureLeavesEntries(t *testing.T) {
	db := testutil.TestDB(t)
	before := seedPeriod(t, db)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	co := NewCoordinator(db, WithClock(&day.FixedClock{T: fixedNow}))
	_, err := co.ClosePeriod(context.Background(), url, before)
	if !errors.Is(err, apperr.ErrExportFailed) {
		t.Fatalf("err = %v, want ErrExportFailed", err)
	}
	after, _ := db.ActiveEntries(context.Background())
	if !reflect.DeepEqual(before, after) {
		t.Error("active entries changed after network failure")
	}
}

func TestClosePeriod_TimeoutIsFailure(t *testing.T) {
	db := testutil.TestDB(t)
	before := seedPeriod(t, db)

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	co := NewCoordinator(db, WithClock(&day.FixedClock{T: fixedNow}), WithTimeout(50*time.Millisecond))
	_, err := co.ClosePeriod(context.Background(), srv.URL, before)
	if !errors.Is(err, apperr.ErrExportFailed) {
		t.Fatalf("err = %v, want ErrExportFailed", err)
	}
	after, _ := db.ActiveEntries(context.Background())
	if len(after) != len(before) {
		t.Error("entries archived after timeout")
	}
}

func TestClosePeriod_RetryAfterFailureSucceeds(t *testing.T) {
	db := testutil.TestDB(t)
	entries := seedPeriod(t, db)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	co := NewCoordinator(db, WithClock(&day.FixedClock{T: fixedNow}))
	if _, err := co.ClosePeriod(context.Background(), srv.URL, entries); err == nil {
		t.Fatal("first attempt should fail")
	}
	if _, err := co.ClosePeriod(context.Background(), srv.URL, entries); err != nil {
		t.Fatalf("retry: %v", err)
	}
	active, _ := db.ActiveEntries(context.Background())
	if len(active) != 1 || active[0].Date != "2024-01-10" {
		t.Errorf("active = %+v", active)
	}
}

func TestClosePeriod_PartialCommitRetrySkipsResend(t *testing.T) {
	db := testutil.TestDB(t)
	entries := seedPeriod(t, db)

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	committer := &failingCommitter{err: errors.New("disk full"), next: db}
	co := NewCoordinator(committer, WithClock(&day.FixedClock{T: fixedNow}))

	_, err := co.ClosePeriod(context.Background(), srv.URL, entries)
	if !errors.Is(err, apperr.ErrPartialCommit) {
		t.Fatalf("err = %v, want ErrPartialCommit", err)
	}
	if !co.Unsettled() {
		t.Error("coordinator should remember the unsettled export")
	}

	res, err := co.ClosePeriod(context.Background(), srv.URL, entries)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("webhook called %d times, want 1", calls.Load())
	}
	if res.Delivered {
		t.Error("retry should not report a new delivery")
	}
	if co.Unsettled() {
		t.Error("unsettled flag not cleared")
	}
}

func TestClosePeriod_SingleFlight(t *testing.T) {
	db := testutil.TestDB(t)
	entries := seedPeriod(t, db)

	started := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	co := NewCoordinator(db, WithClock(&day.FixedClock{T: fixedNow}))

	done := make(chan error, 1)
	go func() {
		_, err := co.ClosePeriod(context.Background(), srv.URL, entries)
		done <- err
	}()
	<-started

	_, err := co.ClosePeriod(context.Background(), srv.URL, entries)
	if !errors.Is(err, apperr.ErrExportInProgress) {
		t.Errorf("second close err = %v, want ErrExportInProgress", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first close: %v", err)
	}
}

func TestClosePeriod_CancelledContextAfterSendStillCommits(t *testing.T) {
	db := testutil.TestDB(t)
	entries := seedPeriod(t, db)

	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cancel()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	co := NewCoordinator(db, WithClock(&day.FixedClock{T: fixedNow}))
	if _, err := co.ClosePeriod(ctx, srv.URL, entries); err != nil {
		t.Fatalf("ClosePeriod: %v", err)
	}
	active, _ := db.ActiveEntries(context.Background())
	if len(active) != 1 {
		t.Errorf("active = %d, want 1", len(active))
	}
}
