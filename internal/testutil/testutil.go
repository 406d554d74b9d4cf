// Package testutil provides shared test helpers for databases, snapshot
// directories and webhook stubs.
package testutil

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/starford/tally/internal/snapshot"
	"github.com/starford/tally/internal/store"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "tally-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Seed creates an empty active entry for each date.
func Seed(t *testing.T, db store.PeriodStore, dates ...string) {
	t.Helper()
	for _, d := range dates {
		if err := db.EnsureTodayRow(context.Background(), d); err != nil {
			t.Fatalf("seed %s: %v", d, err)
		}
	}
}

// TestSnapshots creates a temporary export snapshot directory.
func TestSnapshots(t *testing.T) (string, *snapshot.Dir) {
	t.Helper()
	dir := t.TempDir()
	snaps, err := snapshot.NewDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, snaps
}

// Webhook is an httptest server that records request bodies and answers
// with a configurable status code.
type Webhook struct {
	*httptest.Server

	mu     sync.Mutex
	status int
	bodies [][]byte
}

// NewWebhook starts a webhook stub answering 200 until SetStatus is called.
func NewWebhook(t *testing.T) *Webhook {
	t.Helper()
	w := &Webhook{status: http.StatusOK}
	w.Server = httptest.NewServer(http.HandlerFunc(w.handle))
	t.Cleanup(w.Close)
	return w
}

func (w *Webhook) handle(rw http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	w.mu.Lock()
	w.bodies = append(w.bodies, body)
	status := w.status
	w.mu.Unlock()
	rw.WriteHeader(status)
}

// SetStatus changes the status code of subsequent responses.
func (w *Webhook) SetStatus(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.status = code
}

// Bodies returns a copy of every request body received so far.
func (w *Webhook) Bodies() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.bodies...)
}
