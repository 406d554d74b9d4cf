// Package snapshot keeps a local copy of every exported period payload.
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Info describes one stored snapshot.
type Info struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
}

// Dir stores snapshots as flat .json files under a single directory.
type Dir struct {
	root string // absolute path
}

// NewDir creates the directory if needed and returns a Dir rooted at it.
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("snapshot: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: mkdir: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("snapshot: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("snapshot: root is not a directory: %s", abs)
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute directory path.
func (d *Dir) Root() string { return d.root }

// safePath accepts only plain file names; snapshots never live in subdirectories.
func (d *Dir) safePath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("snapshot: invalid name %q", name)
	}
	return filepath.Join(d.root, name), nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (d *Dir) Write(name string, content []byte) error {
	abs, err := d.safePath(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.root, ".tally-tmp-*")
	if err != nil {
		return fmt.Errorf("snapshot: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("snapshot: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("snapshot: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("snapshot: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("snapshot: rename: %w", err)
	}
	success = true
	return nil
}

// Read returns the raw payload of a snapshot.
func (d *Dir) Read(name string) ([]byte, error) {
	abs, err := d.safePath(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %s: %w", name, err)
	}
	return data, nil
}

// List returns every snapshot, newest first.
func (d *Dir) List() ([]Info, error) {
	dirents, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list: %w", err)
	}
	out := make([]Info, 0, len(dirents))
	for _, de := range dirents {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		info, err := de.Info()
		if err != nil {
			return nil, fmt.Errorf("snapshot: stat %s: %w", de.Name(), err)
		}
		data, err := os.ReadFile(filepath.Join(d.root, de.Name()))
		if err != nil {
			return nil, fmt.Errorf("snapshot: read %s: %w", de.Name(), err)
		}
		out = append(out, Info{
			Name:      de.Name(),
			Size:      info.Size(),
			Checksum:  checksum(data),
			CreatedAt: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

// Prune removes all but the newest keep snapshots and returns how many were deleted.
func (d *Dir) Prune(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	items, err := d.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, it := range items[min(keep, len(items)):] {
		if err := os.Remove(filepath.Join(d.root, it.Name)); err != nil {
			return removed, fmt.Errorf("snapshot: delete %s: %w", it.Name, err)
		}
		removed++
	}
	return removed, nil
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
