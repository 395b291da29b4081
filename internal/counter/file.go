package counter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// isoMillis matches the millisecond UTC timestamps the counter file has always used.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type fileData struct {
	Count       int64  `json:"count"`
	LastUpdated string `json:"lastUpdated"`
}

// FileStore keeps the counter in a small pretty-printed JSON file.
// Unreadable or corrupt content reads as zero.
type FileStore struct {
	Path   string
	Clock  func() time.Time
	Logger *logging.Logger

	mu sync.Mutex
}

// NewFileStore returns a store writing to path, or DefaultPath when empty.
func NewFileStore(path string, logger *logging.Logger) *FileStore {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath
	}
	return &FileStore{Path: filepath.Clean(path), Logger: logger}
}

// Get returns the current value.
func (f *FileStore) Get(_ context.Context) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensure(); err != nil {
		f.warn("Failed to prepare fusion count file", err)
		return Snapshot{}, nil
	}
	snap, err := f.read()
	if err != nil {
		f.warn("Failed to read fusion count", err)
		return Snapshot{}, nil
	}
	return snap, nil
}

// Increment adds one and persists the result.
func (f *FileStore) Increment(_ context.Context) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensure(); err != nil {
		return Snapshot{}, err
	}
	current, err := f.read()
	if err != nil {
		f.warn("Resetting unreadable fusion count", err)
		current = Snapshot{}
	}

	next := Snapshot{Count: current.Count + 1, LastUpdated: f.now()}
	if err := f.write(next); err != nil {
		return Snapshot{}, err
	}
	return next, nil
}

// Check verifies the data file can be created and read.
func (f *FileStore) Check(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.ensure(); err != nil {
		return err
	}
	_, err := os.Stat(f.Path)
	return err
}

func (f *FileStore) ensure() error {
	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return fmt.Errorf("create counter directory: %w", err)
	}
	if _, err := os.Stat(f.Path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat counter file: %w", err)
	}
	return f.write(Snapshot{LastUpdated: f.now()})
}

func (f *FileStore) read() (Snapshot, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read counter file: %w", err)
	}
	var raw fileData
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("decode counter file: %w", err)
	}
	snap := Snapshot{Count: raw.Count}
	if raw.LastUpdated != "" {
		if ts, err := time.Parse(time.RFC3339, raw.LastUpdated); err == nil {
			snap.LastUpdated = ts.UTC()
		}
	}
	return snap, nil
}

// write replaces the file atomically via a temp file in the same directory.
func (f *FileStore) write(snap Snapshot) error {
	data, err := json.MarshalIndent(fileData{
		Count:       snap.Count,
		LastUpdated: snap.LastUpdated.UTC().Format(isoMillis),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode counter file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".fusion-count-*")
	if err != nil {
		return fmt.Errorf("create counter temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write counter file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close counter file: %w", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace counter file: %w", err)
	}
	return nil
}

func (f *FileStore) now() time.Time {
	if f.Clock != nil {
		return f.Clock().UTC()
	}
	return time.Now().UTC()
}

func (f *FileStore) warn(msg string, err error) {
	if f.Logger != nil {
		f.Logger.Warn(msg, zap.String("path", f.Path), zap.Error(err))
	}
}
