package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hik-access-bridge/internal/models"

	"go.uber.org/zap"
)

// FileEventStore keeps the slot in a JSON file that is replaced with write-temp-then-rename,
// so a concurrent reader sees either the previous or the new record.
type FileEventStore struct {
	path   string
	logger *zap.Logger
	now    func() time.Time
	mu     sync.Mutex // serialises writers within this process
}

func NewFileEventStore(path string, logger *zap.Logger) *FileEventStore {
	return &FileEventStore{
		path:   path,
		logger: logger.Named("event_store").With(zap.String("backend", "file")),
		now:    time.Now,
	}
}

func (s *FileEventStore) Write(_ context.Context, event models.AccessEvent) error {
	data, err := json.Marshal(models.EventRecord{Event: event, ReceivedAt: s.now()})
	if err != nil {
		return fmt.Errorf("failed to encode event record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create event store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".last_event-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace event record: %w", err)
	}
	return nil
}

// Read treats a missing or undecodable file as an empty slot.
func (s *FileEventStore) Read(_ context.Context) (*models.EventRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read event record: %w", err)
	}

	var rec models.EventRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("Discarding unreadable event record", zap.String("path", s.path), zap.Error(err))
		return nil, nil
	}
	return &rec, nil
}
