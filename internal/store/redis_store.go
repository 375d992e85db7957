package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hik-access-bridge/internal/models"

	"go.uber.org/zap"
)

// RedisEventStore keeps the slot under one key so several bridge processes share it.
type RedisEventStore struct {
	kv     KV
	key    string
	logger *zap.Logger
	now    func() time.Time
}

func NewRedisEventStore(kv KV, key string, logger *zap.Logger) *RedisEventStore {
	return &RedisEventStore{
		kv:     kv,
		key:    key,
		logger: logger.Named("event_store").With(zap.String("backend", "redis")),
		now:    time.Now,
	}
}

func (s *RedisEventStore) Write(ctx context.Context, event models.AccessEvent) error {
	data, err := json.Marshal(models.EventRecord{Event: event, ReceivedAt: s.now()})
	if err != nil {
		return fmt.Errorf("failed to encode event record: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(data), 0); err != nil {
		return fmt.Errorf("failed to store event record: %w", err)
	}
	return nil
}

func (s *RedisEventStore) Read(ctx context.Context) (*models.EventRecord, error) {
	val, err := s.kv.Get(ctx, s.key)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load event record: %w", err)
	}

	var rec models.EventRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		s.logger.Warn("Discarding unreadable event record", zap.String("key", s.key), zap.Error(err))
		return nil, nil
	}
	return &rec, nil
}
