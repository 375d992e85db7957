package publisher

import (
	"context"

	commonredis "hik-access-bridge/common/redis"
	"hik-access-bridge/internal/models"

	"go.uber.org/zap"
)

const progressBuffer = 64

// ProgressStream forwards sync progress to a Redis stream from its own goroutine, so the
// reconciliation loop never waits on Redis. Updates that do not fit the buffer are dropped.
type ProgressStream struct {
	client  commonredis.StreamAdder
	stream  string
	maxLen  int64
	updates chan models.SyncProgress
	logger  *zap.Logger
}

func NewProgressStream(client commonredis.StreamAdder, stream string, maxLen int64, logger *zap.Logger) *ProgressStream {
	return &ProgressStream{
		client:  client,
		stream:  stream,
		maxLen:  maxLen,
		updates: make(chan models.SyncProgress, progressBuffer),
		logger:  logger.Named("progress_stream"),
	}
}

// Offer never blocks; false means the update was dropped.
func (s *ProgressStream) Offer(p models.SyncProgress) bool {
	select {
	case s.updates <- p:
		return true
	default:
		return false
	}
}

// Run drains updates until ctx is done.
func (s *ProgressStream) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-s.updates:
			if _, err := commonredis.PublishJSONToStream(ctx, s.client, s.stream, s.maxLen, p); err != nil {
				s.logger.Warn("Failed to publish sync progress", zap.String("stream", s.stream), zap.Error(err))
			}
		}
	}
}
