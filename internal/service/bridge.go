package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"hik-access-bridge/common/database"
	commonmqtt "hik-access-bridge/common/mqtt"
	commonredis "hik-access-bridge/common/redis"
	"hik-access-bridge/internal/config"
	"hik-access-bridge/internal/device"
	"hik-access-bridge/internal/face"
	"hik-access-bridge/internal/media"
	"hik-access-bridge/internal/metrics"
	"hik-access-bridge/internal/normalizer"
	"hik-access-bridge/internal/publisher"
	"hik-access-bridge/internal/radar"
	"hik-access-bridge/internal/reconcile"
	"hik-access-bridge/internal/repository"
	"hik-access-bridge/internal/store"

	"go.uber.org/zap"
)

// BridgeService owns every long-lived component of the bridge. The HTTP surface is
// assembled by the caller from the exported components and handed to Start.
type BridgeService struct {
	config *config.Config
	logger *zap.Logger

	db    *sql.DB
	redis *commonredis.Client
	mqtt  *commonmqtt.Client

	Device     *device.Client
	Store      store.EventStore
	Media      *media.Storage
	Roster     CustomerLister
	Normalizer *normalizer.Normalizer
	Publisher  *publisher.EventPublisher
	Progress   *publisher.ProgressStream
	Radar      *radar.Radar
	Faces      *face.Manager
	Sync       *SyncJob

	server *Server
	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBridgeService connects the optional backends (roster database, Redis, MQTT) and
// builds the components. Optional backends that are disabled stay nil.
func NewBridgeService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *BridgeService, err error) {
	s := &BridgeService{config: cfg, logger: logger}
	s.runCtx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	defer func() {
		if err != nil {
			s.cancel()
			s.closeBackends()
		}
	}()

	if cfg.RedisEnabled {
		s.redis = commonredis.NewRedisClient(&cfg.Redis)
		if err = commonredis.Ping(ctx, s.redis); err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	if cfg.MQTT.Enabled {
		var client *commonmqtt.Client
		client, err = commonmqtt.NewClient(&cfg.MQTT.MQTTConfig, logger)
		if err != nil {
			return nil, err
		}
		s.mqtt = client
	}

	var roster CustomerLister
	if cfg.DBEnabled {
		var db *sql.DB
		db, err = database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		s.db = db
		roster = repository.NewCustomerRepository(db, logger)
	} else {
		logger.Warn("Roster database disabled, using an empty in-memory roster")
		roster = repository.NewMemoryCustomerRepository(nil)
	}
	s.Roster = repository.NewCachedCustomerRepository(roster, cfg.RosterCache.Size, cfg.RosterCache.TTL)

	s.Store, err = newEventStore(cfg, s.redis, logger)
	if err != nil {
		return nil, err
	}

	s.Media, err = media.NewStorage(cfg.HTTP.UploadsDir, cfg.HTTP.PublicBaseURL, logger)
	if err != nil {
		return nil, err
	}

	s.Device = NewDeviceClient(cfg, logger)
	s.Normalizer = normalizer.New(logger)
	s.Publisher = newEventPublisher(cfg, s.redis, s.mqtt, logger)

	s.Radar = radar.New(s.Device, RadarOptions(cfg), logger)
	s.Faces = face.NewManager(s.Device, s.Media, face.Options{
		Attempts:     cfg.Face.Attempts,
		Backoff:      cfg.Face.Backoff,
		CleanupDelay: cfg.Face.CleanupDelay,
	}, logger)

	var sink ProgressSink
	if s.redis != nil {
		s.Progress = publisher.NewProgressStream(s.redis, cfg.Streams.SyncProgress, cfg.Streams.MaxLen, logger)
		sink = s.Progress
	}
	engine := reconcile.NewEngine(s.Device, EngineOptions(cfg), logger)
	s.Sync = NewSyncJob(engine, s.Roster, sink, logger)

	return s, nil
}

// NewDeviceClient device client with the configured auth scheme and metrics.
func NewDeviceClient(cfg *config.Config, logger *zap.Logger) *device.Client {
	var creds device.Credentials = device.DigestAuth{User: cfg.Device.User, Password: cfg.Device.Password}
	if cfg.Device.AuthScheme == "basic" {
		creds = device.BasicAuth{User: cfg.Device.User, Password: cfg.Device.Password}
	}
	return device.NewClient(device.Options{
		BaseURL:     cfg.Device.BaseURL,
		Timeout:     cfg.Device.Timeout,
		Credentials: creds,
		FDID:        cfg.Face.FDID,
		FaceLibType: cfg.Face.FaceLibType,
		Observer:    metrics.DeviceObserver{},
	}, logger)
}

// RadarOptions maps the radar section; match "code" waits for one event code only.
func RadarOptions(cfg *config.Config) radar.Options {
	var match radar.Match = radar.MatchAny
	if cfg.Radar.Match == "code" {
		match = radar.MatchCode(cfg.Radar.MatchCode)
	}
	return radar.Options{
		Attempts:   cfg.Radar.Attempts,
		Delay:      cfg.Radar.Delay,
		MaxResults: cfg.Radar.MaxResults,
		Start:      cfg.Radar.WindowStart,
		End:        cfg.Radar.WindowEnd,
		Match:      match,
	}
}

// EngineOptions maps the sync section.
func EngineOptions(cfg *config.Config) reconcile.Options {
	return reconcile.Options{
		BatchSize:    cfg.Sync.BatchSize,
		BatchPause:   cfg.Sync.BatchPause,
		FailurePause: cfg.Sync.FailurePause,
		Defaults: reconcile.RecordDefaults{
			NameMaxLength: cfg.Sync.NameMaxLength,
			ValidBegin:    cfg.Sync.DefaultBegin,
			ValidEnd:      cfg.Sync.DefaultEnd,
		},
	}
}

func newEventStore(cfg *config.Config, rdb *commonredis.Client, logger *zap.Logger) (store.EventStore, error) {
	switch cfg.EventStore.Backend {
	case "memory":
		return store.NewMemoryEventStore(), nil
	case "file":
		return store.NewFileEventStore(cfg.EventStore.FilePath, logger), nil
	case "redis":
		if rdb == nil {
			return nil, errors.New("event store backend redis requires a redis connection")
		}
		return store.NewRedisEventStore(store.NewRedisKV(rdb), cfg.EventStore.RedisKey, logger), nil
	}
	return nil, fmt.Errorf("unknown event store backend %q", cfg.EventStore.Backend)
}

func newEventPublisher(cfg *config.Config, rdb *commonredis.Client, mq *commonmqtt.Client, logger *zap.Logger) *publisher.EventPublisher {
	var stream commonredis.StreamAdder
	if rdb != nil {
		stream = rdb
	}
	var topics publisher.MQTTPublisher
	if mq != nil {
		topics = mq
	}
	return publisher.NewEventPublisher(stream, topics, publisher.EventOptions{
		Stream:      cfg.Streams.Events,
		MaxLen:      cfg.Streams.MaxLen,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		QoS:         cfg.MQTT.QoS,
	}, logger)
}

// HealthChecks one probe per connected backend, for /health.
func (s *BridgeService) HealthChecks() map[string]func(context.Context) error {
	checks := make(map[string]func(context.Context) error)
	if s.redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return commonredis.Ping(ctx, s.redis)
		}
	}
	if s.mqtt != nil {
		checks["mqtt"] = func(context.Context) error {
			if !s.mqtt.IsConnected() {
				return errors.New("broker connection lost")
			}
			return nil
		}
	}
	return checks
}

// RunContext lives until Stop; background sync runs are bound to it.
func (s *BridgeService) RunContext() context.Context { return s.runCtx }

// Start serves handler and runs the background publishers until Stop.
func (s *BridgeService) Start(handler http.Handler) error {
	if s.Progress != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.Progress.Run(s.runCtx)
		}()
	}

	s.server = NewServer(s.config.HTTP.Addr, metrics.Middleware(handler), s.logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()

	s.logger.Info("Bridge service started",
		zap.String("device", s.config.Device.BaseURL),
		zap.String("event_store", s.config.EventStore.Backend),
		zap.Bool("redis", s.redis != nil),
		zap.Bool("mqtt", s.mqtt != nil),
	)
	return nil
}

// Stop shuts the HTTP server down, cancels a running sync and releases the backends.
func (s *BridgeService) Stop(ctx context.Context) error {
	var stopErr error
	if s.server != nil {
		stopErr = s.server.Stop(ctx)
	}
	s.cancel()
	s.Sync.Wait()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for background workers")
	}

	s.closeBackends()
	s.logger.Info("Bridge service stopped")
	return stopErr
}

func (s *BridgeService) closeBackends() {
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	if s.redis != nil {
		if err := commonredis.Close(s.redis); err != nil {
			s.logger.Warn("Failed to close redis", zap.Error(err))
		}
	}
	if err := database.Close(s.db); err != nil {
		s.logger.Warn("Failed to close database", zap.Error(err))
	}
}
