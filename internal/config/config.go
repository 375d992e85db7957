package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"hik-access-bridge/common/config"

	"gopkg.in/yaml.v3"
)

// Config bridge service configuration.
// Precedence: built-in defaults, then the YAML file named by BRIDGE_CONFIG_FILE, then environment.
type Config struct {
	HTTP struct {
		Addr          string `yaml:"addr"`
		PublicBaseURL string `yaml:"public_base_url"` // how the device reaches /uploads
		UploadsDir    string `yaml:"uploads_dir"`
	} `yaml:"http"`

	Device DeviceConfig `yaml:"device"`

	DBEnabled bool                  `yaml:"db_enabled"`
	Database  config.DatabaseConfig `yaml:"database"`

	RedisEnabled bool               `yaml:"redis_enabled"`
	Redis        config.RedisConfig `yaml:"redis"`

	MQTT struct {
		config.MQTTConfig `yaml:",inline"`
		Enabled           bool   `yaml:"enabled"`
		TopicPrefix       string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`

	EventStore struct {
		Backend  string `yaml:"backend"` // memory | file | redis
		FilePath string `yaml:"file_path"`
		RedisKey string `yaml:"redis_key"`
	} `yaml:"event_store"`

	Streams struct {
		Events       string `yaml:"events"`
		SyncProgress string `yaml:"sync_progress"`
		MaxLen       int64  `yaml:"max_len"`
	} `yaml:"streams"`

	Radar RadarConfig `yaml:"radar"`
	Sync  SyncConfig  `yaml:"sync"`
	Face  FaceConfig  `yaml:"face"`

	RosterCache struct {
		Size int           `yaml:"size"`
		TTL  time.Duration `yaml:"ttl"`
	} `yaml:"roster_cache"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// DeviceConfig access-control terminal connection.
type DeviceConfig struct {
	BaseURL    string        `yaml:"base_url"`
	User       string        `yaml:"user"`
	Password   string        `yaml:"password"`
	AuthScheme string        `yaml:"auth_scheme"` // digest | basic
	Timeout    time.Duration `yaml:"timeout"`
}

// RadarConfig poll-until-new-event settings.
type RadarConfig struct {
	Attempts    int           `yaml:"attempts"`
	Delay       time.Duration `yaml:"delay"`
	MaxResults  int           `yaml:"max_results"`
	Match       string        `yaml:"match"` // any | code
	MatchCode   int           `yaml:"match_code"`
	WindowStart string        `yaml:"window_start"`
	WindowEnd   string        `yaml:"window_end"`
}

// SyncConfig roster reconciliation pacing and record defaults.
type SyncConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	BatchPause    time.Duration `yaml:"batch_pause"`
	FailurePause  time.Duration `yaml:"failure_pause"`
	NameMaxLength int           `yaml:"name_max_length"`
	DefaultBegin  string        `yaml:"default_begin"`
	DefaultEnd    string        `yaml:"default_end"`
}

// FaceConfig face library enrollment settings.
type FaceConfig struct {
	Attempts     int           `yaml:"attempts"`
	Backoff      time.Duration `yaml:"backoff"`
	CleanupDelay time.Duration `yaml:"cleanup_delay"`
	FDID         string        `yaml:"fdid"`
	FaceLibType  string        `yaml:"face_lib_type"`
}

// Load builds the configuration.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("BRIDGE_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in defaults.
func Default() *Config {
	cfg := &Config{}

	cfg.HTTP.Addr = ":6060"
	cfg.HTTP.PublicBaseURL = "http://127.0.0.1:6060"
	cfg.HTTP.UploadsDir = "uploads"

	cfg.Device.BaseURL = "http://192.168.1.64"
	cfg.Device.User = "admin"
	cfg.Device.AuthScheme = "digest"
	cfg.Device.Timeout = 10 * time.Second

	cfg.DBEnabled = true
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 5432
	cfg.Database.User = "postgres"
	cfg.Database.Password = "postgres"
	cfg.Database.Database = "roster"
	cfg.Database.SSLMode = "disable"
	cfg.Database.MaxConns = 15

	cfg.Redis.Addr = "localhost:6379"

	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.ClientID = "hik-access-bridge"
	cfg.MQTT.QoS = 1
	cfg.MQTT.TopicPrefix = "access"

	cfg.EventStore.Backend = "file"
	cfg.EventStore.FilePath = "uploads/last_event.json"
	cfg.EventStore.RedisKey = "access:last-event"

	cfg.Streams.Events = "access:events:stream"
	cfg.Streams.SyncProgress = "access:sync:progress"
	cfg.Streams.MaxLen = 10000

	cfg.Radar.Attempts = 20
	cfg.Radar.Delay = 1500 * time.Millisecond
	cfg.Radar.MaxResults = 30
	cfg.Radar.Match = "any"
	cfg.Radar.MatchCode = 76
	// wide on purpose: device clocks drift
	cfg.Radar.WindowStart = "2020-01-01T00:00:00-05:00"
	cfg.Radar.WindowEnd = "2030-12-31T23:59:59-05:00"

	cfg.Sync.BatchSize = 10
	cfg.Sync.BatchPause = 200 * time.Millisecond
	cfg.Sync.FailurePause = time.Second
	cfg.Sync.NameMaxLength = 32
	cfg.Sync.DefaultBegin = "2024-01-01T00:00:00"
	cfg.Sync.DefaultEnd = "2035-12-31T23:59:59"

	cfg.Face.Attempts = 3
	cfg.Face.Backoff = time.Second
	cfg.Face.CleanupDelay = time.Minute
	cfg.Face.FDID = "1"
	cfg.Face.FaceLibType = "blackFD"

	cfg.RosterCache.Size = 16
	cfg.RosterCache.TTL = 30 * time.Second

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"

	return cfg
}

func applyEnv(cfg *Config) {
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.HTTP.PublicBaseURL = strings.TrimRight(getEnv("PUBLIC_BASE_URL", cfg.HTTP.PublicBaseURL), "/")
	cfg.HTTP.UploadsDir = getEnv("UPLOADS_DIR", cfg.HTTP.UploadsDir)

	cfg.Device.BaseURL = strings.TrimRight(getEnv("DEVICE_BASE_URL", cfg.Device.BaseURL), "/")
	cfg.Device.User = getEnv("DEVICE_USER", cfg.Device.User)
	cfg.Device.Password = getEnv("DEVICE_PASSWORD", cfg.Device.Password)
	cfg.Device.AuthScheme = strings.ToLower(getEnv("DEVICE_AUTH_SCHEME", cfg.Device.AuthScheme))
	cfg.Device.Timeout = getEnvDuration("DEVICE_TIMEOUT", cfg.Device.Timeout)

	cfg.DBEnabled = getEnvBool("DB_ENABLED", cfg.DBEnabled)
	cfg.Database.LoadFromEnv("DB")

	cfg.RedisEnabled = getEnvBool("REDIS_ENABLED", cfg.RedisEnabled)
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT.Enabled = getEnvBool("MQTT_ENABLED", cfg.MQTT.Enabled)
	cfg.MQTT.LoadFromEnv("MQTT")
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", cfg.MQTT.TopicPrefix)

	cfg.EventStore.Backend = strings.ToLower(getEnv("EVENT_STORE", cfg.EventStore.Backend))
	cfg.EventStore.FilePath = getEnv("EVENT_STORE_FILE", cfg.EventStore.FilePath)
	cfg.EventStore.RedisKey = getEnv("EVENT_STORE_REDIS_KEY", cfg.EventStore.RedisKey)

	cfg.Radar.Attempts = getEnvInt("RADAR_ATTEMPTS", cfg.Radar.Attempts)
	cfg.Radar.Delay = getEnvDuration("RADAR_DELAY", cfg.Radar.Delay)
	cfg.Radar.MaxResults = getEnvInt("RADAR_MAX_RESULTS", cfg.Radar.MaxResults)
	cfg.Radar.Match = strings.ToLower(getEnv("RADAR_MATCH", cfg.Radar.Match))
	cfg.Radar.MatchCode = getEnvInt("RADAR_MATCH_CODE", cfg.Radar.MatchCode)

	cfg.Sync.BatchSize = getEnvInt("SYNC_BATCH_SIZE", cfg.Sync.BatchSize)
	cfg.Sync.BatchPause = getEnvDuration("SYNC_BATCH_PAUSE", cfg.Sync.BatchPause)
	cfg.Sync.FailurePause = getEnvDuration("SYNC_FAILURE_PAUSE", cfg.Sync.FailurePause)

	cfg.Face.Attempts = getEnvInt("FACE_ATTEMPTS", cfg.Face.Attempts)
	cfg.Face.Backoff = getEnvDuration("FACE_BACKOFF", cfg.Face.Backoff)
	cfg.Face.CleanupDelay = getEnvDuration("FACE_CLEANUP_DELAY", cfg.Face.CleanupDelay)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
}

// Validate rejects settings the components cannot run with.
func (c *Config) Validate() error {
	switch c.EventStore.Backend {
	case "memory", "file":
	case "redis":
		if !c.RedisEnabled {
			return fmt.Errorf("event store backend redis requires REDIS_ENABLED=true")
		}
	default:
		return fmt.Errorf("unknown event store backend %q", c.EventStore.Backend)
	}
	switch c.Radar.Match {
	case "any", "code":
	default:
		return fmt.Errorf("unknown radar match mode %q", c.Radar.Match)
	}
	switch c.Device.AuthScheme {
	case "digest", "basic":
	default:
		return fmt.Errorf("unknown device auth scheme %q", c.Device.AuthScheme)
	}
	if c.Radar.Attempts <= 0 {
		return fmt.Errorf("radar attempts must be positive, got %d", c.Radar.Attempts)
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync batch size must be positive, got %d", c.Sync.BatchSize)
	}
	if c.Face.Attempts <= 0 {
		return fmt.Errorf("face attempts must be positive, got %d", c.Face.Attempts)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	return strings.EqualFold(v, "true") || v == "1"
}

// getEnvDuration accepts Go durations ("1.5s") or plain milliseconds ("1500").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
