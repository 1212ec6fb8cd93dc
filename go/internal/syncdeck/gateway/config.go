package gateway

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Relay kinds accepted in Config.Relay.
const (
	RelayLocal = "local"
	RelayNATS  = "nats"
	RelayRedis = "redis"
)

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	InboxSize       int
	// StoreTimeout bounds each snapshot read or write made on behalf of a
	// connection.
	StoreTimeout time.Duration
	CheckOrigin  func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1 << 20, // chalkboard snapshots can be large
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		SendBufferSize:  256,
		InboxSize:       256,
		StoreTimeout:    5 * time.Second,
		CheckOrigin:     allowOrigins([]string{"*"}),
	}
}

// Config holds configuration for the syncdeck gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	JetStreamConfig  JetStreamRelayConfig
	RedisConfig      RedisRelayConfig
	Relay            string
	AllowedOrigins   []string
}

// DefaultConfig returns default configuration for the syncdeck gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
		JetStreamConfig:  DefaultJetStreamRelayConfig(),
		RedisConfig:      DefaultRedisRelayConfig(),
		Relay:            RelayLocal,
		AllowedOrigins:   []string{"*"},
	}
}

// FileConfig is the optional YAML override file.
type FileConfig struct {
	Gateway struct {
		AllowedOrigins []string      `yaml:"allowed_origins"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		MaxMessageSize int64         `yaml:"max_message_size"`
	} `yaml:"gateway"`
}

// LoadFileConfig reads a YAML override file.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &fc, nil
}

// Apply overrides the fields of cfg that the file sets.
func (fc *FileConfig) Apply(cfg *Config) {
	g := fc.Gateway
	if len(g.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = g.AllowedOrigins
		cfg.ConnectionConfig.CheckOrigin = allowOrigins(g.AllowedOrigins)
	}
	if g.WriteTimeout > 0 {
		cfg.ConnectionConfig.WriteTimeout = g.WriteTimeout
	}
	if g.ReadTimeout > 0 {
		cfg.ConnectionConfig.ReadTimeout = g.ReadTimeout
	}
	if g.PingInterval > 0 {
		cfg.ConnectionConfig.PingInterval = g.PingInterval
	}
	if g.MaxMessageSize > 0 {
		cfg.ConnectionConfig.MaxMessageSize = g.MaxMessageSize
	}
}

// allowOrigins accepts requests without an Origin header, and otherwise only
// the listed origins. "*" allows everything.
func allowOrigins(origins []string) func(r *http.Request) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}
