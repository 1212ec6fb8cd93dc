package gateway

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileConfigApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syncdeck.yaml")
	data := []byte(`gateway:
  allowed_origins: ["http://localhost:5173"]
  write_timeout: 5s
  ping_interval: 15s
  max_message_size: 2048
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg := DefaultConfig()
	fc.Apply(&cfg)

	conn := cfg.ConnectionConfig
	if conn.WriteTimeout != 5*time.Second || conn.PingInterval != 15*time.Second {
		t.Fatalf("expected durations applied, got %v %v", conn.WriteTimeout, conn.PingInterval)
	}
	if conn.ReadTimeout != DefaultConnectionConfig().ReadTimeout {
		t.Fatalf("expected unset read timeout to keep default, got %v", conn.ReadTimeout)
	}
	if conn.MaxMessageSize != 2048 {
		t.Fatalf("expected max message size 2048, got %d", conn.MaxMessageSize)
	}

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"http://evil.example", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/ws/syncdeck", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := conn.CheckOrigin(r); got != tt.want {
			t.Fatalf("origin %q: expected %v, got %v", tt.origin, tt.want, got)
		}
	}
}

func TestLoadFileConfigMissing(t *testing.T) {
	if _, err := LoadFileConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidSessionID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"abc-123_X", true},
		{"", false},
		{"a.b", false},
		{"a b", false},
		{"sessions.>", false},
		{string(make([]byte, maxSessionIDLength+1)), false},
	}
	for _, tt := range tests {
		if got := validSessionID(tt.id); got != tt.want {
			t.Fatalf("validSessionID(%q): expected %v, got %v", tt.id, tt.want, got)
		}
	}
}

func TestNewServiceRelaySelection(t *testing.T) {
	tests := []struct {
		name    string
		relay   string
		wantErr bool
	}{
		{name: "default", relay: ""},
		{name: "local", relay: RelayLocal},
		{name: "unknown", relay: "carrier-pigeon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Relay = tt.relay
			svc, err := NewService(cfg, nil, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for relay %q, got nil", tt.relay)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, ok := svc.relay.(*LocalRelay); !ok {
				t.Fatalf("expected *LocalRelay, got %T", svc.relay)
			}
		})
	}
}

func TestDefaultRedisRelayConfig(t *testing.T) {
	cfg := DefaultConfig().RedisConfig
	if cfg.Addr != "localhost:6379" {
		t.Fatalf("expected localhost:6379, got %q", cfg.Addr)
	}
	if cfg.ChannelPrefix != "syncdeck:sessions" {
		t.Fatalf("expected syncdeck:sessions, got %q", cfg.ChannelPrefix)
	}
}
