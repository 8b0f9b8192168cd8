package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pawtrail/pushgate/internal/app/ports"
	"github.com/pawtrail/pushgate/internal/ingress"
)

type Config struct {
	Environment   string
	Server        ServerConfig
	Bus           BusConfig
	Database      DatabaseConfig
	Coordinator   CoordinatorConfig
	Ingress       IngressConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Port int
}

type BusConfig struct {
	Port int
	Path string
}

type DatabaseConfig struct {
	Path string
}

type CoordinatorConfig struct {
	Endpoint string
}

type IngressConfig struct {
	PayloadMaxBytes  int
	NonceTTLSeconds  int
	RateLimitWebhook int
	RateLimitBus     int
	RateLimitEntity  int
}

type ObservabilityConfig struct {
	Enabled       bool
	OTLPEndpoint  string
	OTLPHeaders   map[string]string
	ServiceName   string
	ServiceVer    string
	SamplingRatio float64
}

func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("pushgate_env", "")
	v.SetDefault("pushgate_port", 8080)
	v.SetDefault("pushgate_bus_port", 8081)
	v.SetDefault("pushgate_bus_path", "/events")
	v.SetDefault("pushgate_db_path", "data/pushgate")
	v.SetDefault("pushgate_coordinator_endpoint", "")
	v.SetDefault("pushgate_payload_max_bytes", 262144)
	v.SetDefault("pushgate_nonce_ttl_seconds", 3600)
	v.SetDefault("pushgate_rate_limit_webhook", 60)
	v.SetDefault("pushgate_rate_limit_bus", 60)
	v.SetDefault("pushgate_rate_limit_entity", 60)
	v.SetDefault("pushgate_otel_enabled", false)
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("otel_exporter_otlp_headers", "")
	v.SetDefault("pushgate_service_name", "pushgate")
	v.SetDefault("pushgate_version", "dev")
	v.SetDefault("pushgate_otel_sampling_ratio", 1.0)

	port := v.GetInt("pushgate_port")
	if port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid PUSHGATE_PORT: %d", port)
	}
	busPort := v.GetInt("pushgate_bus_port")
	if busPort <= 0 || busPort > 65535 {
		return Config{}, fmt.Errorf("invalid PUSHGATE_BUS_PORT: %d", busPort)
	}

	samplingRatio := v.GetFloat64("pushgate_otel_sampling_ratio")
	if samplingRatio < 0 {
		samplingRatio = 0
	}
	if samplingRatio > 1 {
		samplingRatio = 1
	}

	otlpEndpoint := strings.TrimSpace(v.GetString("otel_exporter_otlp_endpoint"))
	otelEnabled := v.GetBool("pushgate_otel_enabled") || otlpEndpoint != ""

	cfg := Config{
		Environment: strings.ToLower(strings.TrimSpace(v.GetString("pushgate_env"))),
		Server:      ServerConfig{Port: port},
		Bus: BusConfig{
			Port: busPort,
			Path: pathOrDefault(v.GetString("pushgate_bus_path"), "/events"),
		},
		Database: DatabaseConfig{
			Path: strings.TrimSpace(v.GetString("pushgate_db_path")),
		},
		Coordinator: CoordinatorConfig{
			Endpoint: strings.TrimSpace(v.GetString("pushgate_coordinator_endpoint")),
		},
		Ingress: IngressConfig{
			PayloadMaxBytes:  clamp(v.GetInt("pushgate_payload_max_bytes"), 1<<10, 256<<10),
			NonceTTLSeconds:  clamp(v.GetInt("pushgate_nonce_ttl_seconds"), 60, 86400),
			RateLimitWebhook: clamp(v.GetInt("pushgate_rate_limit_webhook"), 1, 600),
			RateLimitBus:     clamp(v.GetInt("pushgate_rate_limit_bus"), 1, 600),
			RateLimitEntity:  clamp(v.GetInt("pushgate_rate_limit_entity"), 1, 600),
		},
		Observability: ObservabilityConfig{
			Enabled:       otelEnabled,
			OTLPEndpoint:  otlpEndpoint,
			OTLPHeaders:   parseHeaderList(v.GetString("otel_exporter_otlp_headers")),
			ServiceName:   strings.TrimSpace(v.GetString("pushgate_service_name")),
			ServiceVer:    strings.TrimSpace(v.GetString("pushgate_version")),
			SamplingRatio: samplingRatio,
		},
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/pushgate"
	}

	return cfg, nil
}

// Limits converts the config knobs into router limits.
func (c Config) Limits() ingress.Limits {
	return ingress.Limits{
		PayloadMaxBytes: c.Ingress.PayloadMaxBytes,
		NonceTTL:        time.Duration(c.Ingress.NonceTTLSeconds) * time.Second,
		RatePerMinute: map[ports.Channel]int{
			ports.ChannelWebhook: c.Ingress.RateLimitWebhook,
			ports.ChannelBus:     c.Ingress.RateLimitBus,
			ports.ChannelEntity:  c.Ingress.RateLimitEntity,
		},
	}
}

func (c Config) IsLocalDevelopment() bool {
	switch c.Environment {
	case "", "local", "dev", "development", "test":
		return true
	default:
		return false
	}
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

func pathOrDefault(value, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if !strings.HasPrefix(value, "/") {
		value = "/" + value
	}
	return value
}

func parseHeaderList(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
