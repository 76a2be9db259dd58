package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	AuthorityURL      string        `mapstructure:"AUTHORITY_URL"`
	AuthorityMDNSName string        `mapstructure:"AUTHORITY_MDNS_NAME"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	ListenAddr        string        `mapstructure:"LISTEN_ADDR"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	LogFormat         string        `mapstructure:"LOG_FORMAT"`
	SessionBackend    string        `mapstructure:"SESSION_BACKEND"`
	SessionName       string        `mapstructure:"SESSION_NAME"`
	RedisAddr         string        `mapstructure:"REDIS_ADDR"`
	SQLitePath        string        `mapstructure:"SQLITE_PATH"`
	DBURL             string        `mapstructure:"DB_URL"`
	MQTTBroker        string        `mapstructure:"MQTT_BROKER"`
	MQTTClientID      string        `mapstructure:"MQTT_CLIENT_ID"`
	BridgeRelayURL    string        `mapstructure:"BRIDGE_RELAY_URL"`
	BridgeAgentID     string        `mapstructure:"BRIDGE_AGENT_ID"`
	BridgeLocalURL    string        `mapstructure:"BRIDGE_LOCAL_URL"`
}

// Session backends
const (
	SessionMemory = "memory"
	SessionRedis  = "redis"
	SessionSQLite = "sqlite"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("AUTHORITY_URL", "http://localhost:8080")
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("LISTEN_ADDR", ":5069")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("SESSION_BACKEND", SessionMemory)
	v.SetDefault("SESSION_NAME", "default")
	v.SetDefault("SQLITE_PATH", "greenhouse-console.db")
	v.SetDefault("MQTT_CLIENT_ID", "greenhouse-console")
	v.SetDefault("BRIDGE_AGENT_ID", "greenhouse-console")
	v.SetDefault("BRIDGE_LOCAL_URL", "http://localhost:5069")
}

// LoadConfig reads configuration from .env and environment variables
func LoadConfig() (*Config, error) {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		AuthorityURL:      v.GetString("AUTHORITY_URL"),
		AuthorityMDNSName: v.GetString("AUTHORITY_MDNS_NAME"),
		RequestTimeout:    v.GetDuration("REQUEST_TIMEOUT"),
		ListenAddr:        v.GetString("LISTEN_ADDR"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogFormat:         v.GetString("LOG_FORMAT"),
		SessionBackend:    v.GetString("SESSION_BACKEND"),
		SessionName:       v.GetString("SESSION_NAME"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		SQLitePath:        v.GetString("SQLITE_PATH"),
		DBURL:             v.GetString("DB_URL"),
		MQTTBroker:        v.GetString("MQTT_BROKER"),
		MQTTClientID:      v.GetString("MQTT_CLIENT_ID"),
		BridgeRelayURL:    v.GetString("BRIDGE_RELAY_URL"),
		BridgeAgentID:     v.GetString("BRIDGE_AGENT_ID"),
		BridgeLocalURL:    v.GetString("BRIDGE_LOCAL_URL"),
	}
}
