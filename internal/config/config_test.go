package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("AUTHORITY_URL", "")
	t.Setenv("SESSION_BACKEND", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.AuthorityURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, SessionMemory, cfg.SessionBackend)
	assert.Equal(t, ":5069", cfg.ListenAddr)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("AUTHORITY_URL", "http://gh.local:9000")
	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("SESSION_BACKEND", SessionRedis)
	t.Setenv("REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("BRIDGE_RELAY_URL", "ws://relay:5069/agent")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "http://gh.local:9000", cfg.AuthorityURL)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, SessionRedis, cfg.SessionBackend)
	assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTTBroker)
	assert.Equal(t, "ws://relay:5069/agent", cfg.BridgeRelayURL)
	assert.Equal(t, "greenhouse-console", cfg.BridgeAgentID)
}
