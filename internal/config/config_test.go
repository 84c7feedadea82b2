package config

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{PortKey, ClientBackendKey, LimitBackendKey, ChannelBackendKey,
		DeliveryTimeoutKey, ResetRPMKey, SNSRPMKey, LocaleKey, RedisDBNumKey} {
		t.Setenv(k, "")
	}

	s, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 3050, s.Port)
	assert.Equal(t, BackendMemory, s.ClientBackend)
	assert.Equal(t, BackendMemory, s.LimitBackend)
	assert.Equal(t, ChannelOffline, s.ChannelBackend)
	assert.Equal(t, 10*time.Second, s.DeliveryTimeout)
	assert.Equal(t, 0, s.ResetRPM)
	assert.Equal(t, "ar", s.Locale)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv(PortKey, "8080")
	t.Setenv(ClientBackendKey, BackendRedis)
	t.Setenv(LimitBackendKey, "")
	t.Setenv(ChannelBackendKey, ChannelSNS)
	t.Setenv(DeliveryTimeoutKey, "1500ms")
	t.Setenv(ResetRPMKey, "3")
	t.Setenv(RedisTLSKey, "true")

	s, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 8080, s.Port)
	assert.Equal(t, BackendRedis, s.ClientBackend)
	assert.Equal(t, BackendRedis, s.LimitBackend, "limit backend follows client backend")
	assert.Equal(t, ChannelSNS, s.ChannelBackend)
	assert.Equal(t, 1500*time.Millisecond, s.DeliveryTimeout)
	assert.Equal(t, 3, s.ResetRPM)
	assert.True(t, s.Redis.TLS)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"port":     {PortKey, "abc"},
		"backend":  {ClientBackendKey, "postgres"},
		"channel":  {ChannelBackendKey, "telegram"},
		"timeout":  {DeliveryTimeoutKey, "-1s"},
		"resetRPM": {ResetRPMKey, "-2"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestConfigureLogging(t *testing.T) {
	t.Cleanup(func() {
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.TextFormatter{})
	})
	assert.NoError(t, ConfigureLogging(Settings{LogLevel: "debug", LogFormat: "json"}))
	assert.Error(t, ConfigureLogging(Settings{LogLevel: "loud"}))
}
