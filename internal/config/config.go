// Package config reads service settings from the environment.
// A .env file, when present, is loaded first and never overrides variables already set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	PortKey            = "PORT"
	ClientBackendKey   = "CLIENT_BACKEND"
	LimitBackendKey    = "LIMIT_BACKEND"
	ChannelBackendKey  = "CHANNEL_BACKEND"
	DDBEndpointKey     = "DDB_ENDPOINT"
	DDBTableKey        = "DDB_TABLE"
	AWSRegionKey       = "AWS_REGION"
	RedisHostKey       = "REDIS_HOST"
	RedisPortKey       = "REDIS_PORT"
	RedisUserKey       = "REDIS_USER"
	RedisPassKey       = "REDIS_PASS"
	RedisTLSKey        = "REDIS_SSL"
	RedisDBNumKey      = "REDIS_DB_NUM"
	SNSEndpointKey     = "SNS_ENDPOINT"
	SNSSenderIDKey     = "SNS_SENDER_ID"
	SNSRPMKey          = "SNS_RPM"
	DeliveryTimeoutKey = "DELIVERY_TIMEOUT"
	ResetRPMKey        = "RESET_RPM"
	LocaleKey          = "LOCALE"
	LogLevelKey        = "LOG_LEVEL"
	LogFormatKey       = "LOG_FORMAT"
	SeedFileKey        = "SEED_FILE"
	EnvFileKey         = "ENV_FILE"

	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendDDB    = "ddb"

	ChannelSNS     = "sns"
	ChannelOffline = "offline"
)

type RedisSettings struct {
	Host string
	Port string
	User string
	Pass string
	TLS  bool
	DB   int
}

// Settings is the full service configuration.
// SNSRPM and ResetRPM use 0 for no limit.
type Settings struct {
	Port            int
	ClientBackend   string
	LimitBackend    string
	ChannelBackend  string
	DDBEndpoint     string
	DDBTable        string
	AWSRegion       string
	Redis           RedisSettings
	SNSEndpoint     string
	SNSSenderID     string
	SNSRPM          int
	DeliveryTimeout time.Duration
	ResetRPM        int
	Locale          string
	LogLevel        string
	LogFormat       string
	SeedFile        string
}

// LoadDotEnv loads ENV_FILE (default ".env") into the process environment if it exists.
func LoadDotEnv() {
	envFile := getenv(EnvFileKey, ".env")
	if err := godotenv.Load(envFile); err != nil {
		log.Debugf("env file %s not loaded: %v", envFile, err)
	}
}

// FromEnv reads Settings from the environment and validates them.
func FromEnv() (Settings, error) {
	var s Settings
	var err error

	if s.Port, err = getenvInt(PortKey, 3050); err != nil {
		return s, err
	}
	s.ClientBackend = getenv(ClientBackendKey, BackendMemory)
	s.LimitBackend = getenv(LimitBackendKey, s.ClientBackend)
	s.ChannelBackend = getenv(ChannelBackendKey, ChannelOffline)
	s.DDBEndpoint = os.Getenv(DDBEndpointKey)
	s.DDBTable = getenv(DDBTableKey, "pinrelay_clients")
	s.AWSRegion = getenv(AWSRegionKey, "us-east-1")
	s.Redis = RedisSettings{
		Host: getenv(RedisHostKey, "localhost"),
		Port: getenv(RedisPortKey, "6379"),
		User: os.Getenv(RedisUserKey),
		Pass: os.Getenv(RedisPassKey),
		TLS:  parseBoolean(getenv(RedisTLSKey, "false")),
	}
	if s.Redis.DB, err = getenvInt(RedisDBNumKey, 0); err != nil {
		return s, err
	}
	s.SNSEndpoint = os.Getenv(SNSEndpointKey)
	s.SNSSenderID = os.Getenv(SNSSenderIDKey)
	if s.SNSRPM, err = getenvInt(SNSRPMKey, 0); err != nil {
		return s, err
	}
	if s.DeliveryTimeout, err = time.ParseDuration(getenv(DeliveryTimeoutKey, "10s")); err != nil {
		return s, fmt.Errorf("invalid %s: %w", DeliveryTimeoutKey, err)
	}
	if s.ResetRPM, err = getenvInt(ResetRPMKey, 0); err != nil {
		return s, err
	}
	s.Locale = getenv(LocaleKey, "ar")
	s.LogLevel = getenv(LogLevelKey, "info")
	s.LogFormat = getenv(LogFormatKey, "text")
	s.SeedFile = os.Getenv(SeedFileKey)

	return s, s.Validate()
}

func (s Settings) Validate() error {
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("%s must be in 1..65535", PortKey)
	}
	for key, b := range map[string]string{ClientBackendKey: s.ClientBackend, LimitBackendKey: s.LimitBackend} {
		switch b {
		case BackendMemory, BackendRedis, BackendDDB:
		default:
			return fmt.Errorf("%s: unsupported backend %q", key, b)
		}
	}
	switch s.ChannelBackend {
	case ChannelSNS, ChannelOffline:
	default:
		return fmt.Errorf("%s: unsupported channel %q", ChannelBackendKey, s.ChannelBackend)
	}
	if s.DeliveryTimeout <= 0 {
		return fmt.Errorf("%s must be positive", DeliveryTimeoutKey)
	}
	if s.SNSRPM < 0 {
		return fmt.Errorf("%s must be non-negative. 0 for no limit", SNSRPMKey)
	}
	if s.ResetRPM < 0 {
		return fmt.Errorf("%s must be non-negative. 0 for no limit", ResetRPMKey)
	}
	return nil
}

// ConfigureLogging applies LogLevel and LogFormat to the standard logrus logger.
func ConfigureLogging(s Settings) error {
	lvl, err := log.ParseLevel(s.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	if strings.EqualFold(s.LogFormat, "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// getenv retrieves the value of the environment variable named by the key.
func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseBoolean(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}
