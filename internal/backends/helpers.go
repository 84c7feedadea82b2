package backends

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"

	"pinrelay/internal/backends/ddb"
	"pinrelay/internal/backends/memory"
	"pinrelay/internal/config"
	"pinrelay/internal/ports"
	"pinrelay/internal/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	redisbackend "pinrelay/internal/backends/redis"
)

const AmazonRootCA1PEM = `-----BEGIN CERTIFICATE-----
MIIDQTCCAimgAwIBAgITBmyfz5m/jAo54vB4ikPmljZbyjANBgkqhkiG9w0BAQsF
ADA5MQswCQYDVQQGEwJVUzEPMA0GA1UEChMGQW1hem9uMRkwFwYDVQQDExBBbWF6
b24gUm9vdCBDQSAxMB4XDTE1MDUyNjAwMDAwMFoXDTM4MDExNzAwMDAwMFowOTEL
MAkGA1UEBhMCVVMxDzANBgNVBAoTBkFtYXpvbjEZMBcGA1UEAxMQQW1hem9uIFJv
b3QgQ0EgMTCCASIwDQYJKoZIhvcNAQEBBQADggEPADCCAQoCggEBALJ4gHHKeNXj
ca9HgFB0fW7Y14h29Jlo91ghYPl0hAEvrAIthtOgQ3pOsqTQNroBvo3bSMgHFzZM
9O6II8c+6zf1tRn4SWiw3te5djgdYZ6k/oI2peVKVuRF4fn9tBb6dNqcmzU5L/qw
IFAGbHrQgLKm+a/sRxmPUDgH3KKHOVj4utWp+UhnMJbulHheb4mjUcAwhmahRWa6
VOujw5H5SNz/0egwLX0tdHA114gk957EWW67c4cX8jJGKLhD+rcdqsq08p8kDi1L
93FcXmn/6pUCyziKrlA4b9v7LWIbxcceVOF34GfID5yHI9Y/QCB/IIDEgEw+OyQm
jgSubJrIqg0CAwEAAaNCMEAwDwYDVR0TAQH/BAUwAwEB/zAOBgNVHQ8BAf8EBAMC
AYYwHQYDVR0OBBYEFIQYzIU07LwMlJQuCFmcx7IQTgoIMA0GCSqGSIb3DQEBCwUA
A4IBAQCY8jdaQZChGsV2USggNiMOruYou6r4lK5IpDB/G/wkjUu0yKGX9rbxenDI
U5PMCCjjmCXPI6T53iHTfIUJrU6adTrCC2qJeHZERxhlbI1Bjjt/msv0tadQ1wUs
N+gDS63pYaACbvXy8MWy7Vu33PqUXHeeE6V/Uq2V8viTO96LXFvKWlJbYK8U90vv
o/ufQJVtMVT8QtPHRh8jrdkPSHCa2XV4cdFyQzR1bldZwgJcJmApzyMZFo6IQ6XU
5MsI+yMRQ+hDKXJioaldXgjUkK642M4UwtBV8ob2xJNDd2ZhwLnoQdeXeGADbkpy
rqXRfboQnoZsG4q5WTP468SQvvG5
-----END CERTIFICATE-----`

// Backends holds the stores selected by config.Settings.
type Backends struct {
	Clients ports.ClientStore
	Limiter ports.RateLimiter

	closers []func() error
}

// Close releases any connections opened by Open.
func (b *Backends) Close() error {
	var first error
	for _, c := range b.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}

// Open constructs the client store and the rate limiter.
// Supported backends are "memory", "redis" and "ddb". Redis and DynamoDB clients are shared
// when both stores use the same backend; a memory client store starts empty.
func Open(ctx context.Context, s config.Settings) (*Backends, error) {
	b := &Backends{}
	var (
		redisClient *redis.Client
		ddbClient   *dynamodb.Client
	)
	redisCli := func() (*redis.Client, error) {
		if redisClient != nil {
			return redisClient, nil
		}
		cli, err := redisClientFromSettings(ctx, s.Redis)
		if err != nil {
			return nil, err
		}
		redisClient = cli
		b.closers = append(b.closers, cli.Close)
		return cli, nil
	}
	ddbCli := func() (*dynamodb.Client, error) {
		if ddbClient != nil {
			return ddbClient, nil
		}
		cli, err := ddbClientFromSettings(ctx, s)
		if err != nil {
			return nil, err
		}
		if err := ddb.CreateTableIfNotExists(ctx, cli, s.DDBTable); err != nil {
			return nil, err
		}
		ddbClient = cli
		return cli, nil
	}

	switch s.ClientBackend {
	case config.BackendMemory:
		b.Clients = memory.NewClientStore()
	case config.BackendRedis:
		cli, err := redisCli()
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Clients = redisbackend.NewClientStore(cli)
	case config.BackendDDB:
		cli, err := ddbCli()
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Clients = ddb.NewClientStore(s.DDBTable, cli)
	default:
		return nil, types.Err(types.ErrInvalidBackend, nil, "client backend %q", s.ClientBackend)
	}

	switch s.LimitBackend {
	case config.BackendMemory:
		b.Limiter = memory.NewRateLimiter()
	case config.BackendRedis:
		cli, err := redisCli()
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Limiter = redisbackend.NewRateLimiter(cli)
	case config.BackendDDB:
		cli, err := ddbCli()
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.Limiter = ddb.NewRateLimiter(s.DDBTable, cli)
	default:
		_ = b.Close()
		return nil, types.Err(types.ErrInvalidBackend, nil, "limit backend %q", s.LimitBackend)
	}

	log.WithFields(log.Fields{
		"clients": s.ClientBackend,
		"limiter": s.LimitBackend,
	}).Info("backends ready")
	return b, nil
}

// ddbClientFromSettings creates a DynamoDB client. A non-empty DDBEndpoint points the client at a
// local emulator with static credentials.
func ddbClientFromSettings(ctx context.Context, s config.Settings) (*dynamodb.Client, error) {
	awsCfg, err := config.LoadAWS(ctx, s.AWSRegion)
	if err != nil {
		return nil, err
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if s.DDBEndpoint != "" {
			// This is used for testing only locally
			o.BaseEndpoint = aws.String(s.DDBEndpoint)
			o.Credentials = config.LocalCredentials()
		}
	}), nil
}

// redisClientFromSettings creates a Redis client and pings it.
func redisClientFromSettings(ctx context.Context, rs config.RedisSettings) (*redis.Client, error) {
	var tlsConfig *tls.Config
	if rs.TLS {
		// Create a CA certificate pool and add our CA certificate
		caCerts := x509.NewCertPool()
		if !caCerts.AppendCertsFromPEM([]byte(AmazonRootCA1PEM)) {
			return nil, fmt.Errorf("failed to retrieve CA certificate")
		}
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			RootCAs:    caCerts,
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:      fmt.Sprintf("%s:%s", rs.Host, rs.Port),
		Username:  rs.User,
		Password:  rs.Pass,
		DB:        rs.DB,
		TLSConfig: tlsConfig,
	})
	if _, err := redisClient.Ping(ctx).Result(); err != nil {
		_ = redisClient.Close()
		return nil, types.Err(types.ErrDataStoreAccess, err, "failed to ping Redis at %s:%s", rs.Host, rs.Port)
	}
	return redisClient, nil
}
