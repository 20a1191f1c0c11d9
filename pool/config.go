package pool

import (
	"net"
	"os"
	"reflect"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Mode selects whether the pool creates endpoints by dialing out (client)
// or by accepting inbound connections off a listener (server).
type Mode int

const (
	// ModeClient drives admission through Config.Dialer.
	ModeClient Mode = iota
	// ModeServer drives admission through Config.Listener/Config.Acceptor.
	ModeServer
)

func (m Mode) String() string {
	switch m {
	case ModeServer:
		return "server"
	default:
		return "client"
	}
}

// Config configures a Pool. Dialer is required in ModeClient and Listener
// in ModeServer; New validates the whole struct before any component is
// constructed.
type Config struct {
	Mode Mode

	MaxConnections     int
	MinConnections     int
	MaxIdleConnections int

	ConnectionTimeout     time.Duration
	IdleTimeout           time.Duration
	MaxLifetime           time.Duration
	GetConnectionTimeout  time.Duration
	HealthCheckInterval   time.Duration
	HealthCheckTimeout    time.Duration
	ConnectionLeakTimeout time.Duration

	// Dialer is the client-mode factory. protocol is the requested
	// category's protocol, or ProtocolUnknown when the caller asked for
	// CategoryAny/CategoryIPv4/CategoryIPv6 without pinning a transport.
	Dialer func(protocol Protocol) (net.Conn, error)

	// Listener is the server-mode accept source.
	Listener net.Listener
	// Acceptor is the server-mode accept strategy. Defaults to a single
	// blocking Listener.Accept() call when nil.
	Acceptor func(l net.Listener) (net.Conn, error)

	HealthChecker func(conn net.Conn) bool
	CloseConn     func(conn net.Conn) error
	OnCreated     func(conn net.Conn) error
	OnBorrow      func(conn net.Conn)
	OnReturn      func(conn net.Conn)

	EnableStats       bool
	EnableHealthCheck bool

	ClearUDPBufferOnReturn bool
	UDPBufferClearTimeout  time.Duration
	MaxBufferClearPackets  int

	// StatsSink, if set, receives periodic Stats snapshots from the
	// reaper. See statssink.RedisSink for the Redis-backed implementation.
	StatsSink StatsSink

	// Logger receives structured diagnostics. Defaults to a no-op logger.
	Logger zerolog.Logger
}

// StatsSink receives periodic stats snapshots from a running pool's
// reaper. Implementations must not block the reaper for long — Publish
// is called synchronously once per HealthCheckInterval tick.
type StatsSink interface {
	Publish(Stats)
}

// DefaultConfig returns client-mode defaults suitable as a starting point.
func DefaultConfig() Config {
	return Config{
		Mode:                  ModeClient,
		MaxConnections:        50,
		MinConnections:        0,
		MaxIdleConnections:    10,
		ConnectionTimeout:     5 * time.Second,
		IdleTimeout:           5 * time.Minute,
		MaxLifetime:           30 * time.Minute,
		GetConnectionTimeout:  3 * time.Second,
		HealthCheckInterval:   30 * time.Second,
		HealthCheckTimeout:    2 * time.Second,
		ConnectionLeakTimeout: 2 * time.Minute,
		EnableStats:           true,
		EnableHealthCheck:     true,
		MaxBufferClearPackets: 100,
		Logger:                zerolog.Nop(),
	}
}

// DefaultServerConfig returns server-mode defaults.
func DefaultServerConfig() Config {
	cfg := DefaultConfig()
	cfg.Mode = ModeServer
	return cfg
}

// Validate applies the §6 validation/clamping rules, run once from New.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeClient:
		if c.Dialer == nil {
			return wrapInvalidConfig("client mode requires Dialer")
		}
	case ModeServer:
		if c.Listener == nil {
			return wrapInvalidConfig("server mode requires Listener")
		}
	default:
		return wrapInvalidConfig("unknown mode")
	}

	if c.MinConnections > 0 && c.MaxConnections > 0 && c.MinConnections > c.MaxConnections {
		return wrapInvalidConfig("MinConnections exceeds MaxConnections")
	}

	if c.MaxIdleConnections <= 0 {
		if c.MaxConnections > 0 {
			c.MaxIdleConnections = c.MaxConnections
		} else {
			c.MaxIdleConnections = 1
		}
	}

	if c.ConnectionTimeout <= 0 {
		return wrapInvalidConfig("ConnectionTimeout must be positive")
	}

	if c.HealthCheckTimeout > c.HealthCheckInterval && c.HealthCheckInterval > 0 {
		c.HealthCheckTimeout = c.HealthCheckInterval / 2
	}

	if c.MaxBufferClearPackets == 0 {
		c.MaxBufferClearPackets = 100
	}

	if reflect.DeepEqual(c.Logger, zerolog.Logger{}) {
		c.Logger = zerolog.Nop()
	}

	return nil
}

func wrapInvalidConfig(reason string) error {
	return &invalidConfigError{reason: reason}
}

type invalidConfigError struct {
	reason string
}

func (e *invalidConfigError) Error() string {
	return "netconnpool: invalid config: " + e.reason
}

func (e *invalidConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// DurationOverrides holds the tunable durations/counts ConfigFromEnv is
// able to source from the environment. Callables (Dialer, hooks, ...)
// have no env representation and are never part of this struct — callers
// apply it on top of a Config they built themselves.
type DurationOverrides struct {
	MaxConnections        int
	MinConnections        int
	MaxIdleConnections    int
	ConnectionTimeout     time.Duration
	IdleTimeout           time.Duration
	MaxLifetime           time.Duration
	GetConnectionTimeout  time.Duration
	HealthCheckInterval   time.Duration
	HealthCheckTimeout    time.Duration
	ConnectionLeakTimeout time.Duration
	EnableStats           bool
	EnableHealthCheck     bool
}

// ConfigFromEnv loads an optional .env file and reads pool tuning from
// environment variables prefixed with prefix (e.g. prefix "POOL" reads
// POOL_MAX_CONNECTIONS, POOL_IDLE_TIMEOUT_SEC, ...). Unset or unparsable
// count and duration variables yield zero; unset or unparsable
// EnableStats/EnableHealthCheck variables yield true. Callers overlay the
// result onto a Config, field by field, only where they want env control.
func ConfigFromEnv(prefix string) DurationOverrides {
	_ = godotenv.Load()

	return DurationOverrides{
		MaxConnections:        getEnvInt(prefix+"_MAX_CONNECTIONS", 0),
		MinConnections:        getEnvInt(prefix+"_MIN_CONNECTIONS", 0),
		MaxIdleConnections:    getEnvInt(prefix+"_MAX_IDLE_CONNECTIONS", 0),
		ConnectionTimeout:     getEnvSeconds(prefix + "_CONNECTION_TIMEOUT_SEC"),
		IdleTimeout:           getEnvSeconds(prefix + "_IDLE_TIMEOUT_SEC"),
		MaxLifetime:           getEnvSeconds(prefix + "_MAX_LIFETIME_SEC"),
		GetConnectionTimeout:  getEnvSeconds(prefix + "_GET_CONNECTION_TIMEOUT_SEC"),
		HealthCheckInterval:   getEnvSeconds(prefix + "_HEALTH_CHECK_INTERVAL_SEC"),
		HealthCheckTimeout:    getEnvSeconds(prefix + "_HEALTH_CHECK_TIMEOUT_SEC"),
		ConnectionLeakTimeout: getEnvSeconds(prefix + "_CONNECTION_LEAK_TIMEOUT_SEC"),
		EnableStats:           getEnvBool(prefix+"_ENABLE_STATS", true),
		EnableHealthCheck:     getEnvBool(prefix+"_ENABLE_HEALTH_CHECK", true),
	}
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSeconds(key string) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return 0
}
