package pool

import (
	"net"
	"os"
	"testing"
	"time"
)

func TestValidateRequiresDialerOrListener(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dialer = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when client config has no Dialer")
	}

	cfg = DefaultServerConfig()
	cfg.Listener = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when server config has no Listener")
	}
}

func TestValidateMinExceedsMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dialer = func(Protocol) (net.Conn, error) { return nil, nil }
	cfg.MaxConnections = 5
	cfg.MinConnections = 10

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when MinConnections > MaxConnections")
	}
}

func TestValidateClampsMaxIdleAndHealthCheckTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dialer = func(Protocol) (net.Conn, error) { return nil, nil }
	cfg.MaxConnections = 20
	cfg.MaxIdleConnections = 0
	cfg.HealthCheckInterval = 10 * time.Second
	cfg.HealthCheckTimeout = 20 * time.Second

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
	if cfg.MaxIdleConnections != cfg.MaxConnections {
		t.Fatalf("MaxIdleConnections = %d, want %d", cfg.MaxIdleConnections, cfg.MaxConnections)
	}
	if cfg.HealthCheckTimeout != 5*time.Second {
		t.Fatalf("HealthCheckTimeout = %v, want 5s (half of interval)", cfg.HealthCheckTimeout)
	}
}

func TestValidateRejectsNonPositiveConnectionTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dialer = func(Protocol) (net.Conn, error) { return nil, nil }
	cfg.ConnectionTimeout = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero ConnectionTimeout")
	}
}

func TestConfigFromEnv(t *testing.T) {
	os.Setenv("NETCONNPOOL_TEST_MAX_CONNECTIONS", "42")
	os.Setenv("NETCONNPOOL_TEST_IDLE_TIMEOUT_SEC", "90")
	os.Setenv("NETCONNPOOL_TEST_ENABLE_STATS", "false")
	defer func() {
		os.Unsetenv("NETCONNPOOL_TEST_MAX_CONNECTIONS")
		os.Unsetenv("NETCONNPOOL_TEST_IDLE_TIMEOUT_SEC")
		os.Unsetenv("NETCONNPOOL_TEST_ENABLE_STATS")
	}()

	overrides := ConfigFromEnv("NETCONNPOOL_TEST")
	if overrides.MaxConnections != 42 {
		t.Fatalf("MaxConnections = %d, want 42", overrides.MaxConnections)
	}
	if overrides.IdleTimeout != 90*time.Second {
		t.Fatalf("IdleTimeout = %v, want 90s", overrides.IdleTimeout)
	}
	if overrides.EnableStats {
		t.Fatal("EnableStats should be false")
	}
}
