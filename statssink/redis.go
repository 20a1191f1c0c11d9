// Package statssink publishes pool.Stats snapshots to external systems.
package statssink

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vistone/netconnpool/pool"
)

// RedisSink publishes periodic Stats snapshots to a Redis hash, wired in
// behind pool.Config.StatsSink so the engine never imports redis directly.
type RedisSink struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

// NewRedisSink parses redisURL and builds a sink that writes snapshots to
// the given hash key.
func NewRedisSink(redisURL, key string) (*RedisSink, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return &RedisSink{
		client:  redis.NewClient(opt),
		key:     key,
		timeout: 2 * time.Second,
	}, nil
}

// Ping checks connectivity to Redis, bounded by a short timeout.
func (s *RedisSink) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Publish implements pool.StatsSink by HSET-ing every counter into the
// configured hash key. Errors are swallowed beyond a best-effort context
// bound — a stats sink must never become a reason a reaper tick stalls.
func (s *RedisSink) Publish(snap pool.Stats) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	fields := map[string]interface{}{
		"total_created":         snap.TotalCreated,
		"total_closed":          snap.TotalClosed,
		"current_total":         snap.CurrentTotal,
		"current_idle":          snap.CurrentIdle,
		"current_active":        snap.CurrentActive,
		"current_tcp":           snap.CurrentTCP,
		"current_udp":           snap.CurrentUDP,
		"current_tcp_idle":      snap.CurrentTCPIdle,
		"current_udp_idle":      snap.CurrentUDPIdle,
		"current_ipv4":          snap.CurrentIPv4,
		"current_ipv6":          snap.CurrentIPv6,
		"current_ipv4_idle":     snap.CurrentIPv4Idle,
		"current_ipv6_idle":     snap.CurrentIPv6Idle,
		"total_get_requests":    snap.TotalGetRequests,
		"successful_gets":       snap.SuccessfulGets,
		"failed_gets":           snap.FailedGets,
		"timeout_gets":          snap.TimeoutGets,
		"health_check_attempts": snap.HealthCheckAttempts,
		"health_check_failures": snap.HealthCheckFailures,
		"unhealthy_closed":      snap.UnhealthyClosed,
		"connection_errors":     snap.ConnectionErrors,
		"leaked_connections":    snap.LeakedConnections,
		"total_reused":          snap.TotalReused,
		"average_reuse_count":   snap.AverageReuseCount,
		"average_get_time_ms":   float64(snap.AverageGetTime) / float64(time.Millisecond),
	}

	_ = s.client.HSet(ctx, s.key, fields).Err()
}

// Close releases the underlying Redis client connection.
func (s *RedisSink) Close() error {
	return s.client.Close()
}
