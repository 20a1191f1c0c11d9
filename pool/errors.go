package pool

import "errors"

// Sentinel errors returned by the pool's public operations. Callers should
// compare with errors.Is rather than equality, since factory/dial failures
// are wrapped with additional context via %w.
var (
	// ErrPoolClosed is returned by any operation on a pool that has been
	// closed, or is in the process of closing.
	ErrPoolClosed = errors.New("netconnpool: pool closed")

	// ErrConnectionClosed indicates the underlying handle was closed
	// outside the pool's control.
	ErrConnectionClosed = errors.New("netconnpool: connection closed")

	// ErrGetConnectionTimeout is returned when a borrow's deadline elapses
	// before an endpoint becomes available.
	ErrGetConnectionTimeout = errors.New("netconnpool: get connection timeout")

	// ErrMaxConnectionsReached indicates the census is at MaxConnections
	// and no idle endpoint could serve the request.
	ErrMaxConnectionsReached = errors.New("netconnpool: max connections reached")

	// ErrPoolExhausted is returned when admission cannot mint a new
	// endpoint and none is idle.
	ErrPoolExhausted = errors.New("netconnpool: pool exhausted")

	// ErrInvalidConnection indicates a handle was returned that the pool
	// does not recognize (violates the one-census invariant).
	ErrInvalidConnection = errors.New("netconnpool: invalid connection")

	// ErrConnectionUnhealthy names a failed health probe. Borrow does not
	// return it: a record that fails its pop-time probe is evicted and the
	// borrow retries.
	ErrConnectionUnhealthy = errors.New("netconnpool: connection unhealthy")

	// ErrInvalidConfig is returned by New when configuration validation
	// fails.
	ErrInvalidConfig = errors.New("netconnpool: invalid config")

	// ErrUnsupportedIPVersion indicates a category filter requested an IP
	// family the pool cannot determine or support.
	ErrUnsupportedIPVersion = errors.New("netconnpool: unsupported ip version")

	// ErrNoConnectionForIPVersion indicates a category-filtered borrow
	// could not be satisfied for the requested IP family.
	ErrNoConnectionForIPVersion = errors.New("netconnpool: no connection for ip version")

	// ErrUnsupportedProtocol indicates a category filter requested a
	// protocol the pool cannot support.
	ErrUnsupportedProtocol = errors.New("netconnpool: unsupported protocol")

	// ErrNoConnectionForProtocol indicates a category-filtered borrow
	// could not be satisfied for the requested protocol.
	ErrNoConnectionForProtocol = errors.New("netconnpool: no connection for protocol")
)

// ConnectionLeaked is tracked only in Stats.LeakedConnections; it is never
// returned as an error to a borrower (per the leak-detection contract).
