// Package constants defines application-wide constants for timeouts, limits, and durations.
package constants

import "time"

// Time-related constants
const (
	// DefaultTimeout is the default timeout for most operations
	DefaultTimeout = 30 * time.Second

	// WebSocketPingInterval is the interval for WebSocket ping/pong
	WebSocketPingInterval = 60 * time.Second

	// WebSocketWriteTimeout bounds a single WebSocket write
	WebSocketWriteTimeout = 10 * time.Second

	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second
)

// Call lifecycle constants
const (
	// CallRingTimeout is how long an initiated call may ring before it is
	// auto-transitioned to missed
	CallRingTimeout = 45 * time.Second
)

// Ephemeral state eviction constants. Every in-memory rendezvous map is
// bounded by a TTL so churn cannot grow memory without limit.
const (
	// SignalTTL is how long an unread mailbox entry survives
	SignalTTL = 2 * time.Minute

	// ConsultationTTL is how long a pending consultation request survives
	ConsultationTTL = 30 * time.Minute

	// SweepInterval is the period of the background eviction sweep
	SweepInterval = 30 * time.Second

	// PresenceTTL is the auto-expiry for Redis-backed presence entries
	PresenceTTL = 5 * time.Minute
)

// Push notification constants
const (
	// PushTokenExpiry is the auto-expiry for registered push token sets
	PushTokenExpiry = 30 * 24 * time.Hour
)

// JWT-related constants
const (
	// AccessTokenExpiry is the default access token lifetime
	AccessTokenExpiry = 15 * time.Minute

	// RefreshTokenExpiry is the default refresh token lifetime
	RefreshTokenExpiry = 30 * 24 * time.Hour
)

// Database connection constants
const (
	// MaxConnLifetime is the maximum lifetime of a database connection
	MaxConnLifetime = 1 * time.Hour

	// MaxConnIdleTime is the maximum idle time for a database connection
	MaxConnIdleTime = 30 * time.Minute

	// HealthCheckPeriod is the interval between database health checks
	HealthCheckPeriod = 1 * time.Minute
)
