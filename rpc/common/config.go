package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Node role
// --------------------------------------------------------------------------

// Role determines whether a node accepts client writes (leader) or only
// pushed replication writes (follower). The role is fixed at process start.
type Role string

const (
	RoleLeader   Role = "leader"
	RoleFollower Role = "follower"
)

// ParseRole validates and normalizes a role string.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "leader":
		return RoleLeader, nil
	case "follower":
		return RoleFollower, nil
	default:
		return "", fmt.Errorf("invalid role %q (expected leader or follower)", s)
	}
}

// --------------------------------------------------------------------------
// Server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters for a single qkv node.
// Every field is read once at startup and immutable afterwards; the only
// runtime-mutable setting is the write quorum, which lives in its own
// mutex-guarded cell (see lib/quorum) seeded from WriteQuorum.
type ServerConfig struct {
	// Node identity
	Role     Role
	Endpoint string

	// Replication parameters (leader only)
	Followers []string

	// Simulated network delay bounds, applied before every replication call
	MinDelayMs int
	MaxDelayMs int

	// Initial write quorum
	WriteQuorum int

	// Per-follower replication timeout
	ReplTimeoutSecond int64

	// Logging configuration
	LogLevel string
}

// IsLeader reports whether this node is configured as the leader.
func (c *ServerConfig) IsLeader() bool {
	return c.Role == RoleLeader
}

// ReplTimeout returns the per-follower replication timeout as a Duration.
func (c *ServerConfig) ReplTimeout() time.Duration {
	return time.Duration(c.ReplTimeoutSecond) * time.Second
}

// MinDelay returns the lower simulated delay bound as a Duration.
func (c *ServerConfig) MinDelay() time.Duration {
	return time.Duration(c.MinDelayMs) * time.Millisecond
}

// MaxDelay returns the upper simulated delay bound as a Duration.
func (c *ServerConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelayMs) * time.Millisecond
}

// Validate checks the configuration for internally inconsistent values.
// A quorum larger than the follower count is deliberately NOT rejected here:
// configuring an unreachable quorum is a supported experiment and simply
// makes every write fail until corrected.
func (c *ServerConfig) Validate() error {
	if _, err := ParseRole(string(c.Role)); err != nil {
		return err
	}
	if c.Endpoint == "" {
		return fmt.Errorf("endpoint must not be empty")
	}
	if c.MinDelayMs < 0 || c.MaxDelayMs < 0 {
		return fmt.Errorf("delay bounds must not be negative")
	}
	if c.MaxDelayMs < c.MinDelayMs {
		return fmt.Errorf("max delay (%d ms) must not be smaller than min delay (%d ms)", c.MaxDelayMs, c.MinDelayMs)
	}
	if c.WriteQuorum < 0 {
		return fmt.Errorf("write quorum must not be negative")
	}
	if c.ReplTimeoutSecond <= 0 {
		return fmt.Errorf("replication timeout must be positive")
	}
	if !c.IsLeader() && len(c.Followers) > 0 {
		return fmt.Errorf("followers can only be configured for the leader role")
	}
	return nil
}

// ParseFollowers parses a comma-separated follower address list
// (e.g. "localhost:5001,localhost:5002"). Empty entries are skipped.
func ParseFollowers(s string) []string {
	followers := make([]string, 0)
	for _, addr := range strings.Split(s, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		followers = append(followers, addr)
	}
	return followers
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Node identity
	addSection("Node")
	addField("Role", string(c.Role))
	addField("Endpoint", c.Endpoint)

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	if c.IsLeader() {
		// Replication parameters
		addSection("Replication")
		addField("Write Quorum", strconv.Itoa(c.WriteQuorum))
		addField("Min Delay", fmt.Sprintf("%d ms", c.MinDelayMs))
		addField("Max Delay", fmt.Sprintf("%d ms", c.MaxDelayMs))
		addField("Timeout", fmt.Sprintf("%d sec", c.ReplTimeoutSecond))

		addSection("Followers")
		for i, follower := range c.Followers {
			addField(strconv.Itoa(i), follower)
		}
		if len(c.Followers) == 0 {
			sb.WriteString("  (none)\n")
		}
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig configures the HTTP client used by the kv command group and
// the perf tool.
type ClientConfig struct {
	Endpoint      string
	TimeoutSecond int
	RetryCount    int
}

// Timeout returns the request timeout as a Duration.
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))

	return sb.String()
}
