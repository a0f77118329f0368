package health

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tareqmamari/loglens/internal/store"
)

// Status represents the health status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check represents a health check result
type Check struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// TokenSource is satisfied by auth.Authenticator.
type TokenSource interface {
	ValidateToken() error
}

// Checker performs health checks against the log store.
type Checker struct {
	store       store.Store
	credentials TokenSource
	logger      *zap.Logger

	// slowThreshold marks a failed connectivity check as degraded rather
	// than unhealthy when the store took at least this long to answer.
	slowThreshold time.Duration
}

// New creates a new health checker. credentials may be nil for stores that
// need none, such as the in-memory demo store.
func New(st store.Store, credentials TokenSource, logger *zap.Logger) *Checker {
	return &Checker{
		store:         st,
		credentials:   credentials,
		logger:        logger,
		slowThreshold: 3 * time.Second,
	}
}

// CheckAll performs all health checks
func (c *Checker) CheckAll(ctx context.Context) (Status, []Check) {
	checks := []Check{
		c.checkCredentials(),
		c.checkStoreConnectivity(ctx),
	}

	overallStatus := StatusHealthy
	for _, check := range checks {
		if check.Status == StatusUnhealthy {
			overallStatus = StatusUnhealthy
			break
		} else if check.Status == StatusDegraded && overallStatus == StatusHealthy {
			overallStatus = StatusDegraded
		}
	}

	return overallStatus, checks
}

// checkCredentials verifies the store credentials can obtain a token.
func (c *Checker) checkCredentials() Check {
	start := time.Now()
	check := Check{
		Name:      "credentials",
		Timestamp: start,
	}

	if c.credentials == nil {
		check.Status = StatusHealthy
		check.Message = "Store does not require credentials"
		return check
	}

	err := c.credentials.ValidateToken()
	check.Duration = time.Since(start)

	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = fmt.Sprintf("Authentication failed: %v", err)
		c.logger.Error("Health check failed: credentials",
			zap.Error(err),
			zap.Duration("duration", check.Duration),
		)
	} else {
		check.Status = StatusHealthy
		check.Message = "Authentication successful"
		c.logger.Debug("Health check passed: credentials",
			zap.Duration("duration", check.Duration),
		)
	}

	return check
}

// checkStoreConnectivity lists a single collection.
func (c *Checker) checkStoreConnectivity(ctx context.Context) Check {
	start := time.Now()
	check := Check{
		Name:      "store_connectivity",
		Timestamp: start,
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.store.ListCollections(checkCtx, 1)
	check.Duration = time.Since(start)

	if err != nil {
		if check.Duration >= c.slowThreshold {
			check.Status = StatusDegraded
			check.Message = "Log store responding slowly"
		} else {
			check.Status = StatusUnhealthy
			check.Message = fmt.Sprintf("Log store unreachable: %v", err)
		}
		c.logger.Warn("Health check failed: store connectivity",
			zap.Error(err),
			zap.Duration("duration", check.Duration),
		)
	} else {
		check.Status = StatusHealthy
		check.Message = "Log store reachable"
		c.logger.Debug("Health check passed: store connectivity",
			zap.Duration("duration", check.Duration),
		)
	}

	return check
}
