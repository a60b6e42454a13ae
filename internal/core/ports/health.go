package ports

import "context"

// HealthChecker verifies one backing dependency.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}
