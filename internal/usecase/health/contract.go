package health

import "context"

// StoreChecker checks document store availability.
type StoreChecker interface {
	HealthCheck(ctx context.Context) error
}

// GeneratorChecker checks generative backend availability.
type GeneratorChecker interface {
	HealthCheck(ctx context.Context) error
}
