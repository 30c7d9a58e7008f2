package repositories

import "context"

// Repository aggregates every sub-repository behind one interface
type Repository interface {
	// Volunteer domain
	Volunteer() VolunteerRepository

	// Task domain
	Task() TaskRepository
	Assignment() AssignmentRepository

	// Outbox for reliable flag reconciliation
	Outbox() OutboxRepository

	// User domain (accounts live in the identity provider)
	User() UserRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
