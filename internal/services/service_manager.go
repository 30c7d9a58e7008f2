package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayudamx/volunteer-service/internal/events"
	"github.com/ayudamx/volunteer-service/internal/repositories"
	"github.com/ayudamx/volunteer-service/internal/repositories/casdoor"
	"github.com/ayudamx/volunteer-service/internal/validator"
	"gorm.io/gorm"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	// Logging configuration
	EnableDebugLogging bool
	LogLevel           slog.Level

	// Service-specific configurations
	Task       ServiceConfig
	Directory  ServiceConfig
	Assignment ServiceConfig
	Attendance ServiceConfig
	Identity   ServiceConfig

	// Timezone used for calendar-day attendance projection.
	Timezone string

	// Global settings
	DefaultTimeout    time.Duration
	MaxRetries        int
	RateLimitingRules map[string]RateLimit
}

type ServiceConfig struct {
	Enabled         bool
	CacheEnabled    bool
	CacheTTL        time.Duration
	ValidationLevel ValidationLevel
	AuditingEnabled bool
}

type ValidationLevel int

const (
	ValidationBasic ValidationLevel = iota
	ValidationStrict
	ValidationFull
)

type RateLimit struct {
	RequestsPerMinute int
	BurstSize         int
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	// Dependencies
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	accounts  *casdoor.AccountManager
	config    ServiceManagerConfig

	// Service instances
	taskService       TaskService
	assignmentService AssignmentService
	directoryService  DirectoryService
	identityService   IdentityService
	attendanceService AttendanceService

	// Background consumer lifecycle
	consumerCancel context.CancelFunc

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, accounts *casdoor.AccountManager, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		accounts:  accounts,
		config:    config,
	}
}

// NewDefaultServiceManager creates a service manager with default configuration
func NewDefaultServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, accounts *casdoor.AccountManager) ServiceManager {
	config := ServiceManagerConfig{
		EnableDebugLogging: false,
		LogLevel:           slog.LevelInfo,

		Task: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    true,
			CacheTTL:        5 * time.Minute,
			ValidationLevel: ValidationStrict,
			AuditingEnabled: true,
		},
		Directory: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    true,
			CacheTTL:        2 * time.Minute,
			ValidationLevel: ValidationStrict,
			AuditingEnabled: true,
		},
		Assignment: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    false, // capacity checks read live rows
			CacheTTL:        0,
			ValidationLevel: ValidationStrict,
			AuditingEnabled: true,
		},
		Attendance: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    false,
			CacheTTL:        0,
			ValidationLevel: ValidationBasic,
			AuditingEnabled: false,
		},
		Identity: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    true,
			CacheTTL:        15 * time.Minute,
			ValidationLevel: ValidationStrict,
			AuditingEnabled: true,
		},

		Timezone:          "America/Mexico_City",
		DefaultTimeout:    30 * time.Second,
		MaxRetries:        3,
		RateLimitingRules: make(map[string]RateLimit),
	}

	return NewServiceManager(db, repo, logger, validator, publisher, accounts, config)
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	if err := sm.initializeServices(ctx); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

func (sm *serviceManager) initializeServices(ctx context.Context) error {
	location, err := time.LoadLocation(sm.config.Timezone)
	if err != nil {
		sm.logger.Warn("Unknown timezone, falling back to UTC", "timezone", sm.config.Timezone)
		location = time.UTC
	}

	if sm.config.Task.Enabled {
		sm.taskService = NewTaskService(sm.repo, sm.db, sm.logger, sm.validator, sm.publisher)
		sm.logger.Info("Task service initialized")
	}

	if sm.config.Assignment.Enabled {
		sm.assignmentService = NewAssignmentService(sm.repo, sm.db, sm.logger, sm.validator, sm.publisher)
		sm.logger.Info("Assignment service initialized")
	}

	if sm.config.Directory.Enabled {
		sm.directoryService = NewDirectoryService(sm.repo, sm.db, sm.logger, sm.validator, sm.publisher)
		sm.logger.Info("Directory service initialized")
	}

	if sm.config.Identity.Enabled {
		sm.identityService = NewIdentityService(sm.repo, sm.db, sm.logger, sm.validator, sm.accounts, sm.publisher)
		sm.logger.Info("Identity service initialized")
	}

	if sm.config.Attendance.Enabled {
		sm.attendanceService = NewAttendanceService(sm.repo, sm.db, sm.logger, location)
		sm.logger.Info("Attendance service initialized")
	}

	// The directory applies selected flags coming off the bus. Only started
	// when the publisher can also subscribe.
	if bus, ok := sm.publisher.(*events.Bus); ok && sm.directoryService != nil {
		if ds, ok := sm.directoryService.(*directoryService); ok {
			consumerCtx, cancel := context.WithCancel(context.Background())
			sm.consumerCancel = cancel
			go func() {
				if err := ds.RunSelectedConsumer(consumerCtx, bus); err != nil && consumerCtx.Err() == nil {
					sm.logger.Error("Directory selected-flag consumer stopped", "error", err)
				}
			}()
		}
	}

	return nil
}

// ===== SERVICE GETTERS =====

func (sm *serviceManager) Task() TaskService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Task.Enabled && sm.taskService != nil {
		return sm.taskService
	}

	panic("task service not enabled or not initialized")
}

func (sm *serviceManager) Assignment() AssignmentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Assignment.Enabled && sm.assignmentService != nil {
		return sm.assignmentService
	}

	panic("assignment service not enabled or not initialized")
}

func (sm *serviceManager) Directory() DirectoryService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Directory.Enabled && sm.directoryService != nil {
		return sm.directoryService
	}

	panic("directory service not enabled or not initialized")
}

func (sm *serviceManager) Identity() IdentityService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Identity.Enabled && sm.identityService != nil {
		return sm.identityService
	}

	panic("identity service not enabled or not initialized")
}

func (sm *serviceManager) Attendance() AttendanceService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}

	if sm.config.Attendance.Enabled && sm.attendanceService != nil {
		return sm.attendanceService
	}

	panic("attendance service not enabled or not initialized")
}

// ===== HEALTH AND LIFECYCLE =====

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}

	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if sm.consumerCancel != nil {
		sm.consumerCancel()
	}

	if repoManager, ok := sm.repo.(repositories.RepositoryManager); ok {
		if err := repoManager.Shutdown(ctx); err != nil {
			sm.logger.Error("Failed to shutdown repository manager", "error", err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}

// ===== UTILITY METHODS =====

// GetConfig returns the service manager configuration
func (sm *serviceManager) GetConfig() ServiceManagerConfig {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.config
}

// IsInitialized returns whether the service manager has been initialized
func (sm *serviceManager) IsInitialized() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.initialized
}

// IsShutdown returns whether the service manager has been shut down
func (sm *serviceManager) IsShutdown() bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return sm.shutdown
}

// WithTimeout creates a context with the default timeout
func (sm *serviceManager) WithTimeout(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, sm.config.DefaultTimeout)
}

// ===== CONFIGURATION VALIDATION =====

// ValidateConfig validates the service manager configuration
func (config *ServiceManagerConfig) Validate() error {
	var errors []string

	if config.DefaultTimeout <= 0 {
		errors = append(errors, "default timeout must be positive")
	}

	if config.MaxRetries < 0 {
		errors = append(errors, "max retries cannot be negative")
	}

	if err := config.Task.validate("task"); err != nil {
		errors = append(errors, err.Error())
	}

	if err := config.Directory.validate("directory"); err != nil {
		errors = append(errors, err.Error())
	}

	if err := config.Assignment.validate("assignment"); err != nil {
		errors = append(errors, err.Error())
	}

	if err := config.Attendance.validate("attendance"); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func (sc *ServiceConfig) validate(serviceName string) error {
	var errors []string

	if sc.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("%s: cache TTL cannot be negative", serviceName))
	}

	if sc.ValidationLevel < ValidationBasic || sc.ValidationLevel > ValidationFull {
		errors = append(errors, fmt.Sprintf("%s: invalid validation level", serviceName))
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", errors[0])
	}

	return nil
}

// ===== FACTORY FUNCTIONS =====

// CreateProductionServiceManager creates a service manager configured for production
func CreateProductionServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, accounts *casdoor.AccountManager, timezone string) ServiceManager {
	config := ServiceManagerConfig{
		EnableDebugLogging: false,
		LogLevel:           slog.LevelInfo,

		Task: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    true,
			CacheTTL:        5 * time.Minute,
			ValidationLevel: ValidationFull,
			AuditingEnabled: true,
		},
		Directory: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    true,
			CacheTTL:        2 * time.Minute,
			ValidationLevel: ValidationFull,
			AuditingEnabled: true,
		},
		Assignment: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    false, // capacity checks read live rows
			CacheTTL:        0,
			ValidationLevel: ValidationStrict,
			AuditingEnabled: true,
		},
		Attendance: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    false,
			CacheTTL:        0,
			ValidationLevel: ValidationBasic,
			AuditingEnabled: false,
		},
		Identity: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    true,
			CacheTTL:        15 * time.Minute,
			ValidationLevel: ValidationStrict,
			AuditingEnabled: true,
		},

		Timezone:       timezone,
		DefaultTimeout: 60 * time.Second,
		MaxRetries:     3,
		RateLimitingRules: map[string]RateLimit{
			"task_create":      {RequestsPerMinute: 60, BurstSize: 10},
			"volunteer_assign": {RequestsPerMinute: 120, BurstSize: 20},
			"register":         {RequestsPerMinute: 30, BurstSize: 5},
		},
	}

	return NewServiceManager(db, repo, logger, validator, publisher, accounts, config)
}

// CreateDevelopmentServiceManager creates a service manager configured for development
func CreateDevelopmentServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, accounts *casdoor.AccountManager) ServiceManager {
	config := ServiceManagerConfig{
		EnableDebugLogging: true,
		LogLevel:           slog.LevelDebug,

		Task: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    false,
			CacheTTL:        0,
			ValidationLevel: ValidationBasic,
			AuditingEnabled: false,
		},
		Directory: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    false,
			CacheTTL:        0,
			ValidationLevel: ValidationBasic,
			AuditingEnabled: false,
		},
		Assignment: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    false,
			CacheTTL:        0,
			ValidationLevel: ValidationBasic,
			AuditingEnabled: false,
		},
		Attendance: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    false,
			CacheTTL:        0,
			ValidationLevel: ValidationBasic,
			AuditingEnabled: false,
		},
		Identity: ServiceConfig{
			Enabled:         true,
			CacheEnabled:    false,
			CacheTTL:        0,
			ValidationLevel: ValidationBasic,
			AuditingEnabled: false,
		},

		Timezone:          "America/Mexico_City",
		DefaultTimeout:    10 * time.Second,
		MaxRetries:        1,
		RateLimitingRules: make(map[string]RateLimit),
	}

	return NewServiceManager(db, repo, logger, validator, publisher, accounts, config)
}
