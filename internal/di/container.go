// Package di provides the dependency container that builds and tears down the miniappctl services.
package di

import (
	"context"
	"database/sql"
	"sync"

	"miniappctl/internal/config"
	"miniappctl/internal/database"
	"miniappctl/internal/observability"
	"miniappctl/internal/services"
	contextutils "miniappctl/internal/utils"
)

const (
	manifestServiceName  = "manifest"
	migrationServiceName = "migration"
	registryServiceName  = "registry"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetManifestService() (services.ManifestServiceInterface, error)
	GetMigrationService() (services.ChainWarningMigratorInterface, error)
	GetRegistryService(ctx context.Context) (services.RegistryServiceInterface, error)
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages the service dependencies of one CLI run. The
// filesystem services are built by Initialize; the registry database is
// connected on first use so commands that do not need it work without one.
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize builds the manifest and migration services
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	validator, err := services.NewManifestValidator(sc.cfg)
	if err != nil {
		return contextutils.WrapError(err, "failed to initialize manifest validator")
	}
	sc.services[manifestServiceName] = services.NewManifestService(sc.cfg, validator, sc.logger)
	sc.services[migrationServiceName] = services.NewMigrationService(sc.cfg, sc.logger)

	sc.logger.Debug(ctx, "Services initialized", map[string]interface{}{"services": len(sc.services)})
	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetManifestService returns the manifest service
func (sc *ServiceContainer) GetManifestService() (services.ManifestServiceInterface, error) {
	return GetServiceAs[services.ManifestServiceInterface](sc, manifestServiceName)
}

// GetMigrationService returns the chain warning migrator
func (sc *ServiceContainer) GetMigrationService() (services.ChainWarningMigratorInterface, error) {
	return GetServiceAs[services.ChainWarningMigratorInterface](sc, migrationServiceName)
}

// GetRegistryService returns the registry service, connecting to the
// database and applying migrations on first use.
func (sc *ServiceContainer) GetRegistryService(ctx context.Context) (services.RegistryServiceInterface, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if svc, ok := sc.services[registryServiceName].(services.RegistryServiceInterface); ok {
		return svc, nil
	}

	db, err := database.NewManager(sc.logger).InitDBWithConfig(ctx, sc.cfg.Database)
	if err != nil {
		return nil, err
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	store := services.NewSQLRegistryStore(db, sc.logger)
	svc := services.NewRegistryService(sc.cfg, store, sc.logger)
	sc.services[registryServiceName] = svc
	return svc, nil
}

// GetDatabase returns the registry database, or nil before the registry was first used
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown releases everything the container opened, in reverse order
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	var errors []error
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := observability.TraceFunctionWithErrorHandling(ctx, "container", "Shutdown", sc.shutdownFuncs[i]); err != nil {
			sc.logger.Error(ctx, "Shutdown step failed", err)
			errors = append(errors, err)
		}
	}
	sc.shutdownFuncs = nil
	delete(sc.services, registryServiceName)
	sc.db = nil

	if len(errors) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errors)
	}
	return nil
}
