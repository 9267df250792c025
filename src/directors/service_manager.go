package directors

import (
	"sync"

	"go.uber.org/zap"
)

type ServiceManager struct {
	ProjectService *ProjectService
	logger         *zap.SugaredLogger
}

// Private instance and mutex for thread safety
var (
	instance *ServiceManager
	once     sync.Once
	mu       sync.RWMutex
)

// GetServiceManager returns the singleton instance of ServiceManager
func GetServiceManager() *ServiceManager {
	mu.RLock()
	defer mu.RUnlock()

	if instance == nil {
		// Not initialized yet
		return &ServiceManager{}
	}
	return instance
}

// InitServiceManager initializes the ServiceManager singleton with services
func InitServiceManager(projectService *ProjectService, logger *zap.SugaredLogger) *ServiceManager {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()

		instance = &ServiceManager{
			ProjectService: projectService,
			logger:         logger,
		}

		if logger != nil {
			logger.Debug("ServiceManager singleton initialized")
		}
	})

	mu.RLock()
	defer mu.RUnlock()
	return instance
}

// ResetServiceManager is useful for testing - it resets the singleton
func ResetServiceManager() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}
