package logging

import (
	"context"
	"sync"
)

var (
	globalService Service
	mu            sync.RWMutex
)

// InitService installs the service that receives records from the slog writer.
func InitService(service Service) {
	mu.Lock()
	defer mu.Unlock()
	globalService = service
}

// GetService returns the installed service, or nil before InitService.
func GetService() Service {
	mu.RLock()
	defer mu.RUnlock()
	return globalService
}

// Create stores log through the installed service. It is a no-op before InitService.
func Create(ctx context.Context, log Log) error {
	service := GetService()
	if service == nil {
		return nil
	}
	return service.Create(ctx, log)
}
