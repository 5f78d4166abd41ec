package persistence

import (
	"fmt"
)

// NewJobStore creates a new JobStore based on the configuration
func NewJobStore(config StoreConfig) (JobStore, error) {
	switch config.Type {
	case StoreTypeMemory:
		return NewMemoryJobStore(), nil
	case StoreTypeRedis:
		return NewRedisJobStore(config)
	case StoreTypeGorm:
		return NewGormJobStore(config, nil)
	case StoreTypeMongo:
		return NewMongoJobStore(config)
	default:
		return nil, fmt.Errorf("unsupported job store type: %s", config.Type)
	}
}

// MustNewJobStore creates a new JobStore or panics on error.
//
// WARNING: This function should ONLY be used during application initialization
// (e.g., in main() or init()). For runtime store creation, use NewJobStore
// instead.
func MustNewJobStore(config StoreConfig) JobStore {
	store, err := NewJobStore(config)
	if err != nil {
		panic(fmt.Sprintf("failed to create job store: %v", err))
	}
	return store
}
