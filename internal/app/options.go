package service

import (
	"time"

	"github.com/okian/scoutspr/internal/adapters/repository"
	"github.com/okian/scoutspr/internal/domain/scoring"
	"github.com/okian/scoutspr/internal/domain/spr"
	"github.com/okian/scoutspr/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of ingestion workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the observation queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSolverOptions replaces the solver configuration.
func WithSolverOptions(opts spr.Options) Option {
	return func(s *Service) {
		s.solver = opts
	}
}

// WithSchemaPath loads a YAML scoring schema on Start that overrides the
// embedded schema of the same year.
func WithSchemaPath(path string) Option {
	return func(s *Service) {
		s.schemaPath = path
	}
}

// WithSchemas replaces the embedded scoring schemas.
func WithSchemas(r scoring.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.schemas = r
		}
	}
}

// WithEPACache bounds the team EPA cache. A non-positive size disables it.
func WithEPACache(size int, ttl time.Duration) Option {
	return func(s *Service) {
		s.cacheSize = size
		s.cacheTTL = ttl
	}
}

// WithRecomputeInterval re-solves on a ticker whenever data changed since
// the last report. Zero disables the ticker.
func WithRecomputeInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.recomputeInterval = d
		}
	}
}

// WithStore replaces the in-memory store created by Start.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}
