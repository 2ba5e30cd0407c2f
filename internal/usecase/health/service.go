// Package health aggregates the availability of the catalog store, the vector
// index and the embedding provider.
package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component is failing; recommendations
	// still work through the local tiers.
	Degraded Status = "degraded"
	// Unhealthy indicates the catalog store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckDisabled marks a component that is not configured.
	CheckDisabled CheckResult = "disabled"
)

// Component names.
const (
	ComponentCatalog     = "catalog"
	ComponentVectorIndex = "vector_index"
	ComponentEmbedding   = "embedding"
)

// DefaultCheckTimeout bounds each component check.
const DefaultCheckTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	catalog   Pinger
	index     Pinger
	embedding EmbeddingChecker
	timeout   time.Duration
}

// New creates a Service. index and embedding can be nil.
func New(catalog, index Pinger, embedding EmbeddingChecker) *Service {
	return &Service{catalog: catalog, index: index, embedding: embedding, timeout: DefaultCheckTimeout}
}

// Check runs all component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	checks := map[string]CheckResult{
		ComponentVectorIndex: CheckDisabled,
		ComponentEmbedding:   CheckDisabled,
	}
	var mu sync.Mutex
	set := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			checks[name] = CheckError
			return
		}
		checks[name] = CheckOK
	}

	var g errgroup.Group
	run := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			set(name, fn(cctx))
			return nil
		})
	}

	run(ComponentCatalog, s.catalog.Ping)
	if s.index != nil {
		run(ComponentVectorIndex, s.index.Ping)
	}
	if s.embedding != nil {
		run(ComponentEmbedding, s.embedding.HealthCheck)
	}
	_ = g.Wait()

	status := Healthy
	for name, v := range checks {
		if v != CheckError {
			continue
		}
		if name == ComponentCatalog {
			status = Unhealthy
			break
		}
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}
