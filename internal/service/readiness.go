package service

import (
	"context"
	"log"

	"perpguard/internal/domain"
)

// ReadinessProbe is one named precondition for trading a cycle
type ReadinessProbe struct {
	Name  string
	Check func(ctx context.Context) (bool, error)
}

// ReadinessGate aggregates the preconditions the orchestrator consults
// before requesting decisions: macro strategy validity, forecast
// freshness, market-data freshness, sentiment presence. A probe error
// counts as not ready; trading on incomplete context is worse than
// skipping a cycle.
type ReadinessGate struct {
	probes []ReadinessProbe
}

// NewReadinessGate creates a gate over the given probes
func NewReadinessGate(probes ...ReadinessProbe) *ReadinessGate {
	return &ReadinessGate{probes: probes}
}

// Check evaluates all probes and lists the missing ones
func (g *ReadinessGate) Check(ctx context.Context) (*domain.ReadinessResult, error) {
	result := &domain.ReadinessResult{Ready: true}

	for _, probe := range g.probes {
		ok, err := probe.Check(ctx)
		if err != nil {
			log.Printf("[WARN] Readiness probe %s failed: %v", probe.Name, err)
			ok = false
		}
		if !ok {
			result.Ready = false
			result.Missing = append(result.Missing, probe.Name)
		}
	}

	return result, nil
}
