package infra

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perpguard/internal/usecase"
)

type runnerFunc func(ctx context.Context) (*usecase.CycleReport, error)

func (f runnerFunc) RunCycle(ctx context.Context) (*usecase.CycleReport, error) {
	return f(ctx)
}

func newTestScheduler(runner CycleRunner) *CycleScheduler {
	return NewCycleScheduler(runner, nil, 12, time.Minute)
}

func TestSchedulerUsesReportedInterval(t *testing.T) {
	s := newTestScheduler(runnerFunc(func(ctx context.Context) (*usecase.CycleReport, error) {
		return &usecase.CycleReport{NextIntervalMin: 6}, nil
	}))

	assert.Equal(t, 6, s.runCycle(context.Background()))
}

func TestSchedulerClampsReportedInterval(t *testing.T) {
	tests := []struct {
		name     string
		reported int
		want     int
	}{
		{"below floor", 1, 3},
		{"above ceiling", 40, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler(runnerFunc(func(ctx context.Context) (*usecase.CycleReport, error) {
				return &usecase.CycleReport{NextIntervalMin: tt.reported}, nil
			}))
			assert.Equal(t, tt.want, s.runCycle(context.Background()))
		})
	}
}

func TestSchedulerFallsBackOnCycleError(t *testing.T) {
	s := newTestScheduler(runnerFunc(func(ctx context.Context) (*usecase.CycleReport, error) {
		return nil, assert.AnError
	}))

	assert.Equal(t, 12, s.runCycle(context.Background()))
}

func TestSchedulerReschedulesAfterPanic(t *testing.T) {
	s := newTestScheduler(runnerFunc(func(ctx context.Context) (*usecase.CycleReport, error) {
		panic("cycle blew up")
	}))

	// A panicking cycle must still yield a valid next interval.
	require.NotPanics(t, func() {
		assert.Equal(t, 12, s.runCycle(context.Background()))
	})
}
