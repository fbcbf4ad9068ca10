// Package audit records every executed query together with the rows it returned.
package audit

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Step is one executed query.
type Step struct {
	Seq         int              `json:"seq"`
	Description string           `json:"description"`
	SQL         string           `json:"sql"`
	Args        []any            `json:"args,omitempty"`
	Columns     []string         `json:"columns"`
	Rows        []map[string]any `json:"-"`
	RowCount    int              `json:"row_count"`
	Error       string           `json:"error,omitempty"`
	StartedAt   time.Time        `json:"started_at"`
	Duration    time.Duration    `json:"duration_ns"`
}

// Sink receives audit steps. Implementations must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, step Step) error
}

// Memory keeps steps in memory.
type Memory struct {
	mu    sync.Mutex
	steps []Step
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(_ context.Context, step Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.steps = append(m.steps, step)

	return nil
}

// Steps returns a copy of the recorded steps in recording order.
func (m *Memory) Steps() []Step {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.steps)
}

// Find returns the first step with the given description.
func (m *Memory) Find(description string) (Step, bool) {
	for _, s := range m.Steps() {
		if s.Description == description {
			return s, true
		}
	}

	return Step{}, false
}

// Log writes steps as debug log lines.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a sink logging through logger.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}

	return &Log{logger: logger}
}

func (l *Log) Record(ctx context.Context, step Step) error {
	attrs := []any{"step", step.Description, "rows", step.RowCount, "duration", step.Duration}
	if step.Error != "" {
		attrs = append(attrs, "error", step.Error)
	}

	l.logger.DebugContext(ctx, "query executed", attrs...)
	l.logger.DebugContext(ctx, "query text", "step", step.Description, "sql", step.SQL, "args", step.Args)

	return nil
}

// Multi records into every sink and joins their errors.
type Multi []Sink

func (m Multi) Record(ctx context.Context, step Step) error {
	var errs []error

	for _, s := range m {
		if err := s.Record(ctx, step); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Nop discards steps.
type Nop struct{}

func (Nop) Record(context.Context, Step) error { return nil }
