// Package stage turns the raw CSV objects into typed, staged parquet
// objects. Each stage is registered by name; the engine runs the selected
// stages, records them in the run log, and keeps going when one fails.
package stage

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cartmetrics/abtest-cli/internal/blob"
	"github.com/cartmetrics/abtest-cli/internal/config"
	"github.com/cartmetrics/abtest-cli/internal/runlog"
)

// ObjectStore is the slice of the blob client the stages use.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, data []byte) error
	List(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Recorder records stage executions. A nil Recorder disables recording.
type Recorder interface {
	Start(ctx context.Context, phase string) (int64, error)
	Complete(ctx context.Context, runID int64, result *runlog.Result) error
	Fail(ctx context.Context, runID int64, errMsg string) error
}

// Env carries the shared dependencies every stage needs.
type Env struct {
	Store ObjectStore
	Cfg   *config.Config
	Runs  Recorder
}

// RawKey returns the full object key of a raw dataset.
func (e *Env) RawKey(name string) string {
	return blob.JoinKey(e.Cfg.Storage.RawPrefix, name)
}

// ProcessedKey returns the full object key of a processed dataset.
func (e *Env) ProcessedKey(name string) string {
	return blob.JoinKey(e.Cfg.Storage.ProcessedPrefix, name)
}

// Result holds the outcome of a stage run.
type Result struct {
	RowsWritten int64          `json:"rows_written"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Stage transforms one raw dataset into its staged form.
type Stage interface {
	// Name returns the unique identifier for this stage (e.g., "users").
	Name() string

	// Requires lists stages that must complete earlier in the same run.
	// A requirement not selected for the run is assumed already staged.
	Requires() []string

	// Run reads the raw object(s), cleans them, and writes parquet.
	Run(ctx context.Context, env *Env) (*Result, error)
}

// Registry maps stage names to their implementations.
type Registry struct {
	stages map[string]Stage
	order  []string // insertion order for deterministic iteration
}

// NewRegistry creates a registry populated with all pipeline stages.
func NewRegistry() *Registry {
	r := &Registry{stages: make(map[string]Stage)}
	r.Register(&Users{})
	r.Register(&Products{})
	r.Register(&Sessions{})
	r.Register(&Assignments{})
	r.Register(&CleanEvents{})
	return r
}

// Register adds a stage to the registry.
func (r *Registry) Register(s Stage) {
	name := s.Name()
	r.stages[name] = s
	r.order = append(r.order, name)
}

// Get returns a stage by name.
func (r *Registry) Get(name string) (Stage, error) {
	s, ok := r.stages[name]
	if !ok {
		return nil, eris.Errorf("stage: unknown stage %q", name)
	}
	return s, nil
}

// Select returns the named stages, or all stages when names is empty.
func (r *Registry) Select(names []string) ([]Stage, error) {
	if len(names) == 0 {
		return r.All(), nil
	}
	var result []Stage
	for _, name := range names {
		s, err := r.Get(name)
		if err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, nil
}

// All returns all stages in registration order.
func (r *Registry) All() []Stage {
	result := make([]Stage, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.stages[name])
	}
	return result
}

// AllNames returns all registered stage names in registration order.
func (r *Registry) AllNames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
