package stage

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cartmetrics/abtest-cli/internal/runlog"
)

// Engine orchestrates stage runs.
type Engine struct {
	env *Env
	reg *Registry
}

// RunOpts configures which stages to run.
type RunOpts struct {
	Stages []string // restrict to specific stage names
}

// NewEngine creates a new stage engine.
func NewEngine(env *Env, reg *Registry) *Engine {
	return &Engine{env: env, reg: reg}
}

// Run executes the selected stages. Stages with no unmet requirements run
// concurrently in waves; a failed stage does not stop the run, but stages
// that require it are skipped. Returns an error when any stage failed.
func (e *Engine) Run(ctx context.Context, opts RunOpts) error {
	log := zap.L().With(zap.String("component", "stage.engine"))

	stages, err := e.reg.Select(opts.Stages)
	if err != nil {
		return err
	}
	if len(stages) == 0 {
		log.Info("no stages selected")
		return nil
	}
	log.Info("selected stages", zap.Int("count", len(stages)))

	selected := make(map[string]bool, len(stages))
	for _, s := range stages {
		selected[s.Name()] = true
	}

	var mu sync.Mutex
	done := make(map[string]bool)    // completed successfully
	failed := make(map[string]bool)  // ran and failed
	skipped := make(map[string]bool) // requirement failed or skipped

	pending := append([]Stage(nil), stages...)
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		var wave, rest []Stage
		for _, s := range pending {
			ready, blocked := true, false
			for _, req := range s.Requires() {
				if !selected[req] {
					continue // assumed staged by a previous run
				}
				if failed[req] || skipped[req] {
					blocked = true
					break
				}
				if !done[req] {
					ready = false
				}
			}
			switch {
			case blocked:
				skipped[s.Name()] = true
				log.Warn("skipping stage, requirement failed", zap.String("stage", s.Name()))
			case ready:
				wave = append(wave, s)
			default:
				rest = append(rest, s)
			}
		}

		if len(wave) == 0 {
			if len(rest) > 0 {
				return eris.New("stage: dependency cycle among selected stages")
			}
			break
		}

		g := new(errgroup.Group)
		for _, s := range wave {
			g.Go(func() error {
				err := e.runStage(ctx, s)
				mu.Lock()
				if err != nil {
					failed[s.Name()] = true
				} else {
					done[s.Name()] = true
				}
				mu.Unlock()
				return nil // fail soft: the wave always finishes
			})
		}
		_ = g.Wait()

		pending = rest
	}

	log.Info("engine run complete",
		zap.Int("staged", len(done)),
		zap.Int("failed", len(failed)),
		zap.Int("skipped", len(skipped)),
	)
	if len(failed) > 0 || len(skipped) > 0 {
		return eris.Errorf("stage: %d of %d stages did not complete", len(failed)+len(skipped), len(stages))
	}
	return nil
}

// runStage executes one stage and records it in the run log.
func (e *Engine) runStage(ctx context.Context, s Stage) error {
	log := zap.L().With(zap.String("stage", s.Name()))
	log.Info("starting stage")

	var runID int64
	if e.env.Runs != nil {
		var err error
		runID, err = e.env.Runs.Start(ctx, s.Name())
		if err != nil {
			log.Error("failed to record stage start", zap.Error(err))
		}
	}

	start := time.Now()
	result, err := s.Run(ctx, e.env)
	elapsed := time.Since(start)

	if err != nil {
		log.Error("stage failed", zap.Error(err), zap.Duration("elapsed", elapsed))
		if e.env.Runs != nil && runID != 0 {
			if logErr := e.env.Runs.Fail(ctx, runID, err.Error()); logErr != nil {
				log.Error("failed to record stage failure", zap.Error(logErr))
			}
		}
		return err
	}

	if e.env.Runs != nil && runID != 0 {
		if logErr := e.env.Runs.Complete(ctx, runID, &runlog.Result{
			RowsWritten: result.RowsWritten,
			Metadata:    result.Metadata,
		}); logErr != nil {
			log.Error("failed to record stage completion", zap.Error(logErr))
		}
	}

	log.Info("stage complete",
		zap.Int64("rows", result.RowsWritten),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}
