package scheduler

import (
	"context"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/droidpilot/droidpilot/internal/logging"
	"github.com/droidpilot/droidpilot/pkg/models"
)

// Executor runs a single task to a terminal state and reports its result.
// The per-task state machine lives behind this interface.
type Executor interface {
	Execute(ctx context.Context, def models.TaskDefinition) models.SubTaskResult
}

// StateRecorder records authoritative task states as scheduling progresses.
type StateRecorder interface {
	Set(taskID string, state models.TaskState)
}

// Scheduler drives dependency waves through the concurrency gate. Tasks in
// one wave run concurrently (bounded by the gate); the next wave starts only
// after every task in the current wave reached a terminal state.
type Scheduler struct {
	gate     *Gate
	executor Executor
	states   StateRecorder

	// OnWave is called before each wave is dispatched. Optional.
	OnWave func(waveIndex int, wave []models.TaskDefinition)
	// OnResult is called as each task reaches a terminal state. Optional.
	OnResult func(result models.SubTaskResult)
}

// New creates a Scheduler over the given gate and executor. The state
// recorder may be nil.
func New(gate *Gate, executor Executor, states StateRecorder) *Scheduler {
	if gate == nil {
		gate = NewGate(DefaultMaxConcurrentTasks)
	}
	return &Scheduler{gate: gate, executor: executor, states: states}
}

// Gate returns the scheduler's admission gate.
func (s *Scheduler) Gate() *Gate {
	return s.gate
}

// RunTasks partitions the tasks into waves and executes them all, returning
// a map of task ID to result text for every task that ran. A cancelled
// context stops dispatching new tasks; results already collected are kept.
func (s *Scheduler) RunTasks(ctx context.Context, defs []models.TaskDefinition) (map[string]string, error) {
	waves := GroupByDependency(defs)
	logging.Debugf("[scheduler] %d tasks partitioned into %d waves", len(defs), len(waves))

	// Tasks beyond the first wave are observably waiting on dependencies.
	if s.states != nil {
		for i, wave := range waves {
			for _, def := range wave {
				if i == 0 {
					s.states.Set(def.ID, models.Pending())
				} else {
					s.states.Set(def.ID, models.WaitingDeps())
				}
			}
		}
	}

	results := make(map[string]string, len(defs))
	var resultsMu sync.Mutex

	for i, wave := range waves {
		if err := ctx.Err(); err != nil {
			log.Printf("[scheduler] run cancelled before wave %d, %d results kept", i, len(results))
			return results, err
		}

		if s.OnWave != nil {
			s.OnWave(i, wave)
		}
		logging.Debugf("[scheduler] dispatching wave %d with %d tasks", i, len(wave))

		g, waveCtx := errgroup.WithContext(ctx)
		for _, def := range wave {
			g.Go(func() error {
				if err := s.gate.Acquire(waveCtx); err != nil {
					// Admission was cancelled; surface the skip as a result
					// so the caller does not lose track of the task.
					s.recordResult(results, &resultsMu, models.SubTaskResult{
						TaskID:  def.ID,
						Success: false,
						Result:  "cancelled before start",
					})
					return err
				}
				defer s.gate.Release()

				res := s.executor.Execute(waveCtx, def)
				s.recordResult(results, &resultsMu, res)
				return nil
			})
		}

		// Barrier: every task in the wave reaches a terminal state before
		// the next wave is considered.
		if err := g.Wait(); err != nil {
			return results, err
		}
		logging.Debugf("[scheduler] wave %d complete", i)
	}

	return results, nil
}

func (s *Scheduler) recordResult(results map[string]string, mu *sync.Mutex, res models.SubTaskResult) {
	mu.Lock()
	results[res.TaskID] = res.Result
	mu.Unlock()

	if s.OnResult != nil {
		s.OnResult(res)
	}
}
