package orchestrator

import (
	"context"
	"log"
	"strings"

	"github.com/droidpilot/droidpilot/internal/logging"
	"github.com/droidpilot/droidpilot/internal/planner"
	"github.com/droidpilot/droidpilot/pkg/models"
)

// runIterations drives the bounded execute/decide loop. Results accumulate
// across iterations and are never discarded; retried tasks contribute one
// result per attempt. Returns the accumulated results and whether the
// planner aborted the run.
func (o *Orchestrator) runIterations(ctx context.Context, text string, analysis *planner.Analysis) ([]models.SubTaskResult, bool) {
	batch := make([]models.TaskDefinition, 0, len(analysis.SubTasks))
	known := make(map[string]models.TaskDefinition)
	for _, plan := range analysis.SubTasks {
		def := plan.Definition()
		batch = append(batch, def)
		known[def.ID] = def
	}

	var all []models.SubTaskResult

	for iteration := 1; iteration <= o.maxIterations; iteration++ {
		o.setPhase(PhaseExecuting)
		o.emitter.Emit(Event{
			Type:      EventPhaseChanged,
			Phase:     PhaseExecuting,
			Iteration: iteration,
		})
		logging.Debugf("[orchestrator] iteration %d/%d: executing %d tasks",
			iteration, o.maxIterations, len(batch))

		tree := o.currentTree()
		for _, def := range batch {
			tree.AddTask("root", def.ID, def.Description)
		}

		all = append(all, o.runBatch(ctx, batch)...)

		if o.ctrl.IsStopped() || ctx.Err() != nil {
			log.Printf("[orchestrator] stop observed after iteration %d, keeping %d results", iteration, len(all))
			return all, false
		}
		if iteration == o.maxIterations {
			log.Printf("[orchestrator] iteration cap %d reached", o.maxIterations)
			break
		}

		o.setPhase(PhaseDeciding)
		decision, err := o.planner.Decide(ctx, text, analysis, all)
		if err != nil {
			log.Printf("[orchestrator] decide failed, treating as COMPLETE: %v", err)
			decision = planner.CompleteDecision("planner unavailable: " + err.Error())
		}
		o.emitter.Emit(Event{
			Type:      EventDecision,
			Phase:     PhaseDeciding,
			Iteration: iteration,
			Message:   string(decision.Action) + ": " + decision.Reason,
		})
		logging.Debugf("[orchestrator] iteration %d decision: %s (%s)", iteration, decision.Action, decision.Reason)

		switch decision.Action {
		case planner.DecisionContinue, planner.DecisionComplete:
			return all, false

		case planner.DecisionAbort:
			// Remaining planned work is discarded; recorded results stand.
			for _, def := range known {
				o.currentTree().Skip(def.ID)
			}
			return all, true

		case planner.DecisionRetry:
			retry := retryBatch(decision.RetryIDs, known, all)
			if len(retry) == 0 {
				log.Printf("[orchestrator] RETRY named no retryable tasks, completing")
				return all, false
			}
			batch = retry

		case planner.DecisionSpawnNew:
			if len(decision.NewTasks) == 0 {
				return all, false
			}
			batch = batch[:0]
			for _, plan := range decision.NewTasks {
				def := plan.Definition()
				batch = append(batch, def)
				known[def.ID] = def
			}

		default:
			// Unknown verdicts fail safe to COMPLETE.
			log.Printf("[orchestrator] unknown decision action %q, completing", decision.Action)
			return all, false
		}
	}

	return all, false
}

// runBatch runs one task batch through the scheduler and returns the full
// results collected for it.
func (o *Orchestrator) runBatch(ctx context.Context, batch []models.TaskDefinition) []models.SubTaskResult {
	o.resMu.Lock()
	o.iterResults = nil
	o.resMu.Unlock()

	if _, err := o.sched.RunTasks(ctx, batch); err != nil {
		log.Printf("[orchestrator] batch ended early: %v", err)
	}

	o.resMu.Lock()
	defer o.resMu.Unlock()
	results := make([]models.SubTaskResult, len(o.iterResults))
	copy(results, o.iterResults)
	return results
}

// retryBatch resolves RETRY ids against the known definitions, keeping only
// tasks whose most recent attempt actually failed.
func retryBatch(ids []string, known map[string]models.TaskDefinition, all []models.SubTaskResult) []models.TaskDefinition {
	latest := latestOutcomes(all)

	var batch []models.TaskDefinition
	for _, id := range ids {
		id = strings.TrimSpace(id)
		def, ok := known[id]
		if !ok {
			log.Printf("[orchestrator] RETRY names unknown task %q, skipping", id)
			continue
		}
		if res, ok := latest[id]; ok && res.Success {
			logging.Debugf("[orchestrator] RETRY names succeeded task %q, skipping", id)
			continue
		}
		batch = append(batch, def)
	}
	return batch
}
