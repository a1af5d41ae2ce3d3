package simframe

import (
	"context"
	"fmt"
)

// Orchestrator runs one complete planner-driven search.
type Orchestrator[P Params] struct {
	Planner   Planner[P]
	Evaluator *Evaluator[P]
}

// Run evaluates frames until the planner converges and returns the best one.
// It leaves the flywheel running; the caller decides when to stop it.
func (o *Orchestrator[P]) Run(ctx context.Context) (SimFrame[P], error) {
	params := o.Planner.InitialStep()
	for {
		if _, err := o.Evaluator.Evaluate(ctx, params); err != nil {
			return SimFrame[P]{}, err
		}
		next, ok, err := o.Planner.NextStep(o.Evaluator.Journal)
		if err != nil {
			return SimFrame[P]{}, fmt.Errorf("planning frame %d: %w", o.Evaluator.Journal.Len(), err)
		}
		if !ok {
			break
		}
		params = next
	}
	return o.Evaluator.Journal.BestRun()
}
