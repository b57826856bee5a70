package recipe

import (
	"errors"
	"fmt"
	"time"
)

// EvalTimeout is the default hard limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// ErrEvalTimeout is returned when a recipe runs past the engine timeout.
// The sandbox keeps running in the background; its result is dropped.
var ErrEvalTimeout = errors.New("recipe evaluation timed out")

// ErrSuperseded is returned to an Evaluate call whose result arrived
// after a newer call started. Callers can ignore it.
var ErrSuperseded = errors.New("recipe evaluation superseded by newer request")

type evalResult struct {
	recipe *Recipe
	errors []EvalError
	err    error
}

// wait blocks for the result of evaluation gen. A result that belongs to
// an older generation is reported as ErrSuperseded.
func (e *Engine) wait(ch <-chan evalResult, gen uint64) (*Recipe, []EvalError, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = EvalTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if gen != e.currentGeneration() {
			return nil, nil, ErrSuperseded
		}
		return res.recipe, res.errors, res.err
	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrEvalTimeout, timeout)
	}
}

func (e *Engine) nextGeneration() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generation++
	return e.generation
}

func (e *Engine) currentGeneration() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}
