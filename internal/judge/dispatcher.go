package judge

import (
	"context"
	"sync"

	"github.com/codecrack-oj/apiserver/types"
)

// Executor runs a single test case to completion. Implementations must
// report failures through the result's status, never by panicking.
type Executor interface {
	Execute(ctx context.Context, req types.ExecutionRequest) types.ExecutionResult
}

// Dispatcher fans a submission's test cases out to the executor under a
// fixed concurrency cap. Results come back in request order no matter
// which executions finish first.
type Dispatcher struct {
	exec        Executor
	concurrency int
}

// NewDispatcher constructs a Dispatcher. concurrency bounds in-flight
// executions per batch and defaults to 1 when non-positive.
func NewDispatcher(exec Executor, concurrency int) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{exec: exec, concurrency: concurrency}
}

// RunBatch executes every request and returns one result per request,
// indexed by original position. The ctx carries the submission-wide
// deadline: requests not yet dispatched when it expires are recorded as
// StatusJudgeError without contacting the backend, while in-flight
// executions finish under their own per-call deadline. The batch never
// outlives the deadline by more than one in-flight call's worst case.
func (d *Dispatcher) RunBatch(ctx context.Context, reqs []types.ExecutionRequest) []types.ExecutionResult {
	results := make([]types.ExecutionResult, len(reqs))

	sem := make(chan struct{}, d.concurrency)
	var wg sync.WaitGroup
	for i, req := range reqs {
		select {
		case <-ctx.Done():
			results[i] = types.ExecutionResult{Status: types.StatusJudgeError}
			continue
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(slot int, req types.ExecutionRequest) {
			defer wg.Done()
			defer func() { <-sem }()
			results[slot] = d.exec.Execute(ctx, req)
		}(i, req)
	}
	wg.Wait()

	return results
}
