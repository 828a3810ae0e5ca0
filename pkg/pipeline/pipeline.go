// Package pipeline resolves candidate facts against the memory store. Each
// candidate flows through embed, search, decide, and apply stages; a batch
// runs its candidates on a bounded worker pool and one candidate's failure
// never touches the others.
package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/931405/mem1/pkg/conversation"
	"github.com/931405/mem1/pkg/decision"
	"github.com/931405/mem1/pkg/embedding"
	"github.com/931405/mem1/pkg/log"
	"github.com/931405/mem1/pkg/mem/ltm"
	"github.com/931405/mem1/pkg/session"
)

// ErrSaturated is reported for candidates turned away under the reject
// saturation policy.
var ErrSaturated = errors.New("resolution pool saturated")

// State is how far a candidate travelled through the pipeline.
type State string

const (
	// StatePending means no stage has run yet.
	StatePending State = "PENDING"
	// StateEmbedded means the candidate has its vector.
	StateEmbedded State = "EMBEDDED"
	// StateSearched means similar memories have been retrieved.
	StateSearched State = "SEARCHED"
	// StateDecided means an action was chosen but not yet applied.
	StateDecided State = "DECIDED"
	// StateApplied is the terminal success state.
	StateApplied State = "APPLIED"
	// StateFailed is the terminal failure state; Outcome.Err says why.
	StateFailed State = "FAILED"
)

// SaturationPolicy controls what happens to a candidate when all workers
// are busy.
type SaturationPolicy string

const (
	// SaturationBlock waits for a free worker. The default.
	SaturationBlock SaturationPolicy = "block"
	// SaturationCallerRuns runs the candidate on the submitting goroutine.
	SaturationCallerRuns SaturationPolicy = "callerruns"
	// SaturationReject fails the candidate with ErrSaturated.
	SaturationReject SaturationPolicy = "reject"
)

// Defaults applied by NewResolver when Options fields are zero.
const (
	DefaultTopK    = 5
	DefaultWorkers = 5
)

// Options tunes a Resolver.
type Options struct {
	// TopK is how many similar memories each candidate is compared with.
	TopK int
	// Workers bounds how many candidates resolve concurrently.
	Workers int
	// Saturation picks the policy for a full pool.
	Saturation SaturationPolicy
}

// Outcome is the per-candidate result. Outcomes keep the order of the
// candidates they came from.
type Outcome struct {
	// Fact is the candidate this outcome describes.
	Fact ltm.Fact
	// State is the terminal state the candidate reached.
	State State
	// Action is what the pipeline decided, when it got that far.
	Action decision.Action
	// MemoryID is the record created, rewritten, or removed by the action.
	MemoryID string
	// UsedFallback reports that the heuristic decided because the
	// configured decider failed.
	UsedFallback bool
	// Err is set when State is StateFailed.
	Err error
}

// BatchResult aggregates one ResolveBatch call.
type BatchResult struct {
	Outcomes []Outcome
	Added    int
	Updated  int
	Deleted  int
	Skipped  int
	Failed   int
}

// Resolver runs the candidate resolution pipeline against one store.
type Resolver struct {
	store    ltm.Store
	embedder embedding.Embedder
	decider  decision.Decider
	opts     Options

	sem *semaphore.Weighted

	// now is swapped in tests for deterministic timestamps.
	now func() time.Time
}

// NewResolver creates a resolver. decider may be nil, in which case every
// decision comes from the fallback heuristic.
func NewResolver(store ltm.Store, embedder embedding.Embedder, decider decision.Decider, opts Options) *Resolver {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Saturation == "" {
		opts.Saturation = SaturationBlock
	}

	return &Resolver{
		store:    store,
		embedder: embedder,
		decider:  decider,
		opts:     opts,
		sem:      semaphore.NewWeighted(int64(opts.Workers)),
		now:      time.Now,
	}
}

// ResolveBatch resolves the candidates and returns when all of them have
// reached a terminal state. Cancelling ctx abandons candidates that have
// not started; running ones observe the cancellation through their own
// stage calls.
func (r *Resolver) ResolveBatch(ctx context.Context, sessionID session.ID, candidates []ltm.Fact) BatchResult {
	outcomes := make([]Outcome, len(candidates))
	if len(candidates) == 0 {
		return BatchResult{Outcomes: outcomes}
	}

	log.DebugContext(ctx, "Resolving candidate batch",
		"session_id", string(sessionID),
		"candidates", len(candidates),
		"workers", r.opts.Workers,
	)

	var wg sync.WaitGroup
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			outcomes[i] = Outcome{Fact: candidate, State: StateFailed, Err: err}
			continue
		}

		switch r.opts.Saturation {
		case SaturationReject:
			if !r.sem.TryAcquire(1) {
				outcomes[i] = Outcome{Fact: candidate, State: StateFailed, Err: ErrSaturated}
				continue
			}
		case SaturationCallerRuns:
			if !r.sem.TryAcquire(1) {
				outcomes[i] = r.resolveOne(ctx, sessionID, candidate)
				continue
			}
		default:
			if err := r.sem.Acquire(ctx, 1); err != nil {
				outcomes[i] = Outcome{Fact: candidate, State: StateFailed, Err: err}
				continue
			}
		}

		wg.Add(1)
		go func(i int, candidate ltm.Fact) {
			defer wg.Done()
			defer r.sem.Release(1)
			outcomes[i] = r.resolveOne(ctx, sessionID, candidate)
		}(i, candidate)
	}
	wg.Wait()

	result := BatchResult{Outcomes: outcomes}
	for _, outcome := range outcomes {
		switch {
		case outcome.State == StateFailed:
			result.Failed++
		case outcome.Action == decision.ActionAdd:
			result.Added++
		case outcome.Action == decision.ActionUpdate:
			result.Updated++
		case outcome.Action == decision.ActionDelete:
			result.Deleted++
		default:
			result.Skipped++
		}
	}

	log.DebugContext(ctx, "Candidate batch resolved",
		"added", result.Added,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result
}

// Go runs ResolveBatch on its own goroutine and delivers the result on the
// returned channel.
func (r *Resolver) Go(ctx context.Context, sessionID session.ID, candidates []ltm.Fact) <-chan BatchResult {
	results := make(chan BatchResult, 1)
	go func() {
		results <- r.ResolveBatch(ctx, sessionID, candidates)
		close(results)
	}()
	return results
}

// resolveOne walks a single candidate through every stage.
func (r *Resolver) resolveOne(ctx context.Context, sessionID session.ID, candidate ltm.Fact) Outcome {
	outcome := Outcome{Fact: candidate, State: StatePending}

	vector, err := r.embedder.Embed(ctx, candidate.Text)
	if err != nil {
		outcome.State = StateFailed
		outcome.Err = err
		log.WarnContext(ctx, "Candidate embedding failed", "fact", candidate.Text, "error", err)
		return outcome
	}
	outcome.State = StateEmbedded

	neighbors, err := ltm.Search(ctx, r.store, sessionID, vector, r.opts.TopK)
	if err != nil {
		outcome.State = StateFailed
		outcome.Err = err
		log.WarnContext(ctx, "Similarity search failed", "fact", candidate.Text, "error", err)
		return outcome
	}
	outcome.State = StateSearched

	action := decision.ActionNoop
	if r.decider != nil {
		action, err = r.decider.Decide(ctx, candidate, neighbors)
	}
	if r.decider == nil || err != nil {
		if err != nil {
			log.WarnContext(ctx, "Decider failed, using fallback heuristic", "fact", candidate.Text, "error", err)
		}
		action = decision.Fallback(candidate, neighbors)
		outcome.UsedFallback = true
	}
	outcome.State = StateDecided
	outcome.Action = action

	memoryID, effective, err := r.apply(ctx, sessionID, action, candidate, vector, neighbors)
	if err != nil {
		outcome.State = StateFailed
		outcome.Err = err
		log.WarnContext(ctx, "Applying decision failed", "fact", candidate.Text, "action", action.String(), "error", err)
		return outcome
	}
	outcome.Action = effective
	outcome.MemoryID = memoryID
	outcome.State = StateApplied
	return outcome
}

// apply executes the decided action. It returns the affected memory ID
// (or "" when nothing was touched) and the action that actually happened,
// which differs from the decided one when the target is gone: UPDATE
// degrades to ADD, DELETE to NOOP.
func (r *Resolver) apply(ctx context.Context, sessionID session.ID, action decision.Action, candidate ltm.Fact, vector []float32, neighbors []ltm.SimilarityResult) (string, decision.Action, error) {
	switch action {
	case decision.ActionAdd:
		id, err := r.applyAdd(ctx, sessionID, candidate, vector)
		return id, decision.ActionAdd, err

	case decision.ActionUpdate:
		if len(neighbors) == 0 {
			// Nothing to rewrite; the fact still deserves to be stored.
			id, err := r.applyAdd(ctx, sessionID, candidate, vector)
			return id, decision.ActionAdd, err
		}
		target := neighbors[0].MemoryID
		updated, err := r.store.Update(ctx, target, r.updateVector(ctx, candidate, vector), candidate)
		if err != nil {
			return "", decision.ActionUpdate, err
		}
		if !updated {
			// The target vanished between search and apply.
			id, err := r.applyAdd(ctx, sessionID, candidate, vector)
			return id, decision.ActionAdd, err
		}
		return target, decision.ActionUpdate, nil

	case decision.ActionDelete:
		if len(neighbors) == 0 {
			return "", decision.ActionNoop, nil
		}
		target := neighbors[0].MemoryID
		deleted, err := r.store.Delete(ctx, target)
		if err != nil {
			return "", decision.ActionDelete, err
		}
		if !deleted {
			return "", decision.ActionNoop, nil
		}
		return target, decision.ActionDelete, nil

	default:
		return "", decision.ActionNoop, nil
	}
}

func (r *Resolver) applyAdd(ctx context.Context, sessionID session.ID, candidate ltm.Fact, vector []float32) (string, error) {
	turn := conversation.MessagePair{
		SessionID:   sessionID,
		UserMessage: "Auto: " + candidate.Text,
		AIResponse:  "Added to memory",
		Timestamp:   r.now().UnixMilli(),
	}
	return r.store.Upsert(ctx, sessionID, turn, vector, candidate)
}

// updateVector re-embeds the fact together with its category so the stored
// vector reflects the rewritten record. The candidate's own vector is the
// fallback when that fails.
func (r *Resolver) updateVector(ctx context.Context, candidate ltm.Fact, vector []float32) []float32 {
	enriched, err := r.embedder.Embed(ctx, candidate.Text+" "+candidate.Category)
	if err != nil {
		log.DebugContext(ctx, "Re-embedding for update failed, keeping candidate vector", "error", err)
		return vector
	}
	return enriched
}
