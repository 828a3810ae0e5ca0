// Package decision holds the memory action vocabulary and the logic that
// chooses an action for a candidate fact given its nearest existing
// memories.
package decision

import (
	"context"

	"github.com/931405/mem1/pkg/mem/ltm"
)

// Action is what the resolution pipeline does with a candidate fact. The
// vocabulary is closed; anything a model says that falls outside it
// normalizes to ActionNoop.
type Action string

const (
	// ActionAdd stores the candidate as a new memory.
	ActionAdd Action = "ADD"
	// ActionUpdate rewrites the closest existing memory with the candidate.
	ActionUpdate Action = "UPDATE"
	// ActionDelete removes the closest existing memory as contradicted.
	ActionDelete Action = "DELETE"
	// ActionNoop leaves the memory store untouched.
	ActionNoop Action = "NOOP"
)

func (a Action) String() string { return string(a) }

// Decider chooses an action for a candidate fact. neighbors are the most
// similar existing memories, best first; the slice may be empty.
type Decider interface {
	Decide(ctx context.Context, candidate ltm.Fact, neighbors []ltm.SimilarityResult) (Action, error)
}

// Fallback is the deterministic heuristic used when the configured Decider
// fails. It is a pure function of its inputs:
//
//  1. no similar memories: ADD
//  2. best similarity above 0.85: UPDATE
//  3. candidate confidence above 0.90: ADD
//  4. best similarity above 0.70 and confidence above 0.70: ADD
//  5. otherwise: NOOP
func Fallback(candidate ltm.Fact, neighbors []ltm.SimilarityResult) Action {
	if len(neighbors) == 0 {
		return ActionAdd
	}

	maxSimilarity := neighbors[0].Score

	if maxSimilarity > 0.85 {
		return ActionUpdate
	}
	if candidate.Confidence > 0.90 {
		return ActionAdd
	}
	if maxSimilarity > 0.70 && candidate.Confidence > 0.70 {
		return ActionAdd
	}
	return ActionNoop
}
