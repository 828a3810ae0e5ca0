// Package extraction turns a conversation turn into candidate facts for
// the resolution pipeline, normalizing the many shapes a language model
// wraps its answer in.
package extraction

import (
	"context"

	"github.com/931405/mem1/pkg/mem/ltm"
)

// Request carries the context an extractor sees for one turn. Summary and
// RecentContext may be empty; both messages together describe the turn.
type Request struct {
	// Summary is the session's current global summary, if any.
	Summary string
	// RecentContext is the rendered short-term conversation history.
	RecentContext string
	// UserMessage is the user's side of the turn.
	UserMessage string
	// AIResponse is the assistant's side of the turn.
	AIResponse string
}

// Extractor pulls candidate facts out of a conversation turn. An empty
// result with a nil error means the turn contained nothing worth
// remembering.
type Extractor interface {
	Extract(ctx context.Context, req Request) ([]ltm.Fact, error)
}
