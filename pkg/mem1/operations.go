package mem1

import (
	"context"

	"github.com/931405/mem1/pkg/conversation"
	"github.com/931405/mem1/pkg/extraction"
	"github.com/931405/mem1/pkg/log"
	"github.com/931405/mem1/pkg/mem/ltm"
	"github.com/931405/mem1/pkg/pipeline"
	"github.com/931405/mem1/pkg/session"
)

// opCtx scopes the context to the session: the ID itself plus a logger that
// carries it, so every downstream log line names the session.
func (c *Client) opCtx(ctx context.Context, sessionID session.ID) context.Context {
	if id, ok := session.FromContext(ctx); ok && id == sessionID {
		return ctx
	}
	ctx = session.WithID(ctx, sessionID)
	return log.WithLogger(ctx, log.WithSession(log.FromContext(ctx), sessionID))
}

// RecordTurn appends a conversational turn to the durable log and the
// short-term cache. It does not touch long-term memory.
func (c *Client) RecordTurn(ctx context.Context, sessionID session.ID, userMessage, aiResponse string) error {
	ctx = c.opCtx(ctx, sessionID)
	turn := conversation.MessagePair{
		SessionID:   sessionID,
		UserMessage: userMessage,
		AIResponse:  aiResponse,
		Timestamp:   c.now().UnixMilli(),
	}

	if err := c.log.Append(ctx, turn); err != nil {
		log.ErrorContext(ctx, "Failed to append conversation turn", "error", err)
		return err
	}
	c.shortTerm.Add(sessionID, turn)

	c.mu.Lock()
	c.stats.TurnsRecorded++
	c.mu.Unlock()

	return nil
}

// ExtractAndResolve records the turn, extracts candidate facts from it and
// resolves each against long-term memory. The extraction request carries the
// session's global summary and recent history as rendered before this turn.
func (c *Client) ExtractAndResolve(ctx context.Context, sessionID session.ID, userMessage, aiResponse string) (pipeline.BatchResult, error) {
	ctx = c.opCtx(ctx, sessionID)

	currentSummary, err := c.summaries.Current(ctx, sessionID)
	if err != nil {
		log.WarnContext(ctx, "Failed to load global summary, extracting without it", "error", err)
		currentSummary = ""
	}
	recentContext := c.shortTerm.BuildContext(ctx, sessionID)

	if err := c.RecordTurn(ctx, sessionID, userMessage, aiResponse); err != nil {
		return pipeline.BatchResult{}, err
	}

	candidates, err := c.extractor.Extract(ctx, extraction.Request{
		Summary:       currentSummary,
		RecentContext: recentContext,
		UserMessage:   userMessage,
		AIResponse:    aiResponse,
	})
	if err != nil {
		log.WarnContext(ctx, "Fact extraction failed, turn recorded without memory update", "error", err)
		return pipeline.BatchResult{}, err
	}
	if len(candidates) == 0 {
		log.DebugContext(ctx, "No facts extracted from turn")
		return pipeline.BatchResult{}, nil
	}

	return c.ResolveFacts(ctx, sessionID, candidates), nil
}

// ResolveFacts runs the candidates through the resolution pipeline and
// accumulates the outcome counts in the client stats.
func (c *Client) ResolveFacts(ctx context.Context, sessionID session.ID, candidates []ltm.Fact) pipeline.BatchResult {
	result := c.resolver.ResolveBatch(c.opCtx(ctx, sessionID), sessionID, candidates)

	c.mu.Lock()
	c.stats.Added += result.Added
	c.stats.Updated += result.Updated
	c.stats.Deleted += result.Deleted
	c.stats.Skipped += result.Skipped
	c.stats.Failed += result.Failed
	c.mu.Unlock()

	return result
}

// Search embeds the query text and returns the session's most similar
// memories, best first.
func (c *Client) Search(ctx context.Context, sessionID session.ID, query string, topK int) ([]ltm.SimilarityResult, error) {
	ctx = c.opCtx(ctx, sessionID)

	vector, err := c.embedder.Embed(ctx, query)
	if err != nil {
		log.ErrorContext(ctx, "Failed to embed search query", "error", err)
		return nil, err
	}
	return ltm.Search(ctx, c.store, sessionID, vector, topK)
}

// Memories returns the session's memory records in insertion order.
func (c *Client) Memories(ctx context.Context, sessionID session.ID) ([]ltm.MemoryRecord, error) {
	return c.store.ListBySession(ctx, sessionID)
}

// MemoryCount returns the total number of memory records across sessions.
func (c *Client) MemoryCount(ctx context.Context) (int, error) {
	return c.store.Count(ctx)
}

// Recent returns up to n most recent turns for the session, oldest-first.
func (c *Client) Recent(ctx context.Context, sessionID session.ID, n int) []conversation.MessagePair {
	return c.shortTerm.GetRecent(ctx, sessionID, n)
}

// ShortTermContext renders the session's recent history as prompt context.
func (c *Client) ShortTermContext(ctx context.Context, sessionID session.ID) string {
	return c.shortTerm.BuildContext(ctx, sessionID)
}

// ClearShortTerm drops the session's cached history. The durable log keeps
// its turns, so the next read hydrates from there.
func (c *Client) ClearShortTerm(sessionID session.ID) {
	c.shortTerm.Clear(sessionID)
}

// UpdateSummary appends a new revision of the session's global summary.
func (c *Client) UpdateSummary(ctx context.Context, sessionID session.ID, text string) error {
	return c.summaries.Append(ctx, sessionID, text)
}

// CurrentSummary returns the latest summary revision for the session, or
// the empty string when none exists.
func (c *Client) CurrentSummary(ctx context.Context, sessionID session.ID) (string, error) {
	return c.summaries.Current(ctx, sessionID)
}

// Stats returns a snapshot of the accumulated counters.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
