package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/931405/mem1/pkg/mem/ltm"
)

func neighbors(scores ...float64) []ltm.SimilarityResult {
	results := make([]ltm.SimilarityResult, len(scores))
	for i, score := range scores {
		results[i] = ltm.SimilarityResult{MemoryID: "m", Score: score}
	}
	return results
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		neighbors  []ltm.SimilarityResult
		want       Action
	}{
		{name: "no neighbors adds", confidence: 0.1, neighbors: nil, want: ActionAdd},
		{name: "high similarity updates", confidence: 0.1, neighbors: neighbors(0.86), want: ActionUpdate},
		{name: "similarity at threshold does not update", confidence: 0.5, neighbors: neighbors(0.85), want: ActionNoop},
		{name: "high confidence adds despite weak match", confidence: 0.95, neighbors: neighbors(0.3), want: ActionAdd},
		{name: "confidence at threshold does not add", confidence: 0.90, neighbors: neighbors(0.3), want: ActionNoop},
		{name: "moderate similarity and confidence adds", confidence: 0.75, neighbors: neighbors(0.75), want: ActionAdd},
		{name: "moderate similarity low confidence noops", confidence: 0.5, neighbors: neighbors(0.75), want: ActionNoop},
		{name: "weak match weak confidence noops", confidence: 0.5, neighbors: neighbors(0.2), want: ActionNoop},
		{name: "only first neighbor counts", confidence: 0.5, neighbors: neighbors(0.5, 0.99), want: ActionNoop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := ltm.Fact{Text: "fact", Confidence: tt.confidence}
			assert.Equal(t, tt.want, Fallback(candidate, tt.neighbors))
		})
	}
}

func TestFallbackIsDeterministic(t *testing.T) {
	candidate := ltm.Fact{Text: "fact", Confidence: 0.8}
	n := neighbors(0.75)
	first := Fallback(candidate, n)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Fallback(candidate, n))
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     Action
	}{
		{name: "bare add", response: "ADD", want: ActionAdd},
		{name: "bare lowercase", response: "update", want: ActionUpdate},
		{name: "action object", response: `{"action": "DELETE"}`, want: ActionDelete},
		{name: "action object noop", response: `{"action": "NOOP"}`, want: ActionNoop},
		{name: "none normalizes to noop", response: `{"action": "NONE"}`, want: ActionNoop},
		{name: "bare none", response: "NONE", want: ActionNoop},
		{name: "keyword in prose", response: "I think we should UPDATE the existing memory.", want: ActionUpdate},
		{name: "memory array first event wins", response: `{"memory": [{"id": "0", "event": "UPDATE"}, {"id": "1", "event": "ADD"}]}`, want: ActionUpdate},
		{name: "memory array with surrounding prose", response: "Here is my decision: {\"memory\": [{\"id\": \"0\", \"event\": \"DELETE\"}]} as requested.", want: ActionDelete},
		{name: "memory array none event", response: `{"memory": [{"id": "0", "event": "NONE"}]}`, want: ActionNoop},
		{name: "malformed memory array falls back to scan", response: `{"memory": [not json but mentions ADD]}`, want: ActionAdd},
		{name: "empty memory array falls back to scan", response: `{"memory": []} so UPDATE it`, want: ActionUpdate},
		{name: "empty response", response: "", want: ActionNoop},
		{name: "gibberish", response: "the weather is nice today", want: ActionNoop},
		{name: "add beats update when both appear", response: "ADD or maybe UPDATE", want: ActionAdd},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAction(tt.response))
		})
	}
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "ADD", ActionAdd.String())
	assert.Equal(t, "NOOP", ActionNoop.String())
}
