package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/931405/mem1/pkg/errors"
	"github.com/931405/mem1/pkg/mem/ltm"
)

func TestParseFactsBareArray(t *testing.T) {
	facts, err := ParseFacts(`[{"fact": "likes tea", "category": "preference", "confidence": 0.9}]`)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, ltm.Fact{Text: "likes tea", Category: "preference", Confidence: 0.9}, facts[0])
}

func TestParseFactsObjectForm(t *testing.T) {
	facts, err := ParseFacts(`{"facts": [{"fact": "works remotely", "category": "work", "confidence": 0.85}]}`)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "works remotely", facts[0].Text)
}

func TestParseFactsEmptyFactsObjectIsValid(t *testing.T) {
	facts, err := ParseFacts(`{"facts": []}`)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

func TestParseFactsMarkdownFence(t *testing.T) {
	content := "```json\n{\"facts\": [{\"fact\": \"has a dog\"}]}\n```"
	facts, err := ParseFacts(content)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "has a dog", facts[0].Text)
}

func TestParseFactsEmbeddedInProse(t *testing.T) {
	content := `Here are the extracted facts: [{"fact": "plays chess"}] Hope that helps!`
	facts, err := ParseFacts(content)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "plays chess", facts[0].Text)

	content = `Sure! {"facts": [{"fact": "lives in Oslo"}]} as requested.`
	facts, err = ParseFacts(content)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "lives in Oslo", facts[0].Text)
}

func TestParseFactsDefaults(t *testing.T) {
	facts, err := ParseFacts(`[{"fact": "  padded  "}]`)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "padded", facts[0].Text, "fact text is trimmed")
	assert.Equal(t, "other", facts[0].Category)
	assert.Equal(t, 0.8, facts[0].Confidence)

	facts, err = ParseFacts(`[{"fact": "x", "category": "  ", "confidence": 1.7}]`)
	require.NoError(t, err)
	assert.Equal(t, "other", facts[0].Category, "blank category falls back to other")
	assert.Equal(t, 1.0, facts[0].Confidence, "confidence clamps to [0, 1]")

	facts, err = ParseFacts(`[{"fact": "x", "confidence": -0.5}]`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, facts[0].Confidence)
}

func TestParseFactsBareStrings(t *testing.T) {
	facts, err := ParseFacts(`["likes tea", "  ", "has a cat"]`)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, ltm.Fact{Text: "likes tea", Category: "other", Confidence: 0.7}, facts[0])
	assert.Equal(t, "has a cat", facts[1].Text)
}

func TestParseFactsNestedArraysFlatten(t *testing.T) {
	facts, err := ParseFacts(`[["inner one", {"fact": "inner two"}], "outer"]`)
	require.NoError(t, err)
	require.Len(t, facts, 3)
	assert.Equal(t, "inner one", facts[0].Text)
	assert.Equal(t, "inner two", facts[1].Text)
	assert.Equal(t, "outer", facts[2].Text)
}

func TestParseFactsSkipsUnusableElements(t *testing.T) {
	facts, err := ParseFacts(`[{"category": "no fact field"}, {"fact": ""}, {"fact": "kept"}, 42]`)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "kept", facts[0].Text)
}

func TestParseFactsTruncatedResponse(t *testing.T) {
	truncated := `{"facts": [{"fact": "complete one", "confidence": 0.9}, {"fact": "complete two"}, {"fact": "cut off mid`
	facts, err := ParseFacts(truncated)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "complete one", facts[0].Text)
	assert.Equal(t, "complete two", facts[1].Text)
}

func TestParseFactsUnparseable(t *testing.T) {
	for _, content := range []string{"", "   ", "no json here", "```\n\n```"} {
		_, err := ParseFacts(content)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput, "content %q", content)
	}
}
