package ltm

import (
	"math"
	"sort"
)

// CosineSimilarity computes dot(a,b) / (‖a‖·‖b‖). It degrades to 0 rather
// than failing when the vectors differ in length or either has zero norm,
// so malformed embeddings simply rank last.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		normA += va * va
		normB += vb * vb
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores records against query and returns at most topK results ordered
// by descending score. The sort is stable: ties keep the records' insertion
// order.
func Rank(records []MemoryRecord, query []float32, topK int) []SimilarityResult {
	if len(records) == 0 || topK <= 0 {
		return []SimilarityResult{}
	}

	results := make([]SimilarityResult, 0, len(records))
	for _, record := range records {
		results = append(results, SimilarityResult{
			MemoryID: record.ID,
			Fact:     record.Fact,
			Turn:     record.Turn,
			Score:    CosineSimilarity(query, record.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}
