// Package eval provides retrieval quality metrics and an LLM-backed
// groundedness check for offline benchmarks and tests.
package eval

// PrecisionAtK returns the fraction of the top-k retrieved IDs that are
// relevant. Returns 0 when retrieved is empty or k <= 0.
func PrecisionAtK(retrieved []string, relevant map[string]bool, k int) float64 {
	if k <= 0 || len(retrieved) == 0 {
		return 0
	}
	if k > len(retrieved) {
		k = len(retrieved)
	}
	hits := 0
	for _, id := range retrieved[:k] {
		if relevant[id] {
			hits++
		}
	}
	return float64(hits) / float64(k)
}

// RecallAtK returns the fraction of relevant IDs found in the top-k
// retrieved. Returns 0 when relevant is empty.
func RecallAtK(retrieved []string, relevant map[string]bool, k int) float64 {
	if len(relevant) == 0 || k <= 0 {
		return 0
	}
	if k > len(retrieved) {
		k = len(retrieved)
	}
	hits := 0
	for _, id := range retrieved[:k] {
		if relevant[id] {
			hits++
		}
	}
	return float64(hits) / float64(len(relevant))
}

// MRR returns the mean reciprocal rank across retrieval runs. Each run
// contributes 1/rank of its first relevant result, or 0 if none.
func MRR(runs []Run) float64 {
	if len(runs) == 0 {
		return 0
	}
	total := 0.0
	for _, run := range runs {
		total += run.reciprocalRank()
	}
	return total / float64(len(runs))
}

// Run is one query's retrieval output against its relevance labels.
type Run struct {
	Retrieved []string
	Relevant  map[string]bool
}

func (r Run) reciprocalRank() float64 {
	for i, id := range r.Retrieved {
		if r.Relevant[id] {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}
