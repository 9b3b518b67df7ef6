package etl

import "github.com/kongusen/AutoReportAI-sub000/internal/adapter"

// Confidence scoring constants. The score starts at 1.0 and degrades; it is
// surfaced so callers can flag low-confidence results instead of presenting
// them as fact.
const (
	emptyResultConfidence = 0.1
	scalarNullConfidence  = 0.15
	minConfidence         = 0.05

	missingValueWeight   = 0.5
	missingValueTolerant = 0.05

	complexityBudget  = 5
	complexityPenalty = 0.05
)

// scoreConfidence computes the 0-1 trust score for a processed result.
// Degradations: empty results, a scalar-expected-but-null outcome, a high
// missing-value ratio, and instruction complexity beyond the budget.
func scoreConfidence(instr *Instructions, rs *adapter.ResultSet, scalarNull bool) float64 {
	if scalarNull {
		return scalarNullConfidence
	}
	if rs.RowCount() == 0 {
		return emptyResultConfidence
	}

	score := 1.0

	if ratio := missingRatio(rs); ratio > missingValueTolerant {
		score -= ratio * missingValueWeight
	}

	if over := instr.ComplexityScore() - complexityBudget; over > 0 {
		score -= float64(over) * complexityPenalty
	}

	if score < minConfidence {
		return minConfidence
	}
	return score
}

// missingRatio is the fraction of nil cells in the result.
func missingRatio(rs *adapter.ResultSet) float64 {
	total := rs.RowCount() * len(rs.Columns)
	if total == 0 {
		return 0
	}
	missing := 0
	for _, row := range rs.Rows {
		for _, v := range row {
			if v == nil {
				missing++
			}
		}
	}
	return float64(missing) / float64(total)
}
