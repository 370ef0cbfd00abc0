package logic

const (
	baseConfidence       = 0.6
	perCitationWeight    = 0.07
	maxDerivedConfidence = 0.95
)

// Confidence returns the backend supplied confidence when present, otherwise a
// value derived from how many sources backed the answer.
func Confidence(reported *float64, citations int) float64 {
	if reported != nil {
		return *reported
	}
	c := baseConfidence + perCitationWeight*float64(citations)
	if c > maxDerivedConfidence {
		return maxDerivedConfidence
	}
	return c
}
