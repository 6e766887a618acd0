package domain

// Embedding is one provider embedding. UsedTokens is zero when the provider
// did not report usage for this text alone.
type Embedding struct {
	Vector     []float32
	UsedTokens int
}

// TokenCount returns the reported usage or the character estimate for text.
func (e Embedding) TokenCount(text string) int {
	if e.UsedTokens > 0 {
		return e.UsedTokens
	}
	return EstimateTokens(text)
}
