package token

// CharsPerToken is the heuristic character-to-token ratio. BPE tokenizers
// average roughly 4 characters per token for English text with code.
// The estimate is only used for relative comparison and budget accounting,
// never for billing accuracy.
const CharsPerToken = 4

// Estimate approximates the token cost of text as ceil(len(text)/4).
// Deterministic and pure; empty text costs 0.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + CharsPerToken - 1) / CharsPerToken
}

// EstimateAll returns the summed token cost of all texts.
func EstimateAll(texts []string) int {
	total := 0
	for _, t := range texts {
		total += Estimate(t)
	}
	return total
}
