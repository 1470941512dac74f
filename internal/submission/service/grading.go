package service

import "strings"

// Length brackets for the base score. Word counts are whitespace-delimited
// tokens of the trimmed content.
const (
	minScore = 0
	maxScore = 100
)

// GradeSubmission scores content deterministically and returns the score
// with its feedback sentence. The same content always grades the same.
func GradeSubmission(content string) (int, string) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return 0, "Empty submission"
	}

	wordCount := len(strings.Fields(trimmed))

	var (
		score    int
		feedback string
	)
	switch {
	case wordCount < 10:
		score = 20
		feedback = "Very short submission. Consider adding more detail."
	case wordCount < 50:
		score = 40
		feedback = "Short submission. Could benefit from more elaboration."
	case wordCount < 100:
		score = 60
		feedback = "Adequate length. Good effort shown."
	case wordCount < 200:
		score = 80
		feedback = "Good length and detail. Well done!"
	default:
		score = 100
		feedback = "Excellent submission length and detail. Outstanding work!"
	}

	// Bonus applies before the penalty so both adjustments can take effect.
	if strings.Contains(trimmed, "\n\n") {
		score += 5
		if score > maxScore {
			score = maxScore
		}
		feedback += " Good paragraph structure."
	}
	if wordCount > 500 {
		score -= 10
		if score < minScore {
			score = minScore
		}
		feedback += " Very long submission - consider being more concise."
	}

	return score, strings.TrimSpace(feedback)
}
