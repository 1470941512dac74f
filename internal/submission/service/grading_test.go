package service

import (
	"strings"
	"testing"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "word"
	}
	return strings.Join(parts, " ")
}

func TestGradeSubmissionEmpty(t *testing.T) {
	for _, content := range []string{"", "   ", "\n\t  \n"} {
		score, feedback := GradeSubmission(content)
		if score != 0 {
			t.Fatalf("expected score 0 for %q, got %d", content, score)
		}
		if feedback != "Empty submission" {
			t.Fatalf("unexpected feedback for %q: %q", content, feedback)
		}
	}
}

func TestGradeSubmissionLengthBrackets(t *testing.T) {
	cases := []struct {
		wordCount int
		score     int
		feedback  string
	}{
		{1, 20, "Very short submission. Consider adding more detail."},
		{9, 20, "Very short submission. Consider adding more detail."},
		{10, 40, "Short submission. Could benefit from more elaboration."},
		{49, 40, "Short submission. Could benefit from more elaboration."},
		{50, 60, "Adequate length. Good effort shown."},
		{99, 60, "Adequate length. Good effort shown."},
		{100, 80, "Good length and detail. Well done!"},
		{199, 80, "Good length and detail. Well done!"},
		{200, 100, "Excellent submission length and detail. Outstanding work!"},
		{500, 100, "Excellent submission length and detail. Outstanding work!"},
	}
	for _, tc := range cases {
		score, feedback := GradeSubmission(words(tc.wordCount))
		if score != tc.score {
			t.Fatalf("%d words: expected score %d, got %d", tc.wordCount, tc.score, score)
		}
		if feedback != tc.feedback {
			t.Fatalf("%d words: unexpected feedback %q", tc.wordCount, feedback)
		}
	}
}

func TestGradeSubmissionParagraphBonus(t *testing.T) {
	content := words(5) + "\n\n" + words(4)
	score, feedback := GradeSubmission(content)
	if score != 25 {
		t.Fatalf("expected score 25, got %d", score)
	}
	want := "Very short submission. Consider adding more detail. Good paragraph structure."
	if feedback != want {
		t.Fatalf("unexpected feedback %q", feedback)
	}
}

func TestGradeSubmissionParagraphBonusCapped(t *testing.T) {
	content := words(150) + "\n\n" + words(100)
	score, _ := GradeSubmission(content)
	if score != 100 {
		t.Fatalf("expected score capped at 100, got %d", score)
	}
}

func TestGradeSubmissionLengthPenalty(t *testing.T) {
	score, feedback := GradeSubmission(words(501))
	if score != 90 {
		t.Fatalf("expected score 90, got %d", score)
	}
	want := "Excellent submission length and detail. Outstanding work! Very long submission - consider being more concise."
	if feedback != want {
		t.Fatalf("unexpected feedback %q", feedback)
	}
}

func TestGradeSubmissionBonusThenPenalty(t *testing.T) {
	content := words(300) + "\n\n" + words(220)
	score, feedback := GradeSubmission(content)
	if score != 90 {
		t.Fatalf("expected score 90, got %d", score)
	}
	if !strings.Contains(feedback, "Good paragraph structure.") {
		t.Fatalf("expected paragraph sentence in %q", feedback)
	}
	if !strings.Contains(feedback, "consider being more concise") {
		t.Fatalf("expected length penalty sentence in %q", feedback)
	}
}

func TestGradeSubmissionDeterministic(t *testing.T) {
	content := words(42) + "\n\n" + words(17)
	firstScore, firstFeedback := GradeSubmission(content)
	for i := 0; i < 10; i++ {
		score, feedback := GradeSubmission(content)
		if score != firstScore || feedback != firstFeedback {
			t.Fatalf("grading is not deterministic: (%d,%q) vs (%d,%q)",
				firstScore, firstFeedback, score, feedback)
		}
	}
}

func TestGradeSubmissionScoreBounds(t *testing.T) {
	contents := []string{
		words(3),
		words(9) + "\n\n" + words(600),
		words(250) + "\n\n" + words(300),
		words(700),
	}
	for _, content := range contents {
		score, _ := GradeSubmission(content)
		if score < 0 || score > 100 {
			t.Fatalf("score %d outside [0,100]", score)
		}
	}
}
