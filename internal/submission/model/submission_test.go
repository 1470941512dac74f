package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStatusTerminal(t *testing.T) {
	cases := map[Status]bool{
		StatusQueued:    false,
		StatusRunning:   false,
		StatusCompleted: true,
		StatusFailed:    true,
	}
	for status, want := range cases {
		if got := status.Terminal(); got != want {
			t.Fatalf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestProjectionOfCompletedCarriesResults(t *testing.T) {
	score := 80
	now := time.Now().UTC()
	sub := &Submission{
		SubmissionID: "sub-1",
		StudentID:    "s-1",
		AssignmentID: "a-1",
		Content:      "text",
		Status:       StatusCompleted,
		Score:        &score,
		Feedback:     "Good length and detail. Well done!",
		SubmittedAt:  now,
		CompletedAt:  &now,
	}

	proj := ProjectionOf(sub)
	if proj.Score == nil || *proj.Score != 80 {
		t.Fatalf("expected score 80, got %v", proj.Score)
	}
	if proj.Feedback == "" || proj.CompletedAt == nil {
		t.Fatalf("completed projection missing fields: %+v", proj)
	}
}

func TestProjectionOfFailedCarriesOnlyFeedback(t *testing.T) {
	score := 40
	now := time.Now().UTC()
	sub := &Submission{
		SubmissionID: "sub-2",
		StudentID:    "s-1",
		AssignmentID: "a-1",
		Status:       StatusFailed,
		Score:        &score,
		Feedback:     "Grading failed due to system error",
		SubmittedAt:  now,
		CompletedAt:  &now,
	}

	proj := ProjectionOf(sub)
	if proj.Score != nil || proj.CompletedAt != nil {
		t.Fatalf("failed projection leaked score or completedAt: %+v", proj)
	}
	if proj.Feedback != "Grading failed due to system error" {
		t.Fatalf("unexpected feedback %q", proj.Feedback)
	}
}

func TestProjectionOfNonTerminalHidesResults(t *testing.T) {
	score := 60
	now := time.Now().UTC()
	for _, status := range []Status{StatusQueued, StatusRunning} {
		sub := &Submission{
			SubmissionID: "sub-3",
			StudentID:    "s-1",
			AssignmentID: "a-1",
			Status:       status,
			Score:        &score,
			Feedback:     "partial",
			SubmittedAt:  now,
		}
		proj := ProjectionOf(sub)
		if proj.Score != nil || proj.Feedback != "" || proj.CompletedAt != nil {
			t.Fatalf("%s projection leaked result fields: %+v", status, proj)
		}
	}
}

func TestProjectionJSONOmitsEmptyResultFields(t *testing.T) {
	proj := ProjectionOf(&Submission{
		SubmissionID: "sub-4",
		StudentID:    "s-1",
		AssignmentID: "a-1",
		Status:       StatusRunning,
		SubmittedAt:  time.Now().UTC(),
	})

	data, err := json.Marshal(proj)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"score", "feedback", "completedAt"} {
		if _, ok := raw[key]; ok {
			t.Fatalf("json leaked %q: %s", key, data)
		}
	}
	for _, key := range []string{"submissionId", "studentId", "assignmentId", "status", "submittedAt"} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("json missing %q: %s", key, data)
		}
	}
}
