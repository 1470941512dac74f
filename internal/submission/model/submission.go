package model

import "time"

// Status is the lifecycle state of a submission.
// Transitions are strictly forward: queued -> running -> completed|failed.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Submission is the persisted record of one graded artifact.
// Score and CompletedAt are set exactly when Status is completed;
// Feedback is set when Status is completed or failed.
type Submission struct {
	SubmissionID string
	StudentID    string
	AssignmentID string
	Content      string
	Status       Status
	Score        *int
	Feedback     string
	SubmittedAt  time.Time
	CompletedAt  *time.Time
}

// StatusProjection is the externally visible view of a submission.
// Result fields are populated only for the statuses that carry them.
type StatusProjection struct {
	SubmissionID string     `json:"submissionId"`
	StudentID    string     `json:"studentId"`
	AssignmentID string     `json:"assignmentId"`
	Status       Status     `json:"status"`
	SubmittedAt  time.Time  `json:"submittedAt"`
	Score        *int       `json:"score,omitempty"`
	Feedback     string     `json:"feedback,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// ProjectionOf builds the status projection for a submission.
func ProjectionOf(sub *Submission) StatusProjection {
	proj := StatusProjection{
		SubmissionID: sub.SubmissionID,
		StudentID:    sub.StudentID,
		AssignmentID: sub.AssignmentID,
		Status:       sub.Status,
		SubmittedAt:  sub.SubmittedAt,
	}
	switch sub.Status {
	case StatusCompleted:
		proj.Score = sub.Score
		proj.Feedback = sub.Feedback
		proj.CompletedAt = sub.CompletedAt
	case StatusFailed:
		proj.Feedback = sub.Feedback
	}
	return proj
}
