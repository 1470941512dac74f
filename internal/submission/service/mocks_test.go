package service

import (
	"context"
	"errors"
	"sync"

	"gradehub/internal/common/db"
	"gradehub/internal/submission/model"
	"gradehub/internal/submission/repository"
)

// mockSubmissionRepo is an in-memory repository that applies the same
// guarded transitions as the MySQL implementation and records every
// status the submission passes through.
type mockSubmissionRepo struct {
	mu          sync.Mutex
	submissions map[string]*model.Submission
	transitions map[string][]model.Status

	createErr error
	updateErr error
	findErr   error
}

func newMockSubmissionRepo() *mockSubmissionRepo {
	return &mockSubmissionRepo{
		submissions: make(map[string]*model.Submission),
		transitions: make(map[string][]model.Status),
	}
}

func (m *mockSubmissionRepo) Create(ctx context.Context, tx db.Transaction, sub *model.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.submissions[sub.SubmissionID]; ok {
		return errors.New("duplicate submission id")
	}
	clone := *sub
	m.submissions[sub.SubmissionID] = &clone
	m.transitions[sub.SubmissionID] = []model.Status{sub.Status}
	return nil
}

func (m *mockSubmissionRepo) UpdateStatus(ctx context.Context, submissionID string, upd repository.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	sub, ok := m.submissions[submissionID]
	if !ok || sub.Status != upd.From {
		return nil
	}
	sub.Status = upd.To
	sub.Score = upd.Score
	if upd.Feedback != nil {
		sub.Feedback = *upd.Feedback
	}
	if upd.CompletedAt != nil {
		sub.CompletedAt = upd.CompletedAt
	}
	m.transitions[submissionID] = append(m.transitions[submissionID], upd.To)
	return nil
}

func (m *mockSubmissionRepo) FindByID(ctx context.Context, submissionID string) (*model.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	sub, ok := m.submissions[submissionID]
	if !ok {
		return nil, repository.ErrSubmissionNotFound
	}
	clone := *sub
	return &clone, nil
}

func (m *mockSubmissionRepo) statusHistory(submissionID string) []model.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	history := make([]model.Status, len(m.transitions[submissionID]))
	copy(history, m.transitions[submissionID])
	return history
}

func (m *mockSubmissionRepo) get(submissionID string) *model.Submission {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.submissions[submissionID]
	if !ok {
		return nil
	}
	clone := *sub
	return &clone
}
