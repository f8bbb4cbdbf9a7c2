package domain

import "time"

type PRStatus string

const (
	PRStatusOpen   PRStatus = "OPEN"
	PRStatusMerged PRStatus = "MERGED"
)

// PullRequest with its reviewer set in assignment order.
type PullRequest struct {
	PullRequestID     string
	PullRequestName   string
	AuthorID          string
	Status            PRStatus
	AssignedReviewers []string
	CreatedAt         time.Time
	MergedAt          *time.Time
}

func NewPullRequest(prID, prName, authorID string) PullRequest {
	return PullRequest{
		PullRequestID:     prID,
		PullRequestName:   prName,
		AuthorID:          authorID,
		Status:            PRStatusOpen,
		AssignedReviewers: make([]string, 0),
		CreatedAt:         time.Now().UTC(),
		MergedAt:          nil,
	}
}

func (pr *PullRequest) IsMerged() bool {
	return pr.Status == PRStatusMerged
}

func (pr *PullRequest) CanReassign() bool {
	return !pr.IsMerged()
}

// Merge transitions the PR to MERGED. Idempotent: a merged PR keeps its
// original MergedAt.
func (pr *PullRequest) Merge() {
	if pr.IsMerged() {
		return
	}
	pr.Status = PRStatusMerged
	now := time.Now().UTC()
	pr.MergedAt = &now
}

func (pr *PullRequest) IsReviewerAssigned(userID string) bool {
	for _, rid := range pr.AssignedReviewers {
		if rid == userID {
			return true
		}
	}
	return false
}

// ReplaceReviewer swaps oldUserID for newUserID in place, keeping the slot
// position. The reviewer set stays duplicate-free.
func (pr *PullRequest) ReplaceReviewer(oldUserID, newUserID string) error {
	if pr.IsMerged() {
		return NewPRMerged(pr.PullRequestID)
	}
	if pr.IsReviewerAssigned(newUserID) {
		return ErrInvalidArgument
	}
	for i, rid := range pr.AssignedReviewers {
		if rid == oldUserID {
			pr.AssignedReviewers[i] = newUserID
			return nil
		}
	}
	return NewNotAssigned(pr.PullRequestID, oldUserID)
}
