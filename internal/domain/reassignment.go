package domain

// Reassignment describes one applied reviewer replacement.
type Reassignment struct {
	PullRequestID string
	OldUserID     string
	NewUserID     string
}

// AssignmentPair is an (open PR, reviewer) pair affected by a bulk
// deactivation, in stable processing order.
type AssignmentPair struct {
	PullRequestID string
	ReviewerID    string
	AuthorID      string
}
