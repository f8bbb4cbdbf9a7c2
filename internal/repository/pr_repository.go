package repository

import (
	"context"
	"fmt"
	"time"

	"pr-review-service/internal/db"
	"pr-review-service/internal/domain"

	"github.com/georgysavva/scany/v2/pgxscan"
)

type prRepository struct {
	BaseRepository
}

// NewPRRepository creates a new pull request repository.
func NewPRRepository(cm db.EngineFactory) PRRepository {
	return &prRepository{
		BaseRepository: NewBaseRepository(cm),
	}
}

type prRow struct {
	PullRequestID   string
	PullRequestName string
	AuthorID        string
	Status          string
	CreatedAt       time.Time
	MergedAt        *time.Time
}

func (row prRow) toDomain() domain.PullRequest {
	return domain.PullRequest{
		PullRequestID:     row.PullRequestID,
		PullRequestName:   row.PullRequestName,
		AuthorID:          row.AuthorID,
		Status:            domain.PRStatus(row.Status),
		AssignedReviewers: make([]string, 0),
		CreatedAt:         row.CreatedAt,
		MergedAt:          row.MergedAt,
	}
}

// CreatePR inserts the pull request record.
func (r *prRepository) CreatePR(ctx context.Context, pr domain.PullRequest) error {
	query := `
		INSERT INTO pull_requests (pull_request_id, pull_request_name, author_id, status, created_at, merged_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.Engine(ctx).Exec(ctx, query,
		pr.PullRequestID, pr.PullRequestName, pr.AuthorID, string(pr.Status), pr.CreatedAt, pr.MergedAt)
	if err != nil {
		return fmt.Errorf("failed to create pull request: %w", err)
	}
	return nil
}

// GetPR retrieves a pull request with its reviewers.
func (r *prRepository) GetPR(ctx context.Context, prID string) (domain.PullRequest, error) {
	return r.getPR(ctx, prID, false)
}

// GetPRForUpdate retrieves a pull request locking its row for the current
// transaction, so concurrent reassignments serialize on the PR.
func (r *prRepository) GetPRForUpdate(ctx context.Context, prID string) (domain.PullRequest, error) {
	return r.getPR(ctx, prID, true)
}

func (r *prRepository) getPR(ctx context.Context, prID string, forUpdate bool) (domain.PullRequest, error) {
	query := `
		SELECT pull_request_id, pull_request_name, author_id, status, created_at, merged_at
		FROM pull_requests
		WHERE pull_request_id = $1
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	var row prRow
	err := pgxscan.Get(ctx, r.Engine(ctx), &row, query, prID)
	if err != nil {
		if pgxscan.NotFound(err) {
			return domain.PullRequest{}, domain.NewNotFound("pull_request", prID)
		}
		return domain.PullRequest{}, fmt.Errorf("failed to get pull request: %w", err)
	}

	pr := row.toDomain()

	reviewers, err := r.GetReviewers(ctx, prID)
	if err != nil {
		return domain.PullRequest{}, err
	}
	pr.AssignedReviewers = reviewers

	return pr, nil
}

// PRExists checks if a pull request exists.
func (r *prRepository) PRExists(ctx context.Context, prID string) (bool, error) {
	query := `
		SELECT EXISTS(SELECT 1 FROM pull_requests WHERE pull_request_id = $1)
	`
	var exists bool
	err := r.Engine(ctx).QueryRow(ctx, query, prID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pull request existence: %w", err)
	}
	return exists, nil
}

// SetPRMerged marks the pull request merged. Idempotent: an already merged
// PR keeps its original merged_at.
func (r *prRepository) SetPRMerged(ctx context.Context, prID string, mergedAt time.Time) (domain.PullRequest, error) {
	query := `
		UPDATE pull_requests
		SET status = $2, merged_at = COALESCE(merged_at, $3)
		WHERE pull_request_id = $1
		RETURNING pull_request_id, pull_request_name, author_id, status, created_at, merged_at
	`
	var row prRow
	err := pgxscan.Get(ctx, r.Engine(ctx), &row, query, prID, string(domain.PRStatusMerged), mergedAt)
	if err != nil {
		if pgxscan.NotFound(err) {
			return domain.PullRequest{}, domain.NewNotFound("pull_request", prID)
		}
		return domain.PullRequest{}, fmt.Errorf("failed to merge pull request: %w", err)
	}

	pr := row.toDomain()

	reviewers, err := r.GetReviewers(ctx, prID)
	if err != nil {
		return domain.PullRequest{}, err
	}
	pr.AssignedReviewers = reviewers

	return pr, nil
}

// AssignReviewers inserts assignment rows in the given order.
func (r *prRepository) AssignReviewers(ctx context.Context, prID string, reviewers []string) error {
	query := `
		INSERT INTO reviewer_assignments (pull_request_id, reviewer_id)
		VALUES ($1, $2)
	`
	for _, reviewerID := range reviewers {
		if _, err := r.Engine(ctx).Exec(ctx, query, prID, reviewerID); err != nil {
			return fmt.Errorf("failed to assign reviewer %s: %w", reviewerID, err)
		}
	}
	return nil
}

// GetReviewers returns the PR's reviewers in assignment order.
func (r *prRepository) GetReviewers(ctx context.Context, prID string) ([]string, error) {
	query := `
		SELECT reviewer_id
		FROM reviewer_assignments
		WHERE pull_request_id = $1
		ORDER BY assigned_seq
	`
	reviewers := make([]string, 0, 2)
	err := pgxscan.Select(ctx, r.Engine(ctx), &reviewers, query, prID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewers: %w", err)
	}
	return reviewers, nil
}

// ReplaceReviewer swaps the assignment row in place. The updated row keeps
// its assigned_seq, so the replacement inherits the slot position. Returns
// NOT_ASSIGNED when the old reviewer no longer holds the slot.
func (r *prRepository) ReplaceReviewer(ctx context.Context, prID, oldUserID, newUserID string) error {
	query := `
		UPDATE reviewer_assignments
		SET reviewer_id = $3
		WHERE pull_request_id = $1 AND reviewer_id = $2
	`
	tag, err := r.Engine(ctx).Exec(ctx, query, prID, oldUserID, newUserID)
	if err != nil {
		return fmt.Errorf("failed to replace reviewer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotAssigned(prID, oldUserID)
	}
	return nil
}

// GetPRsByReviewer returns PRs where the user is assigned as reviewer.
func (r *prRepository) GetPRsByReviewer(ctx context.Context, userID string) ([]domain.PullRequest, error) {
	query := `
		SELECT p.pull_request_id, p.pull_request_name, p.author_id, p.status, p.created_at, p.merged_at
		FROM pull_requests p
		JOIN reviewer_assignments ra ON ra.pull_request_id = p.pull_request_id
		WHERE ra.reviewer_id = $1
		ORDER BY p.created_at, p.pull_request_id
	`
	var rows []prRow
	err := pgxscan.Select(ctx, r.Engine(ctx), &rows, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get pull requests by reviewer: %w", err)
	}

	prs := make([]domain.PullRequest, len(rows))
	for i, row := range rows {
		prs[i] = row.toDomain()
	}
	return prs, nil
}

// GetOpenAssignmentsByReviewers returns (open PR, reviewer) pairs for the
// given reviewers, ordered by PR creation then assignment order. Locks the
// matched PR rows so the cascade serializes with single reassignments.
func (r *prRepository) GetOpenAssignmentsByReviewers(ctx context.Context, reviewerIDs []string) ([]domain.AssignmentPair, error) {
	if len(reviewerIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT ra.pull_request_id, ra.reviewer_id, p.author_id
		FROM reviewer_assignments ra
		JOIN pull_requests p ON p.pull_request_id = ra.pull_request_id
		WHERE p.status = $2 AND ra.reviewer_id = ANY($1)
		ORDER BY p.created_at, p.pull_request_id, ra.assigned_seq
		FOR UPDATE OF p
	`
	var pairs []domain.AssignmentPair
	err := pgxscan.Select(ctx, r.Engine(ctx), &pairs, query, reviewerIDs, string(domain.PRStatusOpen))
	if err != nil {
		return nil, fmt.Errorf("failed to get open assignments: %w", err)
	}
	return pairs, nil
}

// GetAssignmentStatsByUser counts assignments per reviewer.
func (r *prRepository) GetAssignmentStatsByUser(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT reviewer_id, COUNT(*) AS cnt
		FROM reviewer_assignments
		GROUP BY reviewer_id
	`
	return r.countStats(ctx, query)
}

// GetAssignmentStatsByPR counts assignments per pull request.
func (r *prRepository) GetAssignmentStatsByPR(ctx context.Context) (map[string]int, error) {
	query := `
		SELECT pull_request_id, COUNT(*) AS cnt
		FROM reviewer_assignments
		GROUP BY pull_request_id
	`
	return r.countStats(ctx, query)
}

func (r *prRepository) countStats(ctx context.Context, query string) (map[string]int, error) {
	rows, err := r.Engine(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var key string
		var cnt int
		if err := rows.Scan(&key, &cnt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment stats: %w", err)
		}
		stats[key] = cnt
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read assignment stats: %w", err)
	}
	return stats, nil
}
