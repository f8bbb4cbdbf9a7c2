package pullrequest

import (
	"context"
	"strings"
	"time"

	"pr-review-service/internal/db"
	"pr-review-service/internal/domain"
	"pr-review-service/internal/service/assignment"
)

const maxReviewers = 2

type prRepository interface {
	CreatePR(ctx context.Context, pr domain.PullRequest) error
	GetPRForUpdate(ctx context.Context, prID string) (domain.PullRequest, error)
	PRExists(ctx context.Context, prID string) (bool, error)
	SetPRMerged(ctx context.Context, prID string, mergedAt time.Time) (domain.PullRequest, error)
	AssignReviewers(ctx context.Context, prID string, reviewers []string) error
	ReplaceReviewer(ctx context.Context, prID, oldUserID, newUserID string) error
	GetPRsByReviewer(ctx context.Context, userID string) ([]domain.PullRequest, error)
	GetAssignmentStatsByUser(ctx context.Context) (map[string]int, error)
	GetAssignmentStatsByPR(ctx context.Context) (map[string]int, error)
}

type userRepository interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetTeamMembers(ctx context.Context, teamName string) ([]domain.User, error)
}

// Service handles pull request business logic. Every operation runs as one
// transaction; preconditions are checked against state read inside it.
type Service struct {
	prRepo     prRepository
	userRepo   userRepository
	transactor db.Transactor
	selector   *assignment.Selector
}

// NewService creates a new PR service.
func NewService(
	prRepo prRepository,
	userRepo userRepository,
	transactor db.Transactor,
	selector *assignment.Selector,
) *Service {
	return &Service{
		prRepo:     prRepo,
		userRepo:   userRepo,
		transactor: transactor,
		selector:   selector,
	}
}

// CreatePR creates a PR and auto-assigns up to two reviewers from the
// author's team. Zero candidates is not an error: the PR is created with an
// empty reviewer set.
func (s *Service) CreatePR(
	ctx context.Context,
	prID, prName, authorID string,
) (domain.PullRequest, error) {
	prID = strings.TrimSpace(prID)
	prName = strings.TrimSpace(prName)
	authorID = strings.TrimSpace(authorID)
	if prID == "" || prName == "" || authorID == "" {
		return domain.PullRequest{}, domain.ErrInvalidArgument
	}

	var pr domain.PullRequest
	err := s.transactor.Do(ctx, func(txCtx context.Context) error {
		exists, err := s.prRepo.PRExists(txCtx, prID)
		if err != nil {
			return err
		}
		if exists {
			return domain.NewPRExists(prID)
		}

		author, err := s.userRepo.GetUser(txCtx, authorID)
		if err != nil {
			return err
		}
		if author.TeamName == "" {
			return domain.NewNotFound("team", authorID)
		}

		members, err := s.userRepo.GetTeamMembers(txCtx, author.TeamName)
		if err != nil {
			return err
		}

		reviewers := s.selector.Select(members, assignment.ExcludeSet([]string{authorID}), maxReviewers)

		pr = domain.NewPullRequest(prID, prName, authorID)
		pr.AssignedReviewers = reviewers

		if err := s.prRepo.CreatePR(txCtx, pr); err != nil {
			return err
		}
		if len(reviewers) > 0 {
			if err := s.prRepo.AssignReviewers(txCtx, prID, reviewers); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.PullRequest{}, err
	}

	return pr, nil
}

// MergePR marks a PR as merged. Idempotent: merging a merged PR succeeds and
// keeps the original merged_at.
func (s *Service) MergePR(ctx context.Context, prID string) (domain.PullRequest, error) {
	prID = strings.TrimSpace(prID)
	if prID == "" {
		return domain.PullRequest{}, domain.ErrInvalidArgument
	}

	var pr domain.PullRequest
	err := s.transactor.Do(ctx, func(txCtx context.Context) error {
		var err error
		pr, err = s.prRepo.SetPRMerged(txCtx, prID, time.Now().UTC())
		return err
	})
	if err != nil {
		return domain.PullRequest{}, err
	}

	return pr, nil
}

// ReassignReviewer replaces one currently assigned reviewer with another
// active member of the old reviewer's team. The PR row is locked and all
// preconditions re-validated inside the transaction, so two concurrent
// reassignments of the same reviewer cannot both succeed.
func (s *Service) ReassignReviewer(
	ctx context.Context,
	prID, oldUserID string,
) (domain.PullRequest, string, error) {
	prID = strings.TrimSpace(prID)
	oldUserID = strings.TrimSpace(oldUserID)
	if prID == "" || oldUserID == "" {
		return domain.PullRequest{}, "", domain.ErrInvalidArgument
	}

	var pr domain.PullRequest
	var newUserID string
	err := s.transactor.Do(ctx, func(txCtx context.Context) error {
		var err error
		pr, err = s.prRepo.GetPRForUpdate(txCtx, prID)
		if err != nil {
			return err
		}

		if !pr.CanReassign() {
			return domain.NewPRMerged(prID)
		}

		oldUser, err := s.userRepo.GetUser(txCtx, oldUserID)
		if err != nil {
			return err
		}

		if !pr.IsReviewerAssigned(oldUserID) {
			return domain.NewNotAssigned(prID, oldUserID)
		}

		if oldUser.TeamName == "" {
			return domain.NewNotFound("team", oldUserID)
		}

		members, err := s.userRepo.GetTeamMembers(txCtx, oldUser.TeamName)
		if err != nil {
			return err
		}

		exclude := assignment.ExcludeSet(pr.AssignedReviewers, []string{oldUserID, pr.AuthorID})
		newUserID = s.selector.SelectOne(members, exclude)
		if newUserID == "" {
			return domain.NewNoCandidate(prID)
		}

		if err := s.prRepo.ReplaceReviewer(txCtx, prID, oldUserID, newUserID); err != nil {
			return err
		}

		return pr.ReplaceReviewer(oldUserID, newUserID)
	})
	if err != nil {
		return domain.PullRequest{}, "", err
	}

	return pr, newUserID, nil
}

// GetPRsByReviewer returns PRs where user is assigned as reviewer.
func (s *Service) GetPRsByReviewer(
	ctx context.Context,
	userID string,
) ([]domain.PullRequest, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidArgument
	}

	return s.prRepo.GetPRsByReviewer(ctx, userID)
}

// GetAssignmentStats returns reviewer assignment counts by user and by PR.
func (s *Service) GetAssignmentStats(ctx context.Context) (map[string]int, map[string]int, error) {
	byUser, err := s.prRepo.GetAssignmentStatsByUser(ctx)
	if err != nil {
		return nil, nil, err
	}

	byPR, err := s.prRepo.GetAssignmentStatsByPR(ctx)
	if err != nil {
		return nil, nil, err
	}

	return byUser, byPR, nil
}
