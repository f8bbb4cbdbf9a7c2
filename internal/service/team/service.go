package team

import (
	"context"
	"strings"

	"pr-review-service/internal/db"
	"pr-review-service/internal/domain"
	"pr-review-service/internal/service/assignment"
)

type teamRepository interface {
	CreateTeam(ctx context.Context, team domain.Team) error
	GetTeam(ctx context.Context, teamName string) (domain.Team, error)
	TeamExists(ctx context.Context, teamName string) (bool, error)
}

type userRepository interface {
	CreateOrUpdateUser(ctx context.Context, user domain.User) error
	GetTeamMembers(ctx context.Context, teamName string) ([]domain.User, error)
	SetUsersActive(ctx context.Context, userIDs []string, isActive bool) error
}

type prRepository interface {
	GetOpenAssignmentsByReviewers(ctx context.Context, reviewerIDs []string) ([]domain.AssignmentPair, error)
	GetReviewers(ctx context.Context, prID string) ([]string, error)
	ReplaceReviewer(ctx context.Context, prID, oldUserID, newUserID string) error
}

// Service handles team business logic, including the bulk deactivation
// cascade.
type Service struct {
	teamRepo   teamRepository
	userRepo   userRepository
	prRepo     prRepository
	transactor db.Transactor
	selector   *assignment.Selector
}

// NewService creates a new team service.
func NewService(
	teamRepo teamRepository,
	userRepo userRepository,
	prRepo prRepository,
	transactor db.Transactor,
	selector *assignment.Selector,
) *Service {
	return &Service{
		teamRepo:   teamRepo,
		userRepo:   userRepo,
		prRepo:     prRepo,
		transactor: transactor,
		selector:   selector,
	}
}

// CreateTeam creates a team with members in a transaction. Members are
// upserted by user_id.
func (s *Service) CreateTeam(
	ctx context.Context,
	teamName string,
	members []domain.User,
) (domain.Team, error) {
	teamName = strings.TrimSpace(teamName)
	if teamName == "" || len(members) == 0 {
		return domain.Team{}, domain.ErrInvalidArgument
	}

	for i := range members {
		members[i].UserID = strings.TrimSpace(members[i].UserID)
		members[i].Username = strings.TrimSpace(members[i].Username)

		if members[i].UserID == "" || members[i].Username == "" {
			return domain.Team{}, domain.ErrInvalidArgument
		}
		members[i].TeamName = teamName
	}

	team := domain.NewTeam(teamName, members)

	err := s.transactor.Do(ctx, func(txCtx context.Context) error {
		exists, err := s.teamRepo.TeamExists(txCtx, teamName)
		if err != nil {
			return err
		}
		if exists {
			return domain.NewTeamExists(teamName)
		}

		if err := s.teamRepo.CreateTeam(txCtx, team); err != nil {
			return err
		}

		for _, member := range members {
			if err := s.userRepo.CreateOrUpdateUser(txCtx, member); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Team{}, err
	}

	return team, nil
}

// GetTeam retrieves a team with its members.
func (s *Service) GetTeam(ctx context.Context, teamName string) (domain.Team, error) {
	teamName = strings.TrimSpace(teamName)
	if teamName == "" {
		return domain.Team{}, domain.ErrInvalidArgument
	}
	return s.teamRepo.GetTeam(ctx, teamName)
}

// BulkDeactivateTeam deactivates the listed active members of the team (or
// every active member when userIDs is empty) and cascades reviewer
// replacement across the team's open pull requests.
//
// Affected (PR, reviewer) pairs are processed in PR creation order, then
// assignment order. Candidates are the team's surviving active members,
// excluding the PR's author and its current reviewers; each candidate is
// used at most once per batch. Pairs with no remaining candidate are
// skipped: the slot stays unfilled and is omitted from the report.
func (s *Service) BulkDeactivateTeam(
	ctx context.Context,
	teamName string,
	userIDs []string,
) ([]string, []domain.Reassignment, error) {
	teamName = strings.TrimSpace(teamName)
	if teamName == "" {
		return nil, nil, domain.ErrInvalidArgument
	}

	var requested map[string]struct{}
	if len(userIDs) > 0 {
		requested = assignment.ExcludeSet(userIDs)
	}

	deactivated := make([]string, 0)
	reassignments := make([]domain.Reassignment, 0)

	err := s.transactor.Do(ctx, func(txCtx context.Context) error {
		exists, err := s.teamRepo.TeamExists(txCtx, teamName)
		if err != nil {
			return err
		}
		if !exists {
			return domain.NewNotFound("team", teamName)
		}

		members, err := s.userRepo.GetTeamMembers(txCtx, teamName)
		if err != nil {
			return err
		}

		survivors := make([]domain.User, 0, len(members))
		for _, m := range members {
			target := m.IsActive
			if target && requested != nil {
				_, target = requested[m.UserID]
			}
			if target {
				deactivated = append(deactivated, m.UserID)
			} else if m.IsActive {
				survivors = append(survivors, m)
			}
		}
		if len(deactivated) == 0 {
			return nil
		}

		if err := s.userRepo.SetUsersActive(txCtx, deactivated, false); err != nil {
			return err
		}

		pairs, err := s.prRepo.GetOpenAssignmentsByReviewers(txCtx, deactivated)
		if err != nil {
			return err
		}

		used := make(map[string]struct{})
		reviewersByPR := make(map[string][]string)

		for _, pair := range pairs {
			current, ok := reviewersByPR[pair.PullRequestID]
			if !ok {
				current, err = s.prRepo.GetReviewers(txCtx, pair.PullRequestID)
				if err != nil {
					return err
				}
			}

			exclude := assignment.ExcludeSet(current, []string{pair.AuthorID})
			for id := range used {
				exclude[id] = struct{}{}
			}

			newUserID := s.selector.SelectOne(survivors, exclude)
			if newUserID == "" {
				// Soft failure: slot stays unfilled, batch continues.
				reviewersByPR[pair.PullRequestID] = current
				continue
			}

			if err := s.prRepo.ReplaceReviewer(txCtx, pair.PullRequestID, pair.ReviewerID, newUserID); err != nil {
				return err
			}

			used[newUserID] = struct{}{}
			for i, id := range current {
				if id == pair.ReviewerID {
					current[i] = newUserID
					break
				}
			}
			reviewersByPR[pair.PullRequestID] = current

			reassignments = append(reassignments, domain.Reassignment{
				PullRequestID: pair.PullRequestID,
				OldUserID:     pair.ReviewerID,
				NewUserID:     newUserID,
			})
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return deactivated, reassignments, nil
}
