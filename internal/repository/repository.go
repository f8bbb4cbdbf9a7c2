package repository

import (
	"context"
	"time"

	"pr-review-service/internal/db"
	"pr-review-service/internal/domain"
)

// TeamRepository defines methods for team data access.
type TeamRepository interface {
	CreateTeam(ctx context.Context, team domain.Team) error
	GetTeam(ctx context.Context, teamName string) (domain.Team, error)
	TeamExists(ctx context.Context, teamName string) (bool, error)
}

// UserRepository defines methods for user data access.
type UserRepository interface {
	CreateOrUpdateUser(ctx context.Context, user domain.User) error
	UpdateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, userID string) (domain.User, error)
	GetTeamMembers(ctx context.Context, teamName string) ([]domain.User, error)
	SetUsersActive(ctx context.Context, userIDs []string, isActive bool) error
}

// PRRepository defines methods for pull request and assignment data access.
type PRRepository interface {
	CreatePR(ctx context.Context, pr domain.PullRequest) error
	GetPR(ctx context.Context, prID string) (domain.PullRequest, error)
	GetPRForUpdate(ctx context.Context, prID string) (domain.PullRequest, error)
	PRExists(ctx context.Context, prID string) (bool, error)
	SetPRMerged(ctx context.Context, prID string, mergedAt time.Time) (domain.PullRequest, error)
	AssignReviewers(ctx context.Context, prID string, reviewers []string) error
	GetReviewers(ctx context.Context, prID string) ([]string, error)
	ReplaceReviewer(ctx context.Context, prID, oldUserID, newUserID string) error
	GetPRsByReviewer(ctx context.Context, userID string) ([]domain.PullRequest, error)
	GetOpenAssignmentsByReviewers(ctx context.Context, reviewerIDs []string) ([]domain.AssignmentPair, error)
	GetAssignmentStatsByUser(ctx context.Context) (map[string]int, error)
	GetAssignmentStatsByPR(ctx context.Context) (map[string]int, error)
}

// BaseRepository carries the engine factory shared by all repositories.
type BaseRepository struct {
	cm db.EngineFactory
}

func NewBaseRepository(cm db.EngineFactory) BaseRepository {
	return BaseRepository{cm: cm}
}

func (r *BaseRepository) Engine(ctx context.Context) db.Engine {
	return r.cm.Get(ctx)
}
