package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pr-review-service/internal/app/middleware"
	"pr-review-service/internal/domain"
	"pr-review-service/internal/handler"
	"pr-review-service/internal/service/assignment"
	"pr-review-service/internal/service/pullrequest"
	"pr-review-service/internal/service/team"
	"pr-review-service/internal/service/user"
)

func TestHTTPE2E(t *testing.T) {
	s := newTestServer(t)
	defer s.Close()

	teamPayload := map[string]any{
		"team_name": "backend",
		"members": []map[string]any{
			{"user_id": "u1", "username": "Alice", "is_active": true},
			{"user_id": "u2", "username": "Bob", "is_active": true},
			{"user_id": "u3", "username": "Charlie", "is_active": true},
			{"user_id": "u4", "username": "David", "is_active": true},
		},
	}

	var teamResp teamResponse
	s.postJSON("/team/add", teamPayload, http.StatusCreated, &teamResp)
	assert.Equal(t, "backend", teamResp.Team.TeamName)

	// Duplicate team name is rejected.
	s.postJSON("/team/add", teamPayload, http.StatusBadRequest, nil)

	createPR := func(id, name, author string) createPRResponse {
		var resp createPRResponse
		s.postJSON("/pullRequest/create", map[string]string{
			"pull_request_id":   id,
			"pull_request_name": name,
			"author_id":         author,
		}, http.StatusCreated, &resp)
		return resp
	}

	pr1 := createPR("pr-1001", "Add search", "u1")
	require.Equal(t, []string{"u2", "u3"}, pr1.PR.AssignedReviewers)

	pr2 := createPR("pr-1002", "Refactor payments", "u1")
	require.Equal(t, []string{"u2", "u3"}, pr2.PR.AssignedReviewers)

	// Replacement comes from the same team, excluding author and current
	// reviewers; with insertion-order selection that is u4.
	var reassignResp reassignResponse
	s.postJSON("/pullRequest/reassign", map[string]string{
		"pull_request_id": "pr-1002",
		"old_user_id":     "u2",
	}, http.StatusOK, &reassignResp)
	assert.Equal(t, "u4", reassignResp.ReplacedBy)
	assert.Equal(t, []string{"u4", "u3"}, reassignResp.PR.AssignedReviewers)

	// Reassigning someone who is not on the PR anymore.
	s.postJSON("/pullRequest/reassign", map[string]string{
		"pull_request_id": "pr-1002",
		"old_user_id":     "u2",
	}, http.StatusConflict, nil)

	// Merge is idempotent and keeps the first merged_at.
	var mergeFirst, mergeSecond mergeResponse
	s.postJSON("/pullRequest/merge", map[string]string{"pull_request_id": "pr-1002"}, http.StatusOK, &mergeFirst)
	s.postJSON("/pullRequest/merge", map[string]string{"pull_request_id": "pr-1002"}, http.StatusOK, &mergeSecond)
	assert.Equal(t, "MERGED", mergeSecond.PR.Status)
	require.NotNil(t, mergeFirst.PR.MergedAt)
	assert.Equal(t, *mergeFirst.PR.MergedAt, *mergeSecond.PR.MergedAt)

	// Reassignment on a merged PR is rejected.
	s.postJSON("/pullRequest/reassign", map[string]string{
		"pull_request_id": "pr-1002",
		"old_user_id":     "u3",
	}, http.StatusConflict, nil)

	var stats statsResponse
	s.getJSON("/stats/assignments", http.StatusOK, &stats)
	assert.NotEmpty(t, stats.ByUser)
	assert.NotEmpty(t, stats.ByPR)

	// Bulk deactivation of u2 cascades over the open pr-1001 only.
	var bulkResp bulkDeactivateResponse
	s.postJSON("/team/bulkDeactivate", map[string]any{
		"team_name": "backend",
		"user_ids":  []string{"u2"},
	}, http.StatusOK, &bulkResp)

	assert.Equal(t, []string{"u2"}, bulkResp.DeactivatedUsers)
	require.Len(t, bulkResp.Reassignments, 1)
	assert.Equal(t, "pr-1001", bulkResp.Reassignments[0].PullRequestID)
	assert.Equal(t, "u2", bulkResp.Reassignments[0].OldReviewerID)
	assert.Equal(t, "u4", bulkResp.Reassignments[0].NewReviewerID)

	var oldReview getReviewResponse
	s.getJSON("/users/getReview?user_id=u2", http.StatusOK, &oldReview)
	assert.False(t, containsPR(oldReview.PullRequests, "pr-1001"))

	var newReview getReviewResponse
	s.getJSON("/users/getReview?user_id=u4", http.StatusOK, &newReview)
	assert.True(t, containsPR(newReview.PullRequests, "pr-1001"))

	// Reactivate u2 via setIsActive.
	var activeResp setIsActiveResponse
	s.postJSON("/users/setIsActive", map[string]any{
		"user_id":   "u2",
		"is_active": true,
	}, http.StatusOK, &activeResp)
	assert.True(t, activeResp.User.IsActive)
	assert.Equal(t, "backend", activeResp.User.TeamName)

	s.postJSON("/users/setIsActive", map[string]any{
		"user_id":   "ghost",
		"is_active": true,
	}, http.StatusNotFound, nil)

	s.getJSON("/team/get?team_name=ghosts", http.StatusNotFound, nil)
}

func TestHTTPE2ENoCandidate(t *testing.T) {
	s := newTestServer(t)
	defer s.Close()

	s.postJSON("/team/add", map[string]any{
		"team_name": "trio",
		"members": []map[string]any{
			{"user_id": "a1", "username": "Ann", "is_active": true},
			{"user_id": "a2", "username": "Ben", "is_active": true},
			{"user_id": "a3", "username": "Cal", "is_active": true},
		},
	}, http.StatusCreated, nil)

	var created createPRResponse
	s.postJSON("/pullRequest/create", map[string]string{
		"pull_request_id":   "pr-1",
		"pull_request_name": "Trio work",
		"author_id":         "a1",
	}, http.StatusCreated, &created)
	require.Equal(t, []string{"a2", "a3"}, created.PR.AssignedReviewers)

	// No fourth member: both teammates already review and the author is
	// excluded.
	var errResp errorResponse
	s.postJSON("/pullRequest/reassign", map[string]string{
		"pull_request_id": "pr-1",
		"old_user_id":     "a2",
	}, http.StatusConflict, &errResp)
	assert.Equal(t, "NO_CANDIDATE", errResp.Error.Code)
}

type testServer struct {
	t      *testing.T
	server *httptest.Server
	client *http.Client
	base   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	userRepo := newMemoryUserRepo()
	teamRepo := newMemoryTeamRepo(userRepo)
	prRepo := newMemoryPRRepo()

	transactor := noopTransactor{}
	selector := assignment.NewSelector()

	teamService := team.NewService(teamRepo, userRepo, prRepo, transactor, selector)
	userService := user.NewService(userRepo, prRepo)
	prService := pullrequest.NewService(prRepo, userRepo, transactor, selector)

	log := zap.NewNop()

	teamHandler := handler.NewTeamHandler(teamService, log)
	userHandler := handler.NewUserHandler(userService, log)
	prHandler := handler.NewPRHandler(prService, log)
	statsHandler := handler.NewStatsHandler(prService, log)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /team/add", teamHandler.AddTeam)
	mux.HandleFunc("GET /team/get", teamHandler.GetTeam)
	mux.HandleFunc("POST /team/bulkDeactivate", teamHandler.BulkDeactivate)
	mux.HandleFunc("POST /users/setIsActive", userHandler.SetIsActive)
	mux.HandleFunc("GET /users/getReview", userHandler.GetReview)
	mux.HandleFunc("POST /pullRequest/create", prHandler.CreatePR)
	mux.HandleFunc("POST /pullRequest/merge", prHandler.MergePR)
	mux.HandleFunc("POST /pullRequest/reassign", prHandler.ReassignReviewer)
	mux.HandleFunc("GET /stats/assignments", statsHandler.GetAssignmentStats)

	var h http.Handler = mux
	h = middleware.Logging(log)(h)
	h = middleware.Recovery(log)(h)

	server := httptest.NewServer(h)

	return &testServer{
		t:      t,
		server: server,
		client: server.Client(),
		base:   server.URL,
	}
}

func (s *testServer) Close() {
	s.server.Close()
}

func (s *testServer) postJSON(path string, body any, expectedStatus int, out any) {
	s.t.Helper()

	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("failed to marshal request body: %v", err)
		}
		buf = bytes.NewReader(data)
	}

	req, err := http.NewRequest(http.MethodPost, s.base+path, buf)
	if err != nil {
		s.t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	s.do(req, expectedStatus, out)
}

func (s *testServer) getJSON(path string, expectedStatus int, out any) {
	s.t.Helper()

	req, err := http.NewRequest(http.MethodGet, s.base+path, nil)
	if err != nil {
		s.t.Fatalf("failed to build request: %v", err)
	}

	s.do(req, expectedStatus, out)
}

func (s *testServer) do(req *http.Request, expectedStatus int, out any) {
	s.t.Helper()

	resp, err := s.client.Do(req)
	if err != nil {
		s.t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != expectedStatus {
		bodyBytes, _ := io.ReadAll(resp.Body)
		s.t.Fatalf("expected status %d, got %d: %s", expectedStatus, resp.StatusCode, string(bodyBytes))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			s.t.Fatalf("failed to decode response: %v", err)
		}
	}
}

type teamResponse struct {
	Team struct {
		TeamName string `json:"team_name"`
	} `json:"team"`
}

type createPRResponse struct {
	PR struct {
		PullRequestID     string   `json:"pull_request_id"`
		PullRequestName   string   `json:"pull_request_name"`
		AuthorID          string   `json:"author_id"`
		Status            string   `json:"status"`
		AssignedReviewers []string `json:"assigned_reviewers"`
	} `json:"pr"`
}

type reassignResponse struct {
	PR struct {
		PullRequestID     string   `json:"pull_request_id"`
		AssignedReviewers []string `json:"assigned_reviewers"`
	} `json:"pr"`
	ReplacedBy string `json:"replaced_by"`
}

type mergeResponse struct {
	PR struct {
		PullRequestID string  `json:"pull_request_id"`
		Status        string  `json:"status"`
		MergedAt      *string `json:"mergedAt"`
	} `json:"pr"`
}

type statsResponse struct {
	ByUser map[string]int `json:"by_user"`
	ByPR   map[string]int `json:"by_pr"`
}

type bulkDeactivateResponse struct {
	TeamName         string   `json:"team_name"`
	DeactivatedUsers []string `json:"deactivated_users"`
	Reassignments    []struct {
		PullRequestID string `json:"pr_id"`
		OldReviewerID string `json:"old_reviewer_id"`
		NewReviewerID string `json:"new_reviewer_id"`
	} `json:"reassignments"`
}

type setIsActiveResponse struct {
	User struct {
		UserID   string `json:"user_id"`
		TeamName string `json:"team_name"`
		IsActive bool   `json:"is_active"`
	} `json:"user"`
}

type getReviewResponse struct {
	UserID       string           `json:"user_id"`
	PullRequests []pullRequestRef `json:"pull_requests"`
}

type pullRequestRef struct {
	PullRequestID string `json:"pull_request_id"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func containsPR(prs []pullRequestRef, id string) bool {
	for _, pr := range prs {
		if pr.PullRequestID == id {
			return true
		}
	}
	return false
}

// --- in-memory repositories and transactor ---

type noopTransactor struct{}

func (noopTransactor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memoryTeamRepo struct {
	mu       sync.RWMutex
	teams    map[string]domain.Team
	userRepo *memoryUserRepo
}

func newMemoryTeamRepo(userRepo *memoryUserRepo) *memoryTeamRepo {
	return &memoryTeamRepo{
		teams:    make(map[string]domain.Team),
		userRepo: userRepo,
	}
}

func (r *memoryTeamRepo) CreateTeam(_ context.Context, team domain.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teams[team.TeamName] = team
	return nil
}

func (r *memoryTeamRepo) GetTeam(_ context.Context, teamName string) (domain.Team, error) {
	r.mu.RLock()
	team, ok := r.teams[teamName]
	r.mu.RUnlock()
	if !ok {
		return domain.Team{}, domain.NewNotFound("team", teamName)
	}
	team.Members = r.userRepo.members(teamName)
	return team, nil
}

func (r *memoryTeamRepo) TeamExists(_ context.Context, teamName string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.teams[teamName]
	return ok, nil
}

type memoryUserRepo struct {
	mu    sync.RWMutex
	users []domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{}
}

func (r *memoryUserRepo) CreateOrUpdateUser(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.users {
		if r.users[i].UserID == user.UserID {
			r.users[i] = user
			return nil
		}
	}
	r.users = append(r.users, user)
	return nil
}

func (r *memoryUserRepo) UpdateUser(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.users {
		if r.users[i].UserID == user.UserID {
			r.users[i] = user
			return nil
		}
	}
	return domain.NewNotFound("user", user.UserID)
}

func (r *memoryUserRepo) GetUser(_ context.Context, userID string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.UserID == userID {
			return u, nil
		}
	}
	return domain.User{}, domain.NewNotFound("user", userID)
}

func (r *memoryUserRepo) GetTeamMembers(_ context.Context, teamName string) ([]domain.User, error) {
	return r.members(teamName), nil
}

func (r *memoryUserRepo) SetUsersActive(_ context.Context, userIDs []string, isActive bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range userIDs {
		for i := range r.users {
			if r.users[i].UserID == id {
				r.users[i].IsActive = isActive
				r.users[i].UpdatedAt = time.Now().UTC()
			}
		}
	}
	return nil
}

func (r *memoryUserRepo) members(teamName string) []domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	members := make([]domain.User, 0)
	for _, u := range r.users {
		if u.TeamName == teamName {
			members = append(members, u)
		}
	}
	return members
}

type memoryPRRepo struct {
	mu    sync.RWMutex
	prs   map[string]*domain.PullRequest
	order []string
}

func newMemoryPRRepo() *memoryPRRepo {
	return &memoryPRRepo{prs: make(map[string]*domain.PullRequest)}
}

func (r *memoryPRRepo) CreatePR(_ context.Context, pr domain.PullRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := pr
	cp.AssignedReviewers = nil
	r.prs[pr.PullRequestID] = &cp
	r.order = append(r.order, pr.PullRequestID)
	return nil
}

func (r *memoryPRRepo) GetPRForUpdate(_ context.Context, prID string) (domain.PullRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pr, ok := r.prs[prID]
	if !ok {
		return domain.PullRequest{}, domain.NewNotFound("pull_request", prID)
	}
	cp := *pr
	cp.AssignedReviewers = append([]string(nil), pr.AssignedReviewers...)
	return cp, nil
}

func (r *memoryPRRepo) PRExists(_ context.Context, prID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.prs[prID]
	return ok, nil
}

func (r *memoryPRRepo) SetPRMerged(_ context.Context, prID string, mergedAt time.Time) (domain.PullRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, ok := r.prs[prID]
	if !ok {
		return domain.PullRequest{}, domain.NewNotFound("pull_request", prID)
	}
	pr.Status = domain.PRStatusMerged
	if pr.MergedAt == nil {
		pr.MergedAt = &mergedAt
	}
	cp := *pr
	cp.AssignedReviewers = append([]string(nil), pr.AssignedReviewers...)
	return cp, nil
}

func (r *memoryPRRepo) AssignReviewers(_ context.Context, prID string, reviewers []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, ok := r.prs[prID]
	if !ok {
		return domain.NewNotFound("pull_request", prID)
	}
	pr.AssignedReviewers = append(pr.AssignedReviewers, reviewers...)
	return nil
}

func (r *memoryPRRepo) GetReviewers(_ context.Context, prID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pr, ok := r.prs[prID]
	if !ok {
		return nil, domain.NewNotFound("pull_request", prID)
	}
	return append([]string(nil), pr.AssignedReviewers...), nil
}

func (r *memoryPRRepo) ReplaceReviewer(_ context.Context, prID, oldUserID, newUserID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr, ok := r.prs[prID]
	if !ok {
		return domain.NewNotFound("pull_request", prID)
	}
	for i, id := range pr.AssignedReviewers {
		if id == oldUserID {
			pr.AssignedReviewers[i] = newUserID
			return nil
		}
	}
	return domain.NewNotAssigned(prID, oldUserID)
}

func (r *memoryPRRepo) GetPRsByReviewer(_ context.Context, userID string) ([]domain.PullRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]domain.PullRequest, 0)
	for _, id := range r.order {
		pr := r.prs[id]
		for _, reviewer := range pr.AssignedReviewers {
			if reviewer == userID {
				result = append(result, *pr)
				break
			}
		}
	}
	return result, nil
}

func (r *memoryPRRepo) GetOpenAssignmentsByReviewers(_ context.Context, reviewerIDs []string) ([]domain.AssignmentPair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	targets := make(map[string]struct{}, len(reviewerIDs))
	for _, id := range reviewerIDs {
		targets[id] = struct{}{}
	}

	pairs := make([]domain.AssignmentPair, 0)
	for _, id := range r.order {
		pr := r.prs[id]
		if pr.IsMerged() {
			continue
		}
		for _, reviewer := range pr.AssignedReviewers {
			if _, ok := targets[reviewer]; ok {
				pairs = append(pairs, domain.AssignmentPair{
					PullRequestID: id,
					ReviewerID:    reviewer,
					AuthorID:      pr.AuthorID,
				})
			}
		}
	}
	return pairs, nil
}

func (r *memoryPRRepo) GetAssignmentStatsByUser(_ context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := make(map[string]int)
	for _, pr := range r.prs {
		for _, reviewer := range pr.AssignedReviewers {
			stats[reviewer]++
		}
	}
	return stats, nil
}

func (r *memoryPRRepo) GetAssignmentStatsByPR(_ context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := make(map[string]int)
	for id, pr := range r.prs {
		stats[id] = len(pr.AssignedReviewers)
	}
	return stats, nil
}
