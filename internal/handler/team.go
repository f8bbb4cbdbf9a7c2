package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"pr-review-service/internal/app/middleware"
	"pr-review-service/internal/domain"

	"go.uber.org/zap"
)

type teamService interface {
	CreateTeam(ctx context.Context, teamName string, members []domain.User) (domain.Team, error)
	GetTeam(ctx context.Context, teamName string) (domain.Team, error)
	BulkDeactivateTeam(ctx context.Context, teamName string, userIDs []string) ([]string, []domain.Reassignment, error)
}

// TeamHandler handles team-related HTTP requests.
type TeamHandler struct {
	service teamService
	logger  *zap.Logger
}

// NewTeamHandler creates a new team handler.
func NewTeamHandler(service teamService, logger *zap.Logger) *TeamHandler {
	return &TeamHandler{
		service: service,
		logger:  logger,
	}
}

// Team DTOs matching OpenAPI schema with snake_case

type TeamMemberDTO struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	IsActive bool   `json:"is_active"`
}

type TeamDTO struct {
	TeamName string          `json:"team_name"`
	Members  []TeamMemberDTO `json:"members"`
}

type teamEnvelope struct {
	Team TeamDTO `json:"team"`
}

type BulkDeactivateRequest struct {
	TeamName string   `json:"team_name"`
	UserIDs  []string `json:"user_ids,omitempty"`
}

type ReassignmentDTO struct {
	PullRequestID string `json:"pr_id"`
	OldReviewerID string `json:"old_reviewer_id"`
	NewReviewerID string `json:"new_reviewer_id"`
}

type BulkDeactivateResponse struct {
	TeamName         string            `json:"team_name"`
	DeactivatedUsers []string          `json:"deactivated_users"`
	Reassignments    []ReassignmentDTO `json:"reassignments"`
}

// AddTeam handles POST /team/add
func (h *TeamHandler) AddTeam(w http.ResponseWriter, r *http.Request) {
	var req TeamDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, domain.ErrInvalidArgument, h.logger)
		return
	}

	members := make([]domain.User, len(req.Members))
	for i, m := range req.Members {
		members[i] = domain.User{
			UserID:   m.UserID,
			Username: m.Username,
			TeamName: req.TeamName,
			IsActive: m.IsActive,
		}
	}

	createdTeam, err := h.service.CreateTeam(r.Context(), req.TeamName, members)
	if err != nil {
		middleware.WriteErrorResponse(w, err, h.logger)
		return
	}

	resp := teamEnvelope{Team: mapTeamToDTO(createdTeam)}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

// GetTeam handles GET /team/get?team_name=...
func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	teamName := r.URL.Query().Get("team_name")
	if teamName == "" {
		middleware.WriteErrorResponse(w, domain.ErrInvalidArgument, h.logger)
		return
	}

	team, err := h.service.GetTeam(r.Context(), teamName)
	if err != nil {
		middleware.WriteErrorResponse(w, err, h.logger)
		return
	}

	resp := mapTeamToDTO(team)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// BulkDeactivate handles POST /team/bulkDeactivate
func (h *TeamHandler) BulkDeactivate(w http.ResponseWriter, r *http.Request) {
	var req BulkDeactivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, domain.ErrInvalidArgument, h.logger)
		return
	}

	deactivated, reassignments, err := h.service.BulkDeactivateTeam(r.Context(), req.TeamName, req.UserIDs)
	if err != nil {
		middleware.WriteErrorResponse(w, err, h.logger)
		return
	}

	resp := BulkDeactivateResponse{
		TeamName:         req.TeamName,
		DeactivatedUsers: deactivated,
		Reassignments:    make([]ReassignmentDTO, len(reassignments)),
	}
	for i, ra := range reassignments {
		resp.Reassignments[i] = ReassignmentDTO{
			PullRequestID: ra.PullRequestID,
			OldReviewerID: ra.OldUserID,
			NewReviewerID: ra.NewUserID,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func mapTeamToDTO(team domain.Team) TeamDTO {
	members := make([]TeamMemberDTO, len(team.Members))
	for i, m := range team.Members {
		members[i] = TeamMemberDTO{
			UserID:   m.UserID,
			Username: m.Username,
			IsActive: m.IsActive,
		}
	}
	return TeamDTO{
		TeamName: team.TeamName,
		Members:  members,
	}
}
