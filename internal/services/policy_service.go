package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/models"
)

// PolicyRepository defines the interface for policy persistence
type PolicyRepository interface {
	GetByID(ctx context.Context, id string) (*models.Policy, error)
	List(ctx context.Context, limit, offset int) ([]*models.Policy, error)
	ListByClient(ctx context.Context, clientID string, limit, offset int) ([]*models.Policy, error)
	Create(ctx context.Context, policy *models.Policy) (*models.Policy, error)
	Update(ctx context.Context, id string, policy *models.Policy) (*models.Policy, error)
	Delete(ctx context.Context, id string) error
}

// PolicyService handles insurance policies
type PolicyService struct {
	repo     PolicyRepository
	clients  ClientRepository
	activity *ActivityService
	logger   *slog.Logger
}

func NewPolicyService(repo PolicyRepository, clients ClientRepository, activity *ActivityService, logger *slog.Logger) *PolicyService {
	return &PolicyService{
		repo:     repo,
		clients:  clients,
		activity: activity,
		logger:   logger,
	}
}

// PolicyResponse represents a policy in the HTTP response
type PolicyResponse struct {
	ID           string  `json:"id"`
	PolicyNumber string  `json:"policy_number"`
	ClientID     string  `json:"client_id"`
	AgentID      string  `json:"agent_id"`
	Type         string  `json:"type"`
	Premium      float64 `json:"premium"`
	Status       string  `json:"status"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// CreatePolicyRequest is the payload for policy creation
type CreatePolicyRequest struct {
	PolicyNumber string  `json:"policy_number" validate:"required,min=1,max=60"`
	ClientID     string  `json:"client_id" validate:"required,uuid"`
	Type         string  `json:"type" validate:"required,oneof=auto home life health"`
	Premium      float64 `json:"premium" validate:"gte=0"`
	StartDate    string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate      string  `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// UpdatePolicyRequest is the payload for policy updates
type UpdatePolicyRequest struct {
	Type      string  `json:"type" validate:"required,oneof=auto home life health"`
	Premium   float64 `json:"premium" validate:"gte=0"`
	Status    string  `json:"status" validate:"required,oneof=active expired cancelled"`
	StartDate string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string  `json:"end_date" validate:"required,datetime=2006-01-02"`
}

func (s *PolicyService) Create(ctx context.Context, actor *models.AuthUser, req *CreatePolicyRequest, ipAddress string) (*PolicyResponse, error) {
	start, end, err := parsePolicyDates(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	// The client must exist; a dangling policy row is rejected here rather
	// than surfacing as a foreign key violation.
	if _, err := s.clients.GetByID(ctx, req.ClientID); err != nil {
		return nil, err
	}

	policy := &models.Policy{
		PolicyNumber: req.PolicyNumber,
		ClientID:     req.ClientID,
		AgentID:      actor.UserID,
		Type:         req.Type,
		Premium:      req.Premium,
		Status:       models.PolicyStatusActive,
		StartDate:    start,
		EndDate:      end,
	}

	created, err := s.repo.Create(ctx, policy)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor.UserID, models.ActivityPolicyCreate, "created policy "+created.PolicyNumber, ipAddress)

	return policyModelToResponse(created), nil
}

func (s *PolicyService) Get(ctx context.Context, id string) (*PolicyResponse, error) {
	policy, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return policyModelToResponse(policy), nil
}

func (s *PolicyService) List(ctx context.Context, clientID string, limit, offset int) ([]*PolicyResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var policies []*models.Policy
	var err error
	if clientID != "" {
		policies, err = s.repo.ListByClient(ctx, clientID, limit, offset)
	} else {
		policies, err = s.repo.List(ctx, limit, offset)
	}
	if err != nil {
		s.logger.Error("failed to list policies", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	responses := make([]*PolicyResponse, 0, len(policies))
	for _, policy := range policies {
		responses = append(responses, policyModelToResponse(policy))
	}
	return responses, nil
}

func (s *PolicyService) Update(ctx context.Context, actor *models.AuthUser, id string, req *UpdatePolicyRequest, ipAddress string) (*PolicyResponse, error) {
	start, end, err := parsePolicyDates(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	policy, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	policy.Type = req.Type
	policy.Premium = req.Premium
	policy.Status = req.Status
	policy.StartDate = start
	policy.EndDate = end

	updated, err := s.repo.Update(ctx, id, policy)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor.UserID, models.ActivityPolicyUpdate, "updated policy "+updated.PolicyNumber, ipAddress)

	return policyModelToResponse(updated), nil
}

func (s *PolicyService) Delete(ctx context.Context, actor *models.AuthUser, id, ipAddress string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.activity.Record(ctx, actor.UserID, models.ActivityPolicyDelete, "deleted policy "+id, ipAddress)

	return nil
}

func parsePolicyDates(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return time.Time{}, time.Time{}, models.ErrBadRequest
	}
	end, err := time.Parse("2006-01-02", endDate)
	if err != nil {
		return time.Time{}, time.Time{}, models.ErrBadRequest
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, models.ErrBadRequest
	}
	return start, end, nil
}

func policyModelToResponse(policy *models.Policy) *PolicyResponse {
	return &PolicyResponse{
		ID:           policy.ID,
		PolicyNumber: policy.PolicyNumber,
		ClientID:     policy.ClientID,
		AgentID:      policy.AgentID,
		Type:         policy.Type,
		Premium:      policy.Premium,
		Status:       policy.Status,
		StartDate:    policy.StartDate.Format("2006-01-02"),
		EndDate:      policy.EndDate.Format("2006-01-02"),
		CreatedAt:    policy.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    policy.UpdatedAt.Format(time.RFC3339),
	}
}
