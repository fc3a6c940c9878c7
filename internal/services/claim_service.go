package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/models"
)

// ClaimRepository defines the interface for claim persistence
type ClaimRepository interface {
	GetByID(ctx context.Context, id string) (*models.Claim, error)
	List(ctx context.Context, limit, offset int) ([]*models.Claim, error)
	ListByPolicy(ctx context.Context, policyID string, limit, offset int) ([]*models.Claim, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*models.Claim, error)
	Create(ctx context.Context, claim *models.Claim) (*models.Claim, error)
	UpdateStatus(ctx context.Context, id, status string) (*models.Claim, error)
	Delete(ctx context.Context, id string) error
}

// ClaimService handles claim filing and the status workflow
type ClaimService struct {
	claims    ClaimRepository
	policies  PolicyRepository
	rateLimit *RateLimitService
	activity  *ActivityService
	logger    *slog.Logger
}

func NewClaimService(claims ClaimRepository, policies PolicyRepository, rateLimit *RateLimitService, activity *ActivityService, logger *slog.Logger) *ClaimService {
	return &ClaimService{
		claims:    claims,
		policies:  policies,
		rateLimit: rateLimit,
		activity:  activity,
		logger:    logger,
	}
}

// ClaimResponse represents a claim in the HTTP response
type ClaimResponse struct {
	ID          string  `json:"id"`
	ClaimNumber string  `json:"claim_number"`
	PolicyID    string  `json:"policy_id"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
	Description string  `json:"description"`
	FiledBy     string  `json:"filed_by"`
	FiledAt     string  `json:"filed_at"`
	ResolvedAt  *string `json:"resolved_at,omitempty"`
}

// FileClaimRequest is the payload for filing a claim
type FileClaimRequest struct {
	PolicyID    string  `json:"policy_id" validate:"required,uuid"`
	Amount      float64 `json:"amount" validate:"gt=0"`
	Description string  `json:"description" validate:"max=2000"`
}

// UpdateClaimStatusRequest is the payload for claim status transitions
type UpdateClaimStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=submitted in_review approved rejected paid"`
}

// validStatusTransitions is the claim workflow. Terminal states have no
// outgoing edges.
var validStatusTransitions = map[string][]string{
	models.ClaimStatusSubmitted: {models.ClaimStatusInReview},
	models.ClaimStatusInReview:  {models.ClaimStatusApproved, models.ClaimStatusRejected},
	models.ClaimStatusApproved:  {models.ClaimStatusPaid},
}

// File records a new claim against an active policy. Filing is rate limited
// per user.
func (s *ClaimService) File(ctx context.Context, actor *models.AuthUser, req *FileClaimRequest, ipAddress string) (*ClaimResponse, error) {
	if err := s.rateLimit.CheckLimit(ctx, actor.UserID, "claim_file"); err != nil {
		return nil, err
	}

	policy, err := s.policies.GetByID(ctx, req.PolicyID)
	if err != nil {
		return nil, err
	}
	if policy.Status != models.PolicyStatusActive {
		return nil, models.ErrBadRequest
	}

	claim := &models.Claim{
		ClaimNumber: generateClaimNumber(),
		PolicyID:    req.PolicyID,
		Amount:      req.Amount,
		Status:      models.ClaimStatusSubmitted,
		Description: req.Description,
		FiledBy:     actor.UserID,
	}

	created, err := s.claims.Create(ctx, claim)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor.UserID, models.ActivityClaimFile, "filed claim "+created.ClaimNumber, ipAddress)

	return claimModelToResponse(created), nil
}

func (s *ClaimService) Get(ctx context.Context, id string) (*ClaimResponse, error) {
	claim, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return claimModelToResponse(claim), nil
}

func (s *ClaimService) List(ctx context.Context, policyID, status string, limit, offset int) ([]*ClaimResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var claims []*models.Claim
	var err error
	switch {
	case policyID != "":
		claims, err = s.claims.ListByPolicy(ctx, policyID, limit, offset)
	case status != "":
		if !models.ValidClaimStatus(status) {
			return nil, models.ErrBadRequest
		}
		claims, err = s.claims.ListByStatus(ctx, status, limit, offset)
	default:
		claims, err = s.claims.List(ctx, limit, offset)
	}
	if err != nil {
		s.logger.Error("failed to list claims", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	responses := make([]*ClaimResponse, 0, len(claims))
	for _, claim := range claims {
		responses = append(responses, claimModelToResponse(claim))
	}
	return responses, nil
}

// UpdateStatus transitions a claim along the workflow. Invalid transitions,
// including any move out of a terminal state, are rejected.
func (s *ClaimService) UpdateStatus(ctx context.Context, actor *models.AuthUser, id string, req *UpdateClaimStatusRequest, ipAddress string) (*ClaimResponse, error) {
	claim, err := s.claims.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !transitionAllowed(claim.Status, req.Status) {
		return nil, models.ErrBadRequest
	}

	updated, err := s.claims.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor.UserID, models.ActivityClaimUpdate,
		fmt.Sprintf("claim %s: %s -> %s", updated.ClaimNumber, claim.Status, updated.Status), ipAddress)

	return claimModelToResponse(updated), nil
}

func (s *ClaimService) Delete(ctx context.Context, actor *models.AuthUser, id, ipAddress string) error {
	if err := s.claims.Delete(ctx, id); err != nil {
		return err
	}

	s.activity.Record(ctx, actor.UserID, models.ActivityClaimUpdate, "deleted claim "+id, ipAddress)

	return nil
}

func transitionAllowed(from, to string) bool {
	for _, next := range validStatusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// generateClaimNumber builds a human-readable claim reference.
func generateClaimNumber() string {
	return fmt.Sprintf("CLM-%d", time.Now().UnixNano())
}

func claimModelToResponse(claim *models.Claim) *ClaimResponse {
	resp := &ClaimResponse{
		ID:          claim.ID,
		ClaimNumber: claim.ClaimNumber,
		PolicyID:    claim.PolicyID,
		Amount:      claim.Amount,
		Status:      claim.Status,
		Description: claim.Description,
		FiledBy:     claim.FiledBy,
		FiledAt:     claim.FiledAt.Format(time.RFC3339),
	}
	if claim.ResolvedAt != nil {
		resolved := claim.ResolvedAt.Format(time.RFC3339)
		resp.ResolvedAt = &resolved
	}
	return resp
}
