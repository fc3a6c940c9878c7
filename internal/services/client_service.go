package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/coverdeskhq/coverdesk/internal/models"
)

// ClientRepository defines the interface for client persistence
type ClientRepository interface {
	GetByID(ctx context.Context, id string) (*models.Client, error)
	List(ctx context.Context, limit, offset int) ([]*models.Client, error)
	Search(ctx context.Context, term string, limit, offset int) ([]*models.Client, error)
	Create(ctx context.Context, client *models.Client) (*models.Client, error)
	Update(ctx context.Context, id string, client *models.Client) (*models.Client, error)
	Delete(ctx context.Context, id string) error
}

// ClientService handles policyholder records
type ClientService struct {
	repo     ClientRepository
	activity *ActivityService
	logger   *slog.Logger
}

func NewClientService(repo ClientRepository, activity *ActivityService, logger *slog.Logger) *ClientService {
	return &ClientService{
		repo:     repo,
		activity: activity,
		logger:   logger,
	}
}

// ClientResponse represents a client in the HTTP response
type ClientResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ClientRequest is the payload for client create and update
type ClientRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"max=40"`
	Address string `json:"address" validate:"max=500"`
}

func (s *ClientService) Create(ctx context.Context, actor *models.AuthUser, req *ClientRequest, ipAddress string) (*ClientResponse, error) {
	client := &models.Client{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		CreatedBy: actor.UserID,
	}

	created, err := s.repo.Create(ctx, client)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor.UserID, models.ActivityClientCreate, "created client "+created.ID, ipAddress)

	return clientModelToResponse(created), nil
}

func (s *ClientService) Get(ctx context.Context, id string) (*ClientResponse, error) {
	client, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return clientModelToResponse(client), nil
}

func (s *ClientService) List(ctx context.Context, search string, limit, offset int) ([]*ClientResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var clients []*models.Client
	var err error
	if search != "" {
		clients, err = s.repo.Search(ctx, search, limit, offset)
	} else {
		clients, err = s.repo.List(ctx, limit, offset)
	}
	if err != nil {
		s.logger.Error("failed to list clients", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	responses := make([]*ClientResponse, 0, len(clients))
	for _, client := range clients {
		responses = append(responses, clientModelToResponse(client))
	}
	return responses, nil
}

func (s *ClientService) Update(ctx context.Context, actor *models.AuthUser, id string, req *ClientRequest, ipAddress string) (*ClientResponse, error) {
	client, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	client.Name = req.Name
	client.Email = req.Email
	client.Phone = req.Phone
	client.Address = req.Address

	updated, err := s.repo.Update(ctx, id, client)
	if err != nil {
		return nil, err
	}

	s.activity.Record(ctx, actor.UserID, models.ActivityClientUpdate, "updated client "+id, ipAddress)

	return clientModelToResponse(updated), nil
}

func (s *ClientService) Delete(ctx context.Context, actor *models.AuthUser, id, ipAddress string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.activity.Record(ctx, actor.UserID, models.ActivityClientDelete, "deleted client "+id, ipAddress)

	return nil
}

func clientModelToResponse(client *models.Client) *ClientResponse {
	return &ClientResponse{
		ID:        client.ID,
		Name:      client.Name,
		Email:     client.Email,
		Phone:     client.Phone,
		Address:   client.Address,
		CreatedAt: client.CreatedAt.Format(time.RFC3339),
		UpdatedAt: client.UpdatedAt.Format(time.RFC3339),
	}
}
