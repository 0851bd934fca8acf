package user

import (
	"context"

	common_models "decor-crm/internal/common/models"
)

type UserService interface {
	CreateUser(ctx context.Context, user *common_models.User) error
	GetUser(ctx context.Context, tenantID, id string) (*common_models.User, error)
	ListUsers(ctx context.Context, tenantID string, page, limit int64) ([]common_models.User, int64, error)
}

type UserServiceImpl struct {
	Repo UserRepository
}

func NewUserService(repo UserRepository) UserService {
	return &UserServiceImpl{Repo: repo}
}

func (s *UserServiceImpl) CreateUser(ctx context.Context, user *common_models.User) error {
	return s.Repo.Create(ctx, user)
}

func (s *UserServiceImpl) GetUser(ctx context.Context, tenantID, id string) (*common_models.User, error) {
	return s.Repo.FindByID(ctx, tenantID, id)
}

func (s *UserServiceImpl) ListUsers(ctx context.Context, tenantID string, page, limit int64) ([]common_models.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return s.Repo.List(ctx, tenantID, limit, (page-1)*limit)
}
