package audit

import (
	"context"
	"time"

	common_models "decor-crm/internal/common/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserFinder interface {
	FindByIDs(ctx context.Context, ids []string) ([]common_models.User, error)
}

type AuditService interface {
	LogChange(ctx context.Context, tenantID string, action common_models.AuditAction, module, recordID, actorID string, changes map[string]common_models.Change) error
	ListLogs(ctx context.Context, tenantID string, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error)
}

type AuditServiceImpl struct {
	Repo     AuditRepository
	UserRepo UserFinder
}

func NewAuditService(repo AuditRepository, userRepo UserFinder) AuditService {
	return &AuditServiceImpl{
		Repo:     repo,
		UserRepo: userRepo,
	}
}

func (s *AuditServiceImpl) LogChange(ctx context.Context, tenantID string, action common_models.AuditAction, module, recordID, actorID string, changes map[string]common_models.Change) error {
	if actorID == "" {
		actorID = "system"
	}

	log := common_models.AuditLog{
		ID:        primitive.NewObjectID(),
		TenantID:  tenantID,
		Action:    action,
		Module:    module,
		RecordID:  recordID,
		ActorID:   actorID,
		Changes:   changes,
		Timestamp: time.Now(),
	}

	return s.Repo.Create(ctx, log)
}

func (s *AuditServiceImpl) ListLogs(ctx context.Context, tenantID string, filters map[string]interface{}, page, limit int64) ([]common_models.AuditLog, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	offset := (page - 1) * limit

	merged := map[string]interface{}{"tenant_id": tenantID}
	for k, v := range filters {
		merged[k] = v
	}

	logs, err := s.Repo.List(ctx, merged, limit, offset)
	if err != nil {
		return nil, err
	}

	// Populate actor names for display
	ids := make([]string, 0, len(logs))
	for _, l := range logs {
		if l.ActorID != "" && l.ActorID != "system" {
			ids = append(ids, l.ActorID)
		}
	}
	if len(ids) > 0 {
		if users, err := s.UserRepo.FindByIDs(ctx, ids); err == nil {
			names := make(map[string]string, len(users))
			for _, u := range users {
				names[u.ID.Hex()] = u.Name
			}
			for i := range logs {
				logs[i].ActorName = names[logs[i].ActorID]
			}
		}
	}

	return logs, nil
}
