package flow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FlowService interface {
	CreateFlow(ctx context.Context, flow ApprovalFlow) error
	GetFlow(ctx context.Context, tenantID, id string) (*ApprovalFlow, error)
	ListFlows(ctx context.Context, tenantID string) ([]ApprovalFlow, error)
	UpdateFlow(ctx context.Context, tenantID, id string, flow ApprovalFlow) error
	DeleteFlow(ctx context.Context, tenantID, id string) error

	// ResolveFlow is the registry lookup the engine runs on every open.
	// Returns nil when no active flow is configured (engine fails open).
	ResolveFlow(ctx context.Context, tenantID, entityType string) (*ApprovalFlow, error)
}

type FlowServiceImpl struct {
	Repo FlowRepository

	// Flows are read on every gated action but edited rarely; resolved flows
	// are cached per (tenant, entityType) and dropped on any write.
	mu    sync.RWMutex
	cache map[string]*ApprovalFlow
}

func NewFlowService(repo FlowRepository) FlowService {
	return &FlowServiceImpl{
		Repo:  repo,
		cache: make(map[string]*ApprovalFlow),
	}
}

func cacheKey(tenantID, entityType string) string {
	return tenantID + "/" + entityType
}

func (s *FlowServiceImpl) validateFlow(flow ApprovalFlow) error {
	if flow.EntityType == "" {
		return errors.New("entity type is required")
	}
	if flow.Name == "" {
		return errors.New("flow name is required")
	}

	seen := make(map[int]bool, len(flow.Nodes))
	for i, node := range flow.Nodes {
		if node.Index != i {
			return fmt.Errorf("node %q: indexes must be sequential starting at 0", node.Name)
		}
		if seen[node.Index] {
			return fmt.Errorf("node %q: duplicate index %d", node.Name, node.Index)
		}
		seen[node.Index] = true

		switch node.ApproverType {
		case ApproverTypeUser, ApproverTypeRole:
			if node.ApproverValue == "" {
				return fmt.Errorf("node %q: approver value is required for type %s", node.Name, node.ApproverType)
			}
		case ApproverTypeManager:
			// resolved from the requester, no value needed
		default:
			return fmt.Errorf("node %q: unknown approver type %q", node.Name, node.ApproverType)
		}

		if node.SLAHours <= 0 {
			return fmt.Errorf("node %q: SLA hours must be positive", node.Name)
		}
	}
	return nil
}

func (s *FlowServiceImpl) CreateFlow(ctx context.Context, flow ApprovalFlow) error {
	if err := s.validateFlow(flow); err != nil {
		return err
	}

	if flow.Active {
		existing, err := s.Repo.GetActiveByEntityType(ctx, flow.TenantID, flow.EntityType)
		if err != nil {
			return err
		}
		if existing != nil {
			return errors.New("an active flow already exists for this entity type")
		}
	}

	if flow.ID.IsZero() {
		flow.ID = primitive.NewObjectID()
	}
	flow.CreatedAt = time.Now()
	flow.UpdatedAt = time.Now()

	if err := s.Repo.Create(ctx, flow); err != nil {
		return err
	}
	s.invalidate(flow.TenantID, flow.EntityType)
	return nil
}

func (s *FlowServiceImpl) GetFlow(ctx context.Context, tenantID, id string) (*ApprovalFlow, error) {
	return s.Repo.GetByID(ctx, tenantID, id)
}

func (s *FlowServiceImpl) ListFlows(ctx context.Context, tenantID string) ([]ApprovalFlow, error) {
	return s.Repo.List(ctx, tenantID)
}

func (s *FlowServiceImpl) UpdateFlow(ctx context.Context, tenantID, id string, flow ApprovalFlow) error {
	if err := s.validateFlow(flow); err != nil {
		return err
	}

	current, err := s.Repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if current == nil {
		return errors.New("flow not found")
	}

	if err := s.Repo.Update(ctx, tenantID, id, flow); err != nil {
		return err
	}
	s.invalidate(tenantID, current.EntityType)
	return nil
}

func (s *FlowServiceImpl) DeleteFlow(ctx context.Context, tenantID, id string) error {
	current, err := s.Repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}

	if err := s.Repo.Delete(ctx, tenantID, id); err != nil {
		return err
	}
	s.invalidate(tenantID, current.EntityType)
	return nil
}

func (s *FlowServiceImpl) ResolveFlow(ctx context.Context, tenantID, entityType string) (*ApprovalFlow, error) {
	key := cacheKey(tenantID, entityType)

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	flow, err := s.Repo.GetActiveByEntityType(ctx, tenantID, entityType)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = flow // nil is cached too: unconfigured types are the hot path
	s.mu.Unlock()

	return flow, nil
}

func (s *FlowServiceImpl) invalidate(tenantID, entityType string) {
	s.mu.Lock()
	delete(s.cache, cacheKey(tenantID, entityType))
	s.mu.Unlock()
}
