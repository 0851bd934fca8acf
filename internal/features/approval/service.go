package approval

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	common_models "decor-crm/internal/common/models"
	"decor-crm/internal/features/audit"
	"decor-crm/internal/features/flow"
	"decor-crm/internal/features/user"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Notifier delivers in-app notifications. Delivery failures never fail an
// engine operation; the engine logs them and moves on.
type Notifier interface {
	Notify(ctx context.Context, tenantID, userID, title, body string, metadata map[string]string) error
}

type ApprovalService interface {
	// OpenApproval starts a run for the entity against the tenant's active
	// flow and returns the new approval id. Reasons are carried onto the run
	// for display (typically the risk evaluator's output).
	OpenApproval(ctx context.Context, tenantID, entityType, entityID, requesterID string, reasons []string) (string, error)

	// ResolveTask applies one approver decision. Exactly one caller wins a
	// concurrent resolution; losers get ErrTaskAlreadyResolved.
	ResolveTask(ctx context.Context, tenantID, taskID, actorID string, decision Decision, comment string, isAdminOverride bool) error

	CancelApproval(ctx context.Context, tenantID, approvalID, actorID string, isAdmin bool) error

	MyPendingTasks(ctx context.Context, tenantID, userID string) ([]ApprovalTask, error)
	ApprovalsByEntity(ctx context.Context, tenantID, entityType, entityID string) ([]Approval, error)
	GetApprovalDetail(ctx context.Context, tenantID, approvalID string) (*ApprovalDetail, error)
	ExportApprovals(ctx context.Context, tenantID string) (*excelize.File, error)
}

type ApprovalServiceImpl struct {
	Repo     ApprovalRepository
	Flows    flow.FlowService
	Users    user.UserRepository
	Audit    audit.AuditService
	Notifier Notifier
	Logger   *zap.Logger
}

func NewApprovalService(repo ApprovalRepository, flows flow.FlowService, users user.UserRepository, auditService audit.AuditService, notifier Notifier, logger *zap.Logger) ApprovalService {
	return &ApprovalServiceImpl{
		Repo:     repo,
		Flows:    flows,
		Users:    users,
		Audit:    auditService,
		Notifier: notifier,
		Logger:   logger,
	}
}

// resolveApprover turns a flow node into a concrete user id, against current
// tenant data. Runs at every task creation; results are never cached, so a
// role holder hired yesterday is picked up today.
func (s *ApprovalServiceImpl) resolveApprover(ctx context.Context, tenantID string, node flow.FlowNode, requesterID string) (string, error) {
	switch node.ApproverType {
	case flow.ApproverTypeUser:
		u, err := s.Users.FindByID(ctx, tenantID, node.ApproverValue)
		if err != nil {
			return "", err
		}
		if u == nil || !u.IsActive {
			return "", fmt.Errorf("%w: node %q approver is missing or inactive", ErrMisconfiguredFlow, node.Name)
		}
		return node.ApproverValue, nil

	case flow.ApproverTypeRole:
		holders, err := s.Users.FindActiveByRole(ctx, tenantID, node.ApproverValue)
		if err != nil {
			return "", err
		}
		if len(holders) == 0 {
			return "", fmt.Errorf("%w: no active user holds role %q for node %q", ErrMisconfiguredFlow, node.ApproverValue, node.Name)
		}
		return holders[0].ID.Hex(), nil

	case flow.ApproverTypeManager:
		requester, err := s.Users.FindByID(ctx, tenantID, requesterID)
		if err != nil {
			return "", err
		}
		if requester == nil || requester.ManagerID == "" {
			return "", fmt.Errorf("%w: requester has no manager for node %q", ErrMisconfiguredFlow, node.Name)
		}
		manager, err := s.Users.FindByID(ctx, tenantID, requester.ManagerID)
		if err != nil {
			return "", err
		}
		if manager == nil || !manager.IsActive {
			return "", fmt.Errorf("%w: requester's manager is missing or inactive for node %q", ErrMisconfiguredFlow, node.Name)
		}
		return requester.ManagerID, nil
	}

	return "", fmt.Errorf("%w: node %q has unknown approver type %q", ErrMisconfiguredFlow, node.Name, node.ApproverType)
}

func (s *ApprovalServiceImpl) OpenApproval(ctx context.Context, tenantID, entityType, entityID, requesterID string, reasons []string) (string, error) {
	f, err := s.Flows.ResolveFlow(ctx, tenantID, entityType)
	if err != nil {
		return "", err
	}
	if f == nil {
		return "", ErrNoFlowConfigured
	}
	if len(f.Nodes) == 0 {
		return "", fmt.Errorf("%w: flow %q has no nodes", ErrMisconfiguredFlow, f.Name)
	}

	first := f.Nodes[0]

	// Resolve before inserting anything so a resolution failure leaves no
	// half-open run behind.
	approverID, err := s.resolveApprover(ctx, tenantID, first, requesterID)
	if err != nil {
		return "", err
	}

	now := time.Now()
	a := &Approval{
		TenantID:         tenantID,
		EntityType:       entityType,
		EntityID:         entityID,
		FlowID:           f.ID,
		FlowName:         f.Name,
		Nodes:            f.Nodes,
		CurrentNodeIndex: 0,
		Status:           ApprovalPending,
		RequesterID:      requesterID,
		Reasons:          reasons,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.Repo.InsertApproval(ctx, a); err != nil {
		return "", err
	}

	task := &ApprovalTask{
		ApprovalID: a.ID,
		TenantID:   tenantID,
		NodeIndex:  first.Index,
		NodeName:   first.Name,
		ApproverID: approverID,
		Status:     TaskPending,
		CreatedAt:  now,
		DueAt:      now.Add(time.Duration(first.SLAHours) * time.Hour),
	}
	if err := s.Repo.InsertTask(ctx, task); err != nil {
		// Release the unique pending slot, otherwise the entity stays wedged
		// behind a run that never got its first task.
		if _, cErr := s.Repo.CancelApprovalCAS(ctx, a.ID, time.Now()); cErr != nil {
			s.Logger.Error("failed to release taskless approval",
				zap.String("approval_id", a.ID.Hex()),
				zap.Error(cErr))
		}
		return "", err
	}

	s.audit(ctx, tenantID, common_models.AuditActionApproval, entityType, a.ID.Hex(), requesterID, map[string]common_models.Change{
		"status": {New: string(ApprovalPending)},
	})
	s.notify(ctx, tenantID, approverID, "Approval requested",
		fmt.Sprintf("%s %s is waiting for your approval (%s)", entityType, entityID, first.Name),
		map[string]string{"approval_id": a.ID.Hex(), "task_id": task.ID.Hex()})

	s.Logger.Info("approval opened",
		zap.String("tenant_id", tenantID),
		zap.String("approval_id", a.ID.Hex()),
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID))

	return a.ID.Hex(), nil
}

func (s *ApprovalServiceImpl) ResolveTask(ctx context.Context, tenantID, taskID, actorID string, decision Decision, comment string, isAdminOverride bool) error {
	if decision != DecisionApprove && decision != DecisionReject {
		return fmt.Errorf("unknown decision %q", decision)
	}

	task, err := s.Repo.GetTask(ctx, tenantID, taskID)
	if err != nil {
		return err
	}

	a, err := s.Repo.GetApprovalByID(ctx, task.ApprovalID)
	if err != nil {
		return err
	}
	if a.Status != ApprovalPending {
		return ErrApprovalNotActive
	}

	if actorID != task.ApproverID && !isAdminOverride {
		return ErrUnauthorized
	}

	isLast := task.NodeIndex >= len(a.Nodes)-1

	// The next approver is resolved before the CAS: if resolution fails the
	// task stays PENDING and nothing has changed.
	var nextApproverID string
	var nextNode flow.FlowNode
	if decision == DecisionApprove && !isLast {
		nextNode = a.Nodes[task.NodeIndex+1]
		nextApproverID, err = s.resolveApprover(ctx, tenantID, nextNode, a.RequesterID)
		if err != nil {
			return err
		}
	}

	taskStatus := TaskApproved
	if decision == DecisionReject {
		taskStatus = TaskRejected
	}

	now := time.Now()
	resolved, err := s.Repo.ResolveTaskCAS(ctx, task.ID, taskStatus, actorID, comment, now)
	if err != nil {
		return err
	}

	action := common_models.AuditActionApproval
	if isAdminOverride {
		action = common_models.AuditActionOverride
	}

	switch {
	case decision == DecisionReject:
		if err := s.Repo.TerminateApproval(ctx, a.ID, ApprovalRejected, now); err != nil {
			if errors.Is(err, ErrApprovalNotActive) {
				s.reopenTask(ctx, task.ID)
			}
			return err
		}
		s.audit(ctx, tenantID, action, a.EntityType, a.ID.Hex(), actorID, map[string]common_models.Change{
			"status": {Old: string(ApprovalPending), New: string(ApprovalRejected)},
		})
		s.notify(ctx, tenantID, a.RequesterID, "Request rejected",
			fmt.Sprintf("%s %s was rejected at %s: %s", a.EntityType, a.EntityID, resolved.NodeName, comment),
			map[string]string{"approval_id": a.ID.Hex()})

	case isLast:
		if err := s.Repo.TerminateApproval(ctx, a.ID, ApprovalApproved, now); err != nil {
			if errors.Is(err, ErrApprovalNotActive) {
				s.reopenTask(ctx, task.ID)
			}
			return err
		}
		s.audit(ctx, tenantID, action, a.EntityType, a.ID.Hex(), actorID, map[string]common_models.Change{
			"status": {Old: string(ApprovalPending), New: string(ApprovalApproved)},
		})
		s.notify(ctx, tenantID, a.RequesterID, "Request approved",
			fmt.Sprintf("%s %s passed all approval steps", a.EntityType, a.EntityID),
			map[string]string{"approval_id": a.ID.Hex()})

	default:
		if err := s.Repo.AdvanceApproval(ctx, a.ID, task.NodeIndex); err != nil {
			if errors.Is(err, ErrApprovalNotActive) {
				s.reopenTask(ctx, task.ID)
			}
			return err
		}
		next := &ApprovalTask{
			ApprovalID: a.ID,
			TenantID:   tenantID,
			NodeIndex:  nextNode.Index,
			NodeName:   nextNode.Name,
			ApproverID: nextApproverID,
			Status:     TaskPending,
			CreatedAt:  now,
			DueAt:      now.Add(time.Duration(nextNode.SLAHours) * time.Hour),
		}
		if err := s.Repo.InsertTask(ctx, next); err != nil {
			return err
		}
		s.audit(ctx, tenantID, action, a.EntityType, a.ID.Hex(), actorID, map[string]common_models.Change{
			"current_node": {Old: strconv.Itoa(task.NodeIndex), New: strconv.Itoa(nextNode.Index)},
		})
		s.notify(ctx, tenantID, nextApproverID, "Approval requested",
			fmt.Sprintf("%s %s is waiting for your approval (%s)", a.EntityType, a.EntityID, nextNode.Name),
			map[string]string{"approval_id": a.ID.Hex(), "task_id": next.ID.Hex()})
	}

	s.Logger.Info("task resolved",
		zap.String("tenant_id", tenantID),
		zap.String("approval_id", a.ID.Hex()),
		zap.String("task_id", task.ID.Hex()),
		zap.String("decision", string(decision)),
		zap.Bool("admin_override", isAdminOverride))

	return nil
}

func (s *ApprovalServiceImpl) CancelApproval(ctx context.Context, tenantID, approvalID, actorID string, isAdmin bool) error {
	a, err := s.Repo.GetApproval(ctx, tenantID, approvalID)
	if err != nil {
		return err
	}
	if actorID != a.RequesterID && !isAdmin {
		return ErrUnauthorized
	}

	cancelled, err := s.Repo.CancelApprovalCAS(ctx, a.ID, time.Now())
	if err != nil {
		return err
	}
	if !cancelled {
		return ErrApprovalNotActive
	}

	s.audit(ctx, tenantID, common_models.AuditActionCancel, a.EntityType, a.ID.Hex(), actorID, map[string]common_models.Change{
		"status": {Old: string(ApprovalPending), New: string(ApprovalCancelled)},
	})

	// The open task is left PENDING; any later decision on it fails the
	// approval-active check. Tell its approver not to bother.
	if pending, err := s.Repo.FindPendingTaskByApproval(ctx, a.ID); err == nil && pending != nil {
		s.notify(ctx, tenantID, pending.ApproverID, "Approval withdrawn",
			fmt.Sprintf("%s %s no longer needs your approval", a.EntityType, a.EntityID),
			map[string]string{"approval_id": a.ID.Hex()})
	}

	return nil
}

func (s *ApprovalServiceImpl) MyPendingTasks(ctx context.Context, tenantID, userID string) ([]ApprovalTask, error) {
	return s.Repo.FindPendingTasksByApprover(ctx, tenantID, userID)
}

func (s *ApprovalServiceImpl) ApprovalsByEntity(ctx context.Context, tenantID, entityType, entityID string) ([]Approval, error) {
	return s.Repo.FindApprovalsByEntity(ctx, tenantID, entityType, entityID)
}

func (s *ApprovalServiceImpl) GetApprovalDetail(ctx context.Context, tenantID, approvalID string) (*ApprovalDetail, error) {
	a, err := s.Repo.GetApproval(ctx, tenantID, approvalID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.Repo.FindTasksByApproval(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	return &ApprovalDetail{Approval: *a, Tasks: tasks}, nil
}

func (s *ApprovalServiceImpl) ExportApprovals(ctx context.Context, tenantID string) (*excelize.File, error) {
	approvals, err := s.Repo.FindTerminalApprovals(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	file := excelize.NewFile()
	sheet := "Approvals"
	file.SetSheetName("Sheet1", sheet)

	headers := []string{"Entity Type", "Entity ID", "Flow", "Status", "Requester", "Opened", "Completed"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		file.SetCellValue(sheet, cell, h)
	}

	for row, a := range approvals {
		completed := ""
		if a.CompletedAt != nil {
			completed = a.CompletedAt.Format(time.RFC3339)
		}
		values := []interface{}{
			a.EntityType, a.EntityID, a.FlowName, string(a.Status),
			a.RequesterID, a.CreatedAt.Format(time.RFC3339), completed,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			file.SetCellValue(sheet, cell, v)
		}
	}

	return file, nil
}

// reopenTask undoes a won task CAS whose run-level update lost to a
// concurrent cancel. The decision never took effect, so the task goes back
// to PENDING.
func (s *ApprovalServiceImpl) reopenTask(ctx context.Context, taskID primitive.ObjectID) {
	if err := s.Repo.ReopenTask(ctx, taskID); err != nil {
		s.Logger.Error("failed to reopen task",
			zap.String("task_id", taskID.Hex()),
			zap.Error(err))
	}
}

func (s *ApprovalServiceImpl) audit(ctx context.Context, tenantID string, action common_models.AuditAction, module, recordID, actorID string, changes map[string]common_models.Change) {
	if err := s.Audit.LogChange(ctx, tenantID, action, module, recordID, actorID, changes); err != nil {
		s.Logger.Error("audit write failed", zap.Error(err), zap.String("record_id", recordID))
	}
}

func (s *ApprovalServiceImpl) notify(ctx context.Context, tenantID, userID, title, body string, metadata map[string]string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, tenantID, userID, title, body, metadata); err != nil {
		s.Logger.Error("notification failed", zap.Error(err), zap.String("user_id", userID))
	}
}
