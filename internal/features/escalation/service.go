package escalation

import (
	"context"
	"fmt"
	"time"

	common_models "decor-crm/internal/common/models"
	"decor-crm/internal/config"
	"decor-crm/internal/features/approval"
	"decor-crm/internal/features/audit"
	"decor-crm/internal/features/settings"
	"decor-crm/internal/features/user"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// EscalationService sweeps for tasks past their SLA and raises the alarm. It
// never decides for anyone: overdue tasks stay PENDING until a human acts or
// an admin overrides.
type EscalationService interface {
	// ProcessOverdue runs one sweep across all tenants and returns the number
	// of tasks escalated or re-reminded.
	ProcessOverdue(ctx context.Context) (int, error)

	// ListOverdue returns currently overdue pending tasks for one tenant.
	ListOverdue(ctx context.Context, tenantID string) ([]approval.ApprovalTask, error)

	StartScheduler() error
	StopScheduler()
}

type EscalationServiceImpl struct {
	Repo        approval.ApprovalRepository
	Users       user.UserRepository
	Settings    settings.SettingsService
	Audit       audit.AuditService
	Notifier    approval.Notifier
	Logger      *zap.Logger
	Schedule    string
	RemindAfter time.Duration

	scheduler *cron.Cron
}

func NewEscalationService(repo approval.ApprovalRepository, users user.UserRepository, settingsService settings.SettingsService, auditService audit.AuditService, notifier approval.Notifier, logger *zap.Logger, cfg *config.Config) EscalationService {
	return &EscalationServiceImpl{
		Repo:        repo,
		Users:       users,
		Settings:    settingsService,
		Audit:       auditService,
		Notifier:    notifier,
		Logger:      logger,
		Schedule:    cfg.EscalationSchedule,
		RemindAfter: cfg.EscalationRemindAfter,
	}
}

func (s *EscalationServiceImpl) StartScheduler() error {
	s.scheduler = cron.New()
	_, err := s.scheduler.AddFunc(s.Schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if count, err := s.ProcessOverdue(ctx); err != nil {
			s.Logger.Error("overdue sweep failed", zap.Error(err))
		} else if count > 0 {
			s.Logger.Info("overdue sweep finished", zap.Int("escalated", count))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule overdue sweep: %w", err)
	}
	s.scheduler.Start()
	return nil
}

func (s *EscalationServiceImpl) StopScheduler() {
	if s.scheduler != nil {
		ctx := s.scheduler.Stop()
		<-ctx.Done()
	}
}

func (s *EscalationServiceImpl) ProcessOverdue(ctx context.Context) (int, error) {
	now := time.Now()
	tasks, err := s.Repo.FindOverduePending(ctx, "", now)
	if err != nil {
		return 0, err
	}

	escalated := 0
	for i := range tasks {
		task := &tasks[i]

		a, err := s.Repo.GetApprovalByID(ctx, task.ApprovalID)
		if err != nil {
			s.Logger.Error("overdue task has no approval", zap.Error(err), zap.String("task_id", task.ID.Hex()))
			continue
		}
		// A cancelled or terminated run can leave its task PENDING; those are
		// dead and not worth anyone's attention.
		if a.Status != approval.ApprovalPending {
			continue
		}

		// Already escalated recently: hold off until the remind window passes.
		if task.EscalatedAt != nil && now.Sub(*task.EscalatedAt) < s.RemindAfter {
			continue
		}

		s.escalate(ctx, task, a, now)
		escalated++
	}
	return escalated, nil
}

func (s *EscalationServiceImpl) escalate(ctx context.Context, task *approval.ApprovalTask, a *approval.Approval, now time.Time) {
	overdueFor := now.Sub(task.DueAt).Round(time.Minute)

	s.notify(ctx, task.TenantID, task.ApproverID, "Approval overdue",
		fmt.Sprintf("%s %s has been waiting on %q for %s past its deadline", a.EntityType, a.EntityID, task.NodeName, overdueFor))

	for _, contactID := range s.escalationContacts(ctx, task.TenantID, a.RequesterID, task.ApproverID) {
		s.notify(ctx, task.TenantID, contactID, "Approval stuck",
			fmt.Sprintf("%s %s is overdue at step %q (approver has not acted for %s)", a.EntityType, a.EntityID, task.NodeName, overdueFor))
	}

	if err := s.Repo.MarkEscalated(ctx, task.ID, now); err != nil {
		s.Logger.Error("failed to mark task escalated", zap.Error(err), zap.String("task_id", task.ID.Hex()))
	}

	if err := s.Audit.LogChange(ctx, task.TenantID, common_models.AuditActionEscalation, a.EntityType, a.ID.Hex(), "", map[string]common_models.Change{
		"escalated_node": {New: task.NodeName},
	}); err != nil {
		s.Logger.Error("audit write failed", zap.Error(err), zap.String("approval_id", a.ID.Hex()))
	}

	s.Logger.Warn("approval task escalated",
		zap.String("tenant_id", task.TenantID),
		zap.String("approval_id", a.ID.Hex()),
		zap.String("task_id", task.ID.Hex()),
		zap.Duration("overdue_for", overdueFor))
}

// escalationContacts picks who gets told beyond the tardy approver: the
// requester's manager when one exists, otherwise the active holders of the
// tenant's escalation role. The approver is never their own escalation
// contact.
func (s *EscalationServiceImpl) escalationContacts(ctx context.Context, tenantID, requesterID, approverID string) []string {
	if requester, err := s.Users.FindByID(ctx, tenantID, requesterID); err == nil && requester != nil && requester.ManagerID != "" {
		if manager, err := s.Users.FindByID(ctx, tenantID, requester.ManagerID); err == nil && manager != nil && manager.IsActive && requester.ManagerID != approverID {
			return []string{requester.ManagerID}
		}
	}

	role, err := s.Settings.GetEscalationRole(ctx, tenantID)
	if err != nil {
		s.Logger.Error("failed to load escalation role", zap.Error(err), zap.String("tenant_id", tenantID))
		return nil
	}
	holders, err := s.Users.FindActiveByRole(ctx, tenantID, role)
	if err != nil {
		s.Logger.Error("failed to resolve escalation role holders", zap.Error(err), zap.String("tenant_id", tenantID))
		return nil
	}

	var out []string
	for _, h := range holders {
		if id := h.ID.Hex(); id != approverID {
			out = append(out, id)
		}
	}
	return out
}

func (s *EscalationServiceImpl) ListOverdue(ctx context.Context, tenantID string) ([]approval.ApprovalTask, error) {
	tasks, err := s.Repo.FindOverduePending(ctx, tenantID, time.Now())
	if err != nil {
		return nil, err
	}

	// Filter out tasks orphaned by a cancelled run.
	live := tasks[:0]
	for i := range tasks {
		a, err := s.Repo.GetApprovalByID(ctx, tasks[i].ApprovalID)
		if err != nil || a.Status != approval.ApprovalPending {
			continue
		}
		live = append(live, tasks[i])
	}
	return live, nil
}

func (s *EscalationServiceImpl) notify(ctx context.Context, tenantID, userID, title, body string) {
	if s.Notifier == nil || userID == "" {
		return
	}
	if err := s.Notifier.Notify(ctx, tenantID, userID, title, body, nil); err != nil {
		s.Logger.Error("escalation notification failed", zap.Error(err), zap.String("user_id", userID))
	}
}
