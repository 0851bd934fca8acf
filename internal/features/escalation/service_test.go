package escalation

import (
	"context"
	"testing"
	"time"

	common_models "decor-crm/internal/common/models"
	"decor-crm/internal/config"
	"decor-crm/internal/features/approval"
	"decor-crm/internal/features/risk"
	"decor-crm/internal/features/settings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// stubRepo serves the few repository methods the monitor touches; the rest
// are never called from this package.
type stubRepo struct {
	approval.ApprovalRepository

	approvals map[primitive.ObjectID]*approval.Approval
	tasks     []*approval.ApprovalTask
}

func (r *stubRepo) FindOverduePending(_ context.Context, tenantID string, now time.Time) ([]approval.ApprovalTask, error) {
	var out []approval.ApprovalTask
	for _, t := range r.tasks {
		if t.Status == approval.TaskPending && t.DueAt.Before(now) && (tenantID == "" || t.TenantID == tenantID) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *stubRepo) GetApprovalByID(_ context.Context, id primitive.ObjectID) (*approval.Approval, error) {
	a, ok := r.approvals[id]
	if !ok {
		return nil, approval.ErrNotFound
	}
	return a, nil
}

func (r *stubRepo) MarkEscalated(_ context.Context, taskID primitive.ObjectID, at time.Time) error {
	for _, t := range r.tasks {
		if t.ID == taskID {
			escalated := at
			t.EscalatedAt = &escalated
		}
	}
	return nil
}

type stubUsers struct {
	users map[string]*common_models.User // keyed by hex id
}

func (s *stubUsers) Create(context.Context, *common_models.User) error { return nil }
func (s *stubUsers) FindByID(_ context.Context, _, id string) (*common_models.User, error) {
	return s.users[id], nil
}
func (s *stubUsers) FindByIDs(context.Context, []string) ([]common_models.User, error) {
	return nil, nil
}
func (s *stubUsers) FindActiveByRole(_ context.Context, _, role string) ([]common_models.User, error) {
	var out []common_models.User
	for _, u := range s.users {
		if !u.IsActive {
			continue
		}
		for _, r := range u.Roles {
			if r == role {
				out = append(out, *u)
			}
		}
	}
	return out, nil
}
func (s *stubUsers) List(context.Context, string, int64, int64) ([]common_models.User, int64, error) {
	return nil, 0, nil
}
func (s *stubUsers) EnsureIndexes(context.Context) error { return nil }

type stubSettings struct {
	role string
}

func (s *stubSettings) GetSettings(context.Context, string) (*settings.TenantSettings, error) {
	return nil, nil
}
func (s *stubSettings) UpdateSettings(context.Context, string, string, settings.TenantSettings) error {
	return nil
}
func (s *stubSettings) GetRiskPolicy(context.Context, string) (risk.Policy, error) {
	return risk.Policy{}, nil
}
func (s *stubSettings) GetEscalationRole(context.Context, string) (string, error) {
	return s.role, nil
}

type stubAudit struct {
	actions []common_models.AuditAction
}

func (s *stubAudit) LogChange(_ context.Context, _ string, action common_models.AuditAction, _, _, _ string, _ map[string]common_models.Change) error {
	s.actions = append(s.actions, action)
	return nil
}
func (s *stubAudit) ListLogs(context.Context, string, map[string]interface{}, int64, int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

type notified struct {
	UserID string
	Title  string
}

type stubNotifier struct {
	sent []notified
}

func (n *stubNotifier) Notify(_ context.Context, _, userID, title, _ string, _ map[string]string) error {
	n.sent = append(n.sent, notified{UserID: userID, Title: title})
	return nil
}

const testTenant = "tenant-curtains"

type monitorFixture struct {
	repo     *stubRepo
	notifier *stubNotifier
	audit    *stubAudit
	svc      *EscalationServiceImpl

	requester primitive.ObjectID
	manager   primitive.ObjectID
	approver  primitive.ObjectID
	admin     primitive.ObjectID
}

func newMonitorFixture(t *testing.T, withManager bool) *monitorFixture {
	t.Helper()

	fx := &monitorFixture{
		repo:      &stubRepo{approvals: map[primitive.ObjectID]*approval.Approval{}},
		notifier:  &stubNotifier{},
		audit:     &stubAudit{},
		requester: primitive.NewObjectID(),
		manager:   primitive.NewObjectID(),
		approver:  primitive.NewObjectID(),
		admin:     primitive.NewObjectID(),
	}

	requester := &common_models.User{ID: fx.requester, TenantID: testTenant, IsActive: true}
	if withManager {
		requester.ManagerID = fx.manager.Hex()
	}
	users := &stubUsers{users: map[string]*common_models.User{
		fx.requester.Hex(): requester,
		fx.manager.Hex():   {ID: fx.manager, TenantID: testTenant, IsActive: true},
		fx.approver.Hex():  {ID: fx.approver, TenantID: testTenant, IsActive: true},
		fx.admin.Hex():     {ID: fx.admin, TenantID: testTenant, Roles: []string{"admin"}, IsActive: true},
	}}

	cfg := &config.Config{
		EscalationSchedule:    "@every 2h",
		EscalationRemindAfter: 24 * time.Hour,
	}
	fx.svc = NewEscalationService(fx.repo, users, &stubSettings{role: "admin"}, fx.audit, fx.notifier, zap.NewNop(), cfg).(*EscalationServiceImpl)
	return fx
}

func (fx *monitorFixture) addRun(t *testing.T, status approval.ApprovalStatus, dueAgo time.Duration) *approval.ApprovalTask {
	t.Helper()

	a := &approval.Approval{
		ID:          primitive.NewObjectID(),
		TenantID:    testTenant,
		EntityType:  "order",
		EntityID:    "ORD-" + primitive.NewObjectID().Hex()[:6],
		Status:      status,
		RequesterID: fx.requester.Hex(),
	}
	fx.repo.approvals[a.ID] = a

	task := &approval.ApprovalTask{
		ID:         primitive.NewObjectID(),
		ApprovalID: a.ID,
		TenantID:   testTenant,
		NodeName:   "Manager review",
		ApproverID: fx.approver.Hex(),
		Status:     approval.TaskPending,
		CreatedAt:  time.Now().Add(-dueAgo - time.Hour),
		DueAt:      time.Now().Add(-dueAgo),
	}
	fx.repo.tasks = append(fx.repo.tasks, task)
	return task
}

func TestProcessOverdueEscalates(t *testing.T) {
	fx := newMonitorFixture(t, true)
	task := fx.addRun(t, approval.ApprovalPending, 3*time.Hour)

	count, err := fx.svc.ProcessOverdue(context.Background())
	if err != nil {
		t.Fatalf("ProcessOverdue: %v", err)
	}
	if count != 1 {
		t.Fatalf("escalated %d, want 1", count)
	}

	if task.EscalatedAt == nil {
		t.Error("escalated_at not persisted")
	}
	if task.Status != approval.TaskPending {
		t.Errorf("task status = %s; escalation must never resolve a task", task.Status)
	}

	// Approver is reminded and the requester's manager is pulled in.
	gotApprover, gotManager := false, false
	for _, n := range fx.notifier.sent {
		if n.UserID == fx.approver.Hex() && n.Title == "Approval overdue" {
			gotApprover = true
		}
		if n.UserID == fx.manager.Hex() && n.Title == "Approval stuck" {
			gotManager = true
		}
	}
	if !gotApprover || !gotManager {
		t.Errorf("notifications = %+v, want approver reminder and manager escalation", fx.notifier.sent)
	}

	if len(fx.audit.actions) != 1 || fx.audit.actions[0] != common_models.AuditActionEscalation {
		t.Errorf("audit actions = %v, want one ESCALATION", fx.audit.actions)
	}
}

func TestProcessOverdueSkipsFreshTasks(t *testing.T) {
	fx := newMonitorFixture(t, true)
	fx.addRun(t, approval.ApprovalPending, -2*time.Hour) // due in the future

	count, err := fx.svc.ProcessOverdue(context.Background())
	if err != nil {
		t.Fatalf("ProcessOverdue: %v", err)
	}
	if count != 0 || len(fx.notifier.sent) != 0 {
		t.Errorf("count=%d sent=%d, want nothing for a task inside its SLA", count, len(fx.notifier.sent))
	}
}

func TestProcessOverdueSkipsDeadRuns(t *testing.T) {
	fx := newMonitorFixture(t, true)
	fx.addRun(t, approval.ApprovalCancelled, 3*time.Hour)

	count, err := fx.svc.ProcessOverdue(context.Background())
	if err != nil {
		t.Fatalf("ProcessOverdue: %v", err)
	}
	if count != 0 || len(fx.notifier.sent) != 0 {
		t.Errorf("count=%d sent=%d, want cancelled runs ignored", count, len(fx.notifier.sent))
	}
}

func TestProcessOverdueRemindWindow(t *testing.T) {
	fx := newMonitorFixture(t, true)
	task := fx.addRun(t, approval.ApprovalPending, 30*time.Hour)

	// Escalated an hour ago: inside the 24h remind window, stays quiet.
	recent := time.Now().Add(-time.Hour)
	task.EscalatedAt = &recent

	count, _ := fx.svc.ProcessOverdue(context.Background())
	if count != 0 {
		t.Fatalf("count=%d, want 0 inside the remind window", count)
	}

	// A day and a half later the reminder fires again.
	stale := time.Now().Add(-36 * time.Hour)
	task.EscalatedAt = &stale

	count, _ = fx.svc.ProcessOverdue(context.Background())
	if count != 1 {
		t.Fatalf("count=%d, want 1 after the remind window passed", count)
	}
	if !task.EscalatedAt.After(stale) {
		t.Error("escalated_at not refreshed on renotify")
	}
}

func TestEscalationContactFallsBackToRole(t *testing.T) {
	fx := newMonitorFixture(t, false) // requester has no manager
	fx.addRun(t, approval.ApprovalPending, 3*time.Hour)

	if _, err := fx.svc.ProcessOverdue(context.Background()); err != nil {
		t.Fatalf("ProcessOverdue: %v", err)
	}

	gotAdmin := false
	for _, n := range fx.notifier.sent {
		if n.UserID == fx.admin.Hex() && n.Title == "Approval stuck" {
			gotAdmin = true
		}
		if n.UserID == fx.manager.Hex() {
			t.Error("manager notified despite not managing the requester")
		}
	}
	if !gotAdmin {
		t.Errorf("notifications = %+v, want escalation-role holder pulled in", fx.notifier.sent)
	}
}

func TestListOverdueFiltersDeadRuns(t *testing.T) {
	fx := newMonitorFixture(t, true)
	live := fx.addRun(t, approval.ApprovalPending, 2*time.Hour)
	fx.addRun(t, approval.ApprovalCancelled, 2*time.Hour)

	tasks, err := fx.svc.ListOverdue(context.Background(), testTenant)
	if err != nil {
		t.Fatalf("ListOverdue: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != live.ID {
		t.Errorf("got %d tasks, want only the live one", len(tasks))
	}
}
