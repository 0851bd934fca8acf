package flow

import (
	"context"
	"strings"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memFlowRepo struct {
	flows map[primitive.ObjectID]*ApprovalFlow

	activeLookups int
}

func newMemFlowRepo() *memFlowRepo {
	return &memFlowRepo{flows: make(map[primitive.ObjectID]*ApprovalFlow)}
}

func (r *memFlowRepo) Create(_ context.Context, f ApprovalFlow) error {
	r.flows[f.ID] = &f
	return nil
}

func (r *memFlowRepo) GetByID(_ context.Context, tenantID, id string) (*ApprovalFlow, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	f, ok := r.flows[oid]
	if !ok || f.TenantID != tenantID {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (r *memFlowRepo) GetActiveByEntityType(_ context.Context, tenantID, entityType string) (*ApprovalFlow, error) {
	r.activeLookups++
	for _, f := range r.flows {
		if f.TenantID == tenantID && f.EntityType == entityType && f.Active {
			cp := *f
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memFlowRepo) List(_ context.Context, tenantID string) ([]ApprovalFlow, error) {
	var out []ApprovalFlow
	for _, f := range r.flows {
		if f.TenantID == tenantID {
			out = append(out, *f)
		}
	}
	return out, nil
}

func (r *memFlowRepo) Update(_ context.Context, tenantID, id string, f ApprovalFlow) error {
	oid, _ := primitive.ObjectIDFromHex(id)
	if current, ok := r.flows[oid]; ok && current.TenantID == tenantID {
		current.Name = f.Name
		current.Active = f.Active
		current.Nodes = f.Nodes
	}
	return nil
}

func (r *memFlowRepo) Delete(_ context.Context, tenantID, id string) error {
	oid, _ := primitive.ObjectIDFromHex(id)
	if current, ok := r.flows[oid]; ok && current.TenantID == tenantID {
		delete(r.flows, oid)
	}
	return nil
}

func (r *memFlowRepo) EnsureIndexes(context.Context) error { return nil }

func validNodes() []FlowNode {
	return []FlowNode{
		{Index: 0, Name: "Manager review", ApproverType: ApproverTypeManager, SLAHours: 24},
		{Index: 1, Name: "Finance review", ApproverType: ApproverTypeRole, ApproverValue: "finance", SLAHours: 48},
	}
}

func TestCreateFlowValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ApprovalFlow)
		wantErr string
	}{
		{
			name:   "valid flow",
			mutate: func(*ApprovalFlow) {},
		},
		{
			name:    "missing entity type",
			mutate:  func(f *ApprovalFlow) { f.EntityType = "" },
			wantErr: "entity type",
		},
		{
			name:    "gap in node indexes",
			mutate:  func(f *ApprovalFlow) { f.Nodes[1].Index = 2 },
			wantErr: "sequential",
		},
		{
			name:    "role node without value",
			mutate:  func(f *ApprovalFlow) { f.Nodes[1].ApproverValue = "" },
			wantErr: "approver value",
		},
		{
			name:    "unknown approver type",
			mutate:  func(f *ApprovalFlow) { f.Nodes[0].ApproverType = "COMMITTEE" },
			wantErr: "unknown approver type",
		},
		{
			name:    "zero SLA",
			mutate:  func(f *ApprovalFlow) { f.Nodes[0].SLAHours = 0 },
			wantErr: "SLA",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewFlowService(newMemFlowRepo())

			f := ApprovalFlow{
				ID:         primitive.NewObjectID(),
				TenantID:   "t1",
				EntityType: "order",
				Name:       "Order approval",
				Active:     true,
				Nodes:      validNodes(),
			}
			tt.mutate(&f)

			err := svc.CreateFlow(context.Background(), f)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("CreateFlow: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCreateFlowSingleActivePerEntityType(t *testing.T) {
	svc := NewFlowService(newMemFlowRepo())
	ctx := context.Background()

	first := ApprovalFlow{ID: primitive.NewObjectID(), TenantID: "t1", EntityType: "order", Name: "A", Active: true, Nodes: validNodes()}
	if err := svc.CreateFlow(ctx, first); err != nil {
		t.Fatalf("first: %v", err)
	}

	second := ApprovalFlow{ID: primitive.NewObjectID(), TenantID: "t1", EntityType: "order", Name: "B", Active: true, Nodes: validNodes()}
	if err := svc.CreateFlow(ctx, second); err == nil {
		t.Fatal("second active flow for same entity type accepted")
	}

	// An inactive draft and another tenant are both fine.
	draft := ApprovalFlow{ID: primitive.NewObjectID(), TenantID: "t1", EntityType: "order", Name: "Draft", Nodes: validNodes()}
	if err := svc.CreateFlow(ctx, draft); err != nil {
		t.Fatalf("draft: %v", err)
	}
	other := ApprovalFlow{ID: primitive.NewObjectID(), TenantID: "t2", EntityType: "order", Name: "Other", Active: true, Nodes: validNodes()}
	if err := svc.CreateFlow(ctx, other); err != nil {
		t.Fatalf("other tenant: %v", err)
	}
}

func TestResolveFlowCaching(t *testing.T) {
	repo := newMemFlowRepo()
	svc := NewFlowService(repo)
	ctx := context.Background()

	f := ApprovalFlow{ID: primitive.NewObjectID(), TenantID: "t1", EntityType: "order", Name: "A", Active: true, Nodes: validNodes()}
	if err := svc.CreateFlow(ctx, f); err != nil {
		t.Fatalf("create: %v", err)
	}
	repo.activeLookups = 0

	for i := 0; i < 3; i++ {
		got, err := svc.ResolveFlow(ctx, "t1", "order")
		if err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
		if got == nil || got.Name != "A" {
			t.Fatalf("resolve %d: got %+v", i, got)
		}
	}
	if repo.activeLookups != 1 {
		t.Errorf("repo hit %d times, want 1 (cached)", repo.activeLookups)
	}

	// The unconfigured miss is cached too.
	repo.activeLookups = 0
	for i := 0; i < 3; i++ {
		got, err := svc.ResolveFlow(ctx, "t1", "quotation")
		if err != nil || got != nil {
			t.Fatalf("resolve miss %d: got %+v err %v", i, got, err)
		}
	}
	if repo.activeLookups != 1 {
		t.Errorf("repo hit %d times for miss, want 1", repo.activeLookups)
	}
}

func TestFlowEditsInvalidateCache(t *testing.T) {
	repo := newMemFlowRepo()
	svc := NewFlowService(repo)
	ctx := context.Background()

	f := ApprovalFlow{ID: primitive.NewObjectID(), TenantID: "t1", EntityType: "order", Name: "A", Active: true, Nodes: validNodes()}
	if err := svc.CreateFlow(ctx, f); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.ResolveFlow(ctx, "t1", "order"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	updated := f
	updated.Name = "B"
	if err := svc.UpdateFlow(ctx, "t1", f.ID.Hex(), updated); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := svc.ResolveFlow(ctx, "t1", "order")
	if err != nil {
		t.Fatalf("resolve after update: %v", err)
	}
	if got == nil || got.Name != "B" {
		t.Errorf("stale cache after update: %+v", got)
	}

	if err := svc.DeleteFlow(ctx, "t1", f.ID.Hex()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = svc.ResolveFlow(ctx, "t1", "order")
	if err != nil {
		t.Fatalf("resolve after delete: %v", err)
	}
	if got != nil {
		t.Errorf("stale cache after delete: %+v", got)
	}
}
