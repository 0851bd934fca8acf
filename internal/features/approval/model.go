package approval

import (
	"time"

	"decor-crm/internal/features/flow"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ApprovalStatus string

const (
	ApprovalPending   ApprovalStatus = "PENDING"
	ApprovalApproved  ApprovalStatus = "APPROVED"
	ApprovalRejected  ApprovalStatus = "REJECTED"
	ApprovalCancelled ApprovalStatus = "CANCELLED"
)

type TaskStatus string

const (
	TaskPending  TaskStatus = "PENDING"
	TaskApproved TaskStatus = "APPROVED"
	TaskRejected TaskStatus = "REJECTED"
)

// Decision is the action an approver takes on a task.
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Approval is one run of a flow against one entity. Nodes is a snapshot of
// the flow's node list taken at open time, so flow edits never touch a run
// already in flight.
type Approval struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID         string             `bson:"tenant_id" json:"tenant_id"`
	EntityType       string             `bson:"entity_type" json:"entity_type"`
	EntityID         string             `bson:"entity_id" json:"entity_id"`
	FlowID           primitive.ObjectID `bson:"flow_id" json:"flow_id"`
	FlowName         string             `bson:"flow_name" json:"flow_name"`
	Nodes            []flow.FlowNode    `bson:"nodes" json:"nodes"`
	CurrentNodeIndex int                `bson:"current_node_index" json:"current_node_index"`
	Status           ApprovalStatus     `bson:"status" json:"status"`
	RequesterID      string             `bson:"requester_id" json:"requester_id"`
	Reasons          []string           `bson:"reasons,omitempty" json:"reasons,omitempty"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updated_at"`
	CompletedAt      *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// ApprovalTask is the unit of work one approver acts on. At most one task per
// approval is ever PENDING; the next task is only created after the current
// one is resolved.
type ApprovalTask struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ApprovalID  primitive.ObjectID `bson:"approval_id" json:"approval_id"`
	TenantID    string             `bson:"tenant_id" json:"tenant_id"`
	NodeIndex   int                `bson:"node_index" json:"node_index"`
	NodeName    string             `bson:"node_name" json:"node_name"`
	ApproverID  string             `bson:"approver_id" json:"approver_id"`
	Status      TaskStatus         `bson:"status" json:"status"`
	Comment     string             `bson:"comment,omitempty" json:"comment,omitempty"`
	ActedBy     string             `bson:"acted_by,omitempty" json:"acted_by,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	DueAt       time.Time          `bson:"due_at" json:"due_at"`
	ActionAt    *time.Time         `bson:"action_at,omitempty" json:"action_at,omitempty"`
	EscalatedAt *time.Time         `bson:"escalated_at,omitempty" json:"escalated_at,omitempty"`
}

// ApprovalDetail is the read model for the detail endpoint.
type ApprovalDetail struct {
	Approval Approval       `json:"approval"`
	Tasks    []ApprovalTask `json:"tasks"`
}
