package flow

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ApproverType selects how a node's approver is resolved. Resolution runs at
// task-creation time against current tenant data, never at flow-edit time.
type ApproverType string

const (
	ApproverTypeUser    ApproverType = "USER"    // fixed user id
	ApproverTypeRole    ApproverType = "ROLE"    // role code
	ApproverTypeManager ApproverType = "MANAGER" // requester's manager
)

// FlowNode is one step in a flow. Index defines the linear sequence and is
// unique within its flow.
type FlowNode struct {
	Index         int          `bson:"index" json:"index"`
	Name          string       `bson:"name" json:"name"`
	ApproverType  ApproverType `bson:"approver_type" json:"approver_type"`
	ApproverValue string       `bson:"approver_value,omitempty" json:"approver_value,omitempty"`
	SLAHours      int          `bson:"sla_hours" json:"sla_hours"`
}

// ApprovalFlow is a named, tenant-scoped, ordered node list for one entity
// type. Running approvals snapshot the node list at open time, so editing a
// flow never changes an in-flight approval.
type ApprovalFlow struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID   string             `bson:"tenant_id" json:"tenant_id"`
	EntityType string             `bson:"entity_type" json:"entity_type"`
	Name       string             `bson:"name" json:"name"`
	Active     bool               `bson:"active" json:"active"`
	Nodes      []FlowNode         `bson:"nodes" json:"nodes"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}
