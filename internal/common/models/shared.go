package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContextKey string

const (
	TenantIDKey ContextKey = "tenant_id"
)

type AuditAction string

const (
	AuditActionCreate     AuditAction = "CREATE"
	AuditActionUpdate     AuditAction = "UPDATE"
	AuditActionDelete     AuditAction = "DELETE"
	AuditActionApproval   AuditAction = "APPROVAL"
	AuditActionOverride   AuditAction = "ADMIN_OVERRIDE"
	AuditActionCancel     AuditAction = "CANCEL"
	AuditActionEscalation AuditAction = "ESCALATION"
	AuditActionSettings   AuditAction = "SETTINGS"
)

type Change struct {
	Old interface{} `bson:"old" json:"old"`
	New interface{} `bson:"new" json:"new"`
}

type AuditLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  string             `bson:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	Action    AuditAction        `bson:"action" json:"action"`
	Module    string             `bson:"module" json:"module"`          // The feature/collection name
	RecordID  string             `bson:"record_id" json:"record_id"`    // The ID of the record being modified
	ActorID   string             `bson:"actor_id" json:"actor_id"`      // User ID who performed the action
	ActorName string             `bson:"-" json:"actor_name,omitempty"` // Populated Name of the actor
	Changes   map[string]Change  `bson:"changes,omitempty" json:"changes,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// User is the tenant-scoped directory entry approver resolution runs against.
// Authentication and profile management live outside this service.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  string             `bson:"tenant_id" json:"tenant_id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Roles     []string           `bson:"roles" json:"roles"`
	ManagerID string             `bson:"manager_id,omitempty" json:"manager_id,omitempty"`
	IsActive  bool               `bson:"is_active" json:"is_active"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
