package settings

import (
	"time"

	"decor-crm/internal/features/risk"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TenantSettings holds per-tenant engine policy. One document per tenant.
type TenantSettings struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID string             `bson:"tenant_id" json:"tenant_id"`

	RiskPolicy risk.Policy `bson:"risk_policy" json:"risk_policy"`

	// EscalationRole holders receive overdue notifications when the
	// requester has no manager configured.
	EscalationRole string `bson:"escalation_role" json:"escalation_role"`

	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// DefaultEscalationRole is used when a tenant never saved settings.
const DefaultEscalationRole = "admin"
