package approval

import "errors"

// Engine failures callers are expected to branch on. Controllers map these to
// HTTP statuses; everything else surfaces as a 500.
var (
	ErrNoFlowConfigured    = errors.New("no active approval flow configured for this entity type")
	ErrMisconfiguredFlow   = errors.New("approval flow is misconfigured")
	ErrDuplicatePending    = errors.New("an approval is already awaiting action for this entity")
	ErrApprovalNotActive   = errors.New("approval is no longer active")
	ErrTaskAlreadyResolved = errors.New("this item was already processed")
	ErrUnauthorized        = errors.New("not authorized to act on this item")
	ErrNotFound            = errors.New("approval record not found")
)
