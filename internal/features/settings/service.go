package settings

import (
	"context"

	common_models "decor-crm/internal/common/models"
	"decor-crm/internal/features/audit"
	"decor-crm/internal/features/risk"
)

type SettingsService interface {
	GetSettings(ctx context.Context, tenantID string) (*TenantSettings, error)
	UpdateSettings(ctx context.Context, tenantID, actorID string, settings TenantSettings) error

	// GetRiskPolicy returns the zero Policy for an unconfigured tenant: no
	// hard blocks and no discount floor, though negative margins still
	// require approval.
	GetRiskPolicy(ctx context.Context, tenantID string) (risk.Policy, error)
	GetEscalationRole(ctx context.Context, tenantID string) (string, error)
}

type SettingsServiceImpl struct {
	Repo         SettingsRepository
	AuditService audit.AuditService
}

func NewSettingsService(repo SettingsRepository, auditService audit.AuditService) SettingsService {
	return &SettingsServiceImpl{
		Repo:         repo,
		AuditService: auditService,
	}
}

func (s *SettingsServiceImpl) GetSettings(ctx context.Context, tenantID string) (*TenantSettings, error) {
	settings, err := s.Repo.GetByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = &TenantSettings{
			TenantID:       tenantID,
			EscalationRole: DefaultEscalationRole,
		}
	}
	return settings, nil
}

func (s *SettingsServiceImpl) UpdateSettings(ctx context.Context, tenantID, actorID string, settings TenantSettings) error {
	old, err := s.Repo.GetByTenant(ctx, tenantID)
	if err != nil {
		return err
	}

	settings.TenantID = tenantID
	if settings.EscalationRole == "" {
		settings.EscalationRole = DefaultEscalationRole
	}

	if err := s.Repo.Upsert(ctx, &settings); err != nil {
		return err
	}

	_ = s.AuditService.LogChange(ctx, tenantID, common_models.AuditActionSettings, "settings", tenantID, actorID,
		map[string]common_models.Change{
			"settings": {Old: old, New: settings},
		})
	return nil
}

func (s *SettingsServiceImpl) GetRiskPolicy(ctx context.Context, tenantID string) (risk.Policy, error) {
	settings, err := s.Repo.GetByTenant(ctx, tenantID)
	if err != nil {
		return risk.Policy{}, err
	}
	if settings == nil {
		return risk.Policy{}, nil
	}
	return settings.RiskPolicy, nil
}

func (s *SettingsServiceImpl) GetEscalationRole(ctx context.Context, tenantID string) (string, error) {
	settings, err := s.Repo.GetByTenant(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if settings == nil || settings.EscalationRole == "" {
		return DefaultEscalationRole, nil
	}
	return settings.EscalationRole, nil
}
