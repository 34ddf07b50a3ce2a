// internal/app/features/webhooks/handler.go
package webhooks

import (
	"context"

	organizationstore "github.com/dalemusser/grouphub/internal/app/store/organizations"
	userstore "github.com/dalemusser/grouphub/internal/app/store/users"
	"github.com/dalemusser/grouphub/internal/app/system/auditlog"
	"github.com/dalemusser/grouphub/internal/app/system/metrics"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"go.uber.org/zap"
)

// maxBodyBytes caps a webhook payload.
const maxBodyBytes = 1 << 20

// Syncer applies provider events to local rows.
type Syncer interface {
	ApplyUser(ctx context.Context, externalID string, f userstore.Fields) (models.User, error)
	ApplyOrganization(ctx context.Context, externalID string, f organizationstore.Fields) (models.Organization, error)
	DeleteUser(ctx context.Context, externalID string) error
	DeleteOrganization(ctx context.Context, externalID string) error
}

// Handler receives identity-provider webhooks.
type Handler struct {
	Secret  string
	Sync    Syncer
	Audit   *auditlog.Logger
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

func NewHandler(secret string, sync Syncer, audit *auditlog.Logger, m *metrics.Metrics, logger *zap.Logger) *Handler {
	return &Handler{
		Secret:  secret,
		Sync:    sync,
		Audit:   audit,
		Metrics: m,
		Log:     logger,
	}
}
