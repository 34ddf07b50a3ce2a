// Package orgsync keeps the local organization and user rows in step with
// the identity provider. Two paths write them: the webhook path applies
// authoritative snapshots, and the lazy path makes sure a row exists the
// first time a signed-in user reaches an organization page.
package orgsync

import (
	"context"
	"errors"
	"fmt"

	groupstore "github.com/dalemusser/grouphub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/grouphub/internal/app/store/memberships"
	organizationstore "github.com/dalemusser/grouphub/internal/app/store/organizations"
	"github.com/dalemusser/grouphub/internal/app/store/syncfields"
	userstore "github.com/dalemusser/grouphub/internal/app/store/users"
	"github.com/dalemusser/grouphub/internal/app/system/auditlog"
	"github.com/dalemusser/grouphub/internal/app/system/identity"
	"github.com/dalemusser/grouphub/internal/app/system/inputval"
	"github.com/dalemusser/grouphub/internal/app/system/normalize"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type Syncer struct {
	orgs        *organizationstore.Store
	users       *userstore.Store
	groups      *groupstore.Store
	memberships *membershipstore.Store
	provider    identity.Provider
	audit       *auditlog.Logger
	log         *zap.Logger
}

func New(db *mongo.Database, provider identity.Provider, audit *auditlog.Logger, logger *zap.Logger) *Syncer {
	return &Syncer{
		orgs:        organizationstore.New(db),
		users:       userstore.New(db),
		groups:      groupstore.New(db),
		memberships: membershipstore.New(db),
		provider:    provider,
		audit:       audit,
		log:         logger,
	}
}

// EnsureUser returns the local row for externalID, creating it if absent.
// A new row is filled from the provider's profile; if the provider cannot
// be reached the row is still created and the webhook path fills it later.
func (s *Syncer) EnsureUser(ctx context.Context, externalID string) (models.User, error) {
	u, err := s.users.GetByExternalID(ctx, externalID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, userstore.ErrNotFound) {
		return models.User{}, fmt.Errorf("load user: %w", err)
	}

	var f userstore.Fields
	pctx, cancel := timeouts.WithTimeout(ctx, timeouts.Provider(), s.log, "orgsync.GetUser")
	profile, perr := s.provider.GetUser(pctx, externalID)
	cancel()
	if perr != nil {
		s.log.Warn("user profile unavailable, creating bare row",
			zap.String("external_id", externalID), zap.Error(perr))
	} else {
		name, email := profile.FullName(), profile.Email
		f = userstore.Fields{Name: &name, Email: &email}
	}

	u, err = s.users.Upsert(ctx, externalID, s.checkUser(externalID, f), syncfields.FillMissing)
	if err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	s.audit.UserSynced(ctx, u, auditlog.SourceLazy)
	return u, nil
}

type syncedUser struct {
	Email string `json:"email" validate:"omitempty,email,max=254"`
}

// checkUser drops a provider email that does not validate, leaving the
// stored one as it was.
func (s *Syncer) checkUser(externalID string, f userstore.Fields) userstore.Fields {
	if f.Email == nil {
		return f
	}
	if err := inputval.Validate(syncedUser{Email: normalize.Email(*f.Email)}); err != nil {
		s.log.Warn("ignoring invalid email from provider",
			zap.String("external_id", externalID), zap.Error(err))
		f.Email = nil
	}
	return f
}

// EnsureOrganization returns the local row for externalID, creating it if
// absent. slug is the session's view of the org slug, used when the
// provider cannot be reached.
func (s *Syncer) EnsureOrganization(ctx context.Context, externalID, slug string) (models.Organization, error) {
	o, err := s.orgs.GetByExternalID(ctx, externalID)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, organizationstore.ErrNotFound) {
		return models.Organization{}, fmt.Errorf("load organization: %w", err)
	}

	f := organizationstore.Fields{}
	if slug != "" {
		f.Slug = &slug
	}
	pctx, cancel := timeouts.WithTimeout(ctx, timeouts.Provider(), s.log, "orgsync.GetOrganization")
	profile, perr := s.provider.GetOrganization(pctx, externalID)
	cancel()
	if perr != nil {
		s.log.Warn("organization profile unavailable, creating from session",
			zap.String("external_id", externalID), zap.Error(perr))
	} else {
		f = organizationstore.Fields{Name: &profile.Name, Slug: &profile.Slug}
	}

	o, err = s.orgs.Upsert(ctx, externalID, f, syncfields.FillMissing)
	if err != nil {
		return models.Organization{}, fmt.Errorf("create organization: %w", err)
	}
	s.audit.OrgSynced(ctx, o, auditlog.SourceLazy)
	return o, nil
}

// ApplyUser writes an authoritative user snapshot. Repeating it is harmless.
func (s *Syncer) ApplyUser(ctx context.Context, externalID string, f userstore.Fields) (models.User, error) {
	u, err := s.users.Upsert(ctx, externalID, s.checkUser(externalID, f), syncfields.Overwrite)
	if err != nil {
		return models.User{}, fmt.Errorf("apply user: %w", err)
	}
	s.audit.UserSynced(ctx, u, auditlog.SourceWebhook)
	return u, nil
}

// ApplyOrganization writes an authoritative organization snapshot.
func (s *Syncer) ApplyOrganization(ctx context.Context, externalID string, f organizationstore.Fields) (models.Organization, error) {
	o, err := s.orgs.Upsert(ctx, externalID, f, syncfields.Overwrite)
	if err != nil {
		return models.Organization{}, fmt.Errorf("apply organization: %w", err)
	}
	s.audit.OrgSynced(ctx, o, auditlog.SourceWebhook)
	return o, nil
}

// DeleteUser removes a user and every membership they hold. An unknown
// user is not an error; deletes are replayed by the provider.
func (s *Syncer) DeleteUser(ctx context.Context, externalID string) error {
	u, err := s.users.GetByExternalID(ctx, externalID)
	if errors.Is(err, userstore.ErrNotFound) {
		s.log.Debug("delete of unknown user ignored", zap.String("external_id", externalID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	n, err := s.memberships.DeleteByUser(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("delete memberships: %w", err)
	}
	if _, err := s.users.DeleteByExternalID(ctx, externalID); err != nil && !errors.Is(err, userstore.ErrNotFound) {
		return fmt.Errorf("delete user: %w", err)
	}
	s.audit.UserDeleted(ctx, externalID, u.ID, n)
	return nil
}

// DeleteOrganization removes an organization with its groups, memberships
// and posts. An unknown organization is not an error.
func (s *Syncer) DeleteOrganization(ctx context.Context, externalID string) error {
	o, err := s.orgs.GetByExternalID(ctx, externalID)
	if errors.Is(err, organizationstore.ErrNotFound) {
		s.log.Debug("delete of unknown organization ignored", zap.String("external_id", externalID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load organization: %w", err)
	}

	res, err := s.groups.DeleteByOrg(ctx, o.ID)
	if err != nil {
		return fmt.Errorf("delete groups: %w", err)
	}
	if _, err := s.orgs.DeleteByExternalID(ctx, externalID); err != nil && !errors.Is(err, organizationstore.ErrNotFound) {
		return fmt.Errorf("delete organization: %w", err)
	}
	s.audit.OrgDeleted(ctx, o, res.Groups, res.Memberships, res.Posts)
	return nil
}
