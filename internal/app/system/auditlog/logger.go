// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/grouphub/internal/app/store/audit"
	"github.com/dalemusser/grouphub/internal/app/system/clientip"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Destinations for a category of audit events.
const (
	ModeAll = "all" // MongoDB and zap
	ModeDB  = "db"
	ModeLog = "log"
	ModeOff = "off"
)

// Config selects where each category is written.
// Security events follow the Admin setting.
type Config struct {
	Admin string
	Sync  string
	// Proxies whose forwarding headers name the client's address.
	Proxies clientip.Trusted
}

// Logger writes audit events to the audit store and to zap.
// A nil *Logger is valid and discards everything.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{store: store, zapLog: zapLog, config: config}
}

// Actor identifies who performed an admin action.
type Actor struct {
	UserID  primitive.ObjectID
	OrgID   primitive.ObjectID
	OrgRole string
}

func (l *Logger) clientIP(r *http.Request) string {
	if l == nil || r == nil {
		return ""
	}
	return l.config.Proxies.From(r)
}

func userAgent(r *http.Request) string {
	if r == nil {
		return ""
	}
	return r.UserAgent()
}

func (l *Logger) mode(category string) string {
	var m string
	switch category {
	case audit.CategorySync:
		m = l.config.Sync
	default:
		m = l.config.Admin
	}
	if m == "" {
		return ModeAll
	}
	return m
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	for name, id := range map[string]*primitive.ObjectID{
		"user_id":         event.UserID,
		"actor_id":        event.ActorID,
		"organization_id": event.OrganizationID,
		"group_id":        event.GroupID,
	} {
		if id != nil {
			fields = append(fields, zap.String(name, id.Hex()))
		}
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log writes event according to its category's mode. Storage failures are
// logged and swallowed; auditing never fails the request.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}
	m := l.mode(event.Category)
	if m == ModeOff {
		return
	}
	if m == ModeAll || m == ModeLog {
		l.logToZap(event)
	}
	if (m == ModeAll || m == ModeDB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func (l *Logger) admin(ctx context.Context, r *http.Request, a Actor, eventType string, groupID, userID *primitive.ObjectID, details map[string]string) {
	if details == nil {
		details = map[string]string{}
	}
	if a.OrgRole != "" {
		details["actor_org_role"] = a.OrgRole
	}
	l.Log(ctx, audit.Event{
		Category:       audit.CategoryAdmin,
		EventType:      eventType,
		ActorID:        oidPtr(a.UserID),
		OrganizationID: oidPtr(a.OrgID),
		GroupID:        groupID,
		UserID:         userID,
		IP:             l.clientIP(r),
		UserAgent:      userAgent(r),
		Success:        true,
		Details:        details,
	})
}

func oidPtr(id primitive.ObjectID) *primitive.ObjectID {
	if id.IsZero() {
		return nil
	}
	return &id
}

// --- Admin events ---

func (l *Logger) GroupCreated(ctx context.Context, r *http.Request, a Actor, g models.Group) {
	l.admin(ctx, r, a, audit.EventGroupCreated, &g.ID, nil, map[string]string{
		"group_name": g.Name,
		"group_slug": g.Slug,
	})
}

// GroupUpdated records a settings change; fields lists what changed.
func (l *Logger) GroupUpdated(ctx context.Context, r *http.Request, a Actor, g models.Group, fields []string) {
	l.admin(ctx, r, a, audit.EventGroupUpdated, &g.ID, nil, map[string]string{
		"group_slug":     g.Slug,
		"fields_changed": strings.Join(fields, ","),
	})
}

func (l *Logger) GroupDeleted(ctx context.Context, r *http.Request, a Actor, g models.Group, memberships, posts int64) {
	l.admin(ctx, r, a, audit.EventGroupDeleted, &g.ID, nil, map[string]string{
		"group_name":          g.Name,
		"memberships_removed": strconv.FormatInt(memberships, 10),
		"posts_removed":       strconv.FormatInt(posts, 10),
	})
}

func (l *Logger) MemberAdded(ctx context.Context, r *http.Request, a Actor, groupID, userID primitive.ObjectID, role string) {
	l.admin(ctx, r, a, audit.EventMemberAdded, &groupID, &userID, map[string]string{"member_role": role})
}

func (l *Logger) MemberRemoved(ctx context.Context, r *http.Request, a Actor, groupID, userID primitive.ObjectID) {
	l.admin(ctx, r, a, audit.EventMemberRemoved, &groupID, &userID, nil)
}

func (l *Logger) MemberRoleChanged(ctx context.Context, r *http.Request, a Actor, groupID, userID primitive.ObjectID, from, to string) {
	l.admin(ctx, r, a, audit.EventMemberRoleChanged, &groupID, &userID, map[string]string{
		"old_role": from,
		"new_role": to,
	})
}

func (l *Logger) MemberLeft(ctx context.Context, r *http.Request, a Actor, groupID primitive.ObjectID) {
	l.admin(ctx, r, a, audit.EventMemberLeftGroup, &groupID, oidPtr(a.UserID), nil)
}

func (l *Logger) PostDeleted(ctx context.Context, r *http.Request, a Actor, p models.Post) {
	l.admin(ctx, r, a, audit.EventPostDeleted, &p.GroupID, oidPtr(p.AuthorID), map[string]string{
		"post_id": p.ID.Hex(),
		"title":   p.Title,
	})
}

// --- Sync events ---

// Sources of a sync event.
const (
	SourceWebhook = "webhook"
	SourceLazy    = "lazy"
)

func (l *Logger) UserSynced(ctx context.Context, u models.User, source string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategorySync,
		EventType: audit.EventUserSynced,
		UserID:    oidPtr(u.ID),
		Success:   true,
		Details:   map[string]string{"external_id": u.ExternalID, "source": source},
	})
}

func (l *Logger) UserDeleted(ctx context.Context, externalID string, userID primitive.ObjectID, memberships int64) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategorySync,
		EventType: audit.EventUserDeleted,
		UserID:    oidPtr(userID),
		Success:   true,
		Details: map[string]string{
			"external_id":         externalID,
			"memberships_removed": strconv.FormatInt(memberships, 10),
		},
	})
}

func (l *Logger) OrgSynced(ctx context.Context, o models.Organization, source string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategorySync,
		EventType:      audit.EventOrgSynced,
		OrganizationID: oidPtr(o.ID),
		Success:        true,
		Details:        map[string]string{"external_id": o.ExternalID, "slug": o.Slug, "source": source},
	})
}

func (l *Logger) OrgDeleted(ctx context.Context, o models.Organization, groups, memberships, posts int64) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategorySync,
		EventType:      audit.EventOrgDeleted,
		OrganizationID: oidPtr(o.ID),
		Success:        true,
		Details: map[string]string{
			"external_id":         o.ExternalID,
			"groups_removed":      strconv.FormatInt(groups, 10),
			"memberships_removed": strconv.FormatInt(memberships, 10),
			"posts_removed":       strconv.FormatInt(posts, 10),
		},
	})
}

// --- Security events ---

func (l *Logger) WebhookRejected(ctx context.Context, r *http.Request, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategorySecurity,
		EventType:     audit.EventWebhookRejected,
		IP:            l.clientIP(r),
		UserAgent:     userAgent(r),
		Success:       false,
		FailureReason: reason,
	})
}

func (l *Logger) AccessDenied(ctx context.Context, r *http.Request, a Actor, groupID *primitive.ObjectID, reason string) {
	l.Log(ctx, audit.Event{
		Category:       audit.CategorySecurity,
		EventType:      audit.EventAccessDenied,
		ActorID:        oidPtr(a.UserID),
		OrganizationID: oidPtr(a.OrgID),
		GroupID:        groupID,
		IP:             l.clientIP(r),
		UserAgent:      userAgent(r),
		Success:        false,
		FailureReason:  reason,
		Details:        map[string]string{"path": r.URL.Path},
	})
}
