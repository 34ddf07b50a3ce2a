// internal/app/features/auditlog/resolve.go
package auditlog

import (
	"context"

	"github.com/dalemusser/grouphub/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// resolve turns events into views with user and group names filled in.
// Names that cannot be loaded are left blank; deleted users and groups
// still show their id.
func (h *Handler) resolve(ctx context.Context, events []audit.Event) []eventView {
	userIDs := map[primitive.ObjectID]struct{}{}
	groupIDs := map[primitive.ObjectID]struct{}{}
	for _, e := range events {
		if e.ActorID != nil {
			userIDs[*e.ActorID] = struct{}{}
		}
		if e.UserID != nil {
			userIDs[*e.UserID] = struct{}{}
		}
		if e.GroupID != nil {
			groupIDs[*e.GroupID] = struct{}{}
		}
	}

	userNames := map[primitive.ObjectID]string{}
	groupNames := map[primitive.ObjectID]string{}
	var eg errgroup.Group
	eg.Go(func() error {
		users, err := h.Users.GetByIDs(ctx, keys(userIDs))
		if err != nil {
			h.Log.Warn("failed to fetch user names for audit log", zap.Error(err))
			return nil
		}
		for _, u := range users {
			userNames[u.ID] = u.Name
		}
		return nil
	})
	eg.Go(func() error {
		groups, err := h.Groups.ListByIDs(ctx, keys(groupIDs))
		if err != nil {
			h.Log.Warn("failed to fetch group names for audit log", zap.Error(err))
			return nil
		}
		for _, g := range groups {
			groupNames[g.ID] = g.Name
		}
		return nil
	})
	_ = eg.Wait()

	out := make([]eventView, 0, len(events))
	for _, e := range events {
		out = append(out, eventView{
			ID:            e.ID,
			Timestamp:     e.Timestamp,
			Category:      e.Category,
			EventType:     e.EventType,
			Actor:         refTo(e.ActorID, userNames),
			User:          refTo(e.UserID, userNames),
			Group:         refTo(e.GroupID, groupNames),
			IP:            e.IP,
			Success:       e.Success,
			FailureReason: e.FailureReason,
			Details:       e.Details,
		})
	}
	return out
}

func refTo(id *primitive.ObjectID, names map[primitive.ObjectID]string) *ref {
	if id == nil {
		return nil
	}
	return &ref{ID: *id, Name: names[*id]}
}

func keys(m map[primitive.ObjectID]struct{}) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}
