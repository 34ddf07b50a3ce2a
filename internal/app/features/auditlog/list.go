// internal/app/features/auditlog/list.go
package auditlog

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/grouphub/internal/app/store/audit"
	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/paging"
	"github.com/dalemusser/grouphub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"
)

const dateLayout = "2006-01-02"

var categories = map[string]bool{
	audit.CategoryAdmin:    true,
	audit.CategorySync:     true,
	audit.CategorySecurity: true,
}

// ref names a user or group referenced by an event.
type ref struct {
	ID   primitive.ObjectID `json:"id"`
	Name string             `json:"name"`
}

type eventView struct {
	ID            primitive.ObjectID `json:"id"`
	Timestamp     time.Time          `json:"timestamp"`
	Category      string             `json:"category"`
	EventType     string             `json:"event_type"`
	Actor         *ref               `json:"actor,omitempty"`
	User          *ref               `json:"user,omitempty"`
	Group         *ref               `json:"group,omitempty"`
	IP            string             `json:"ip,omitempty"`
	Success       bool               `json:"success"`
	FailureReason string             `json:"failure_reason,omitempty"`
	Details       map[string]string  `json:"details,omitempty"`
}

type listView struct {
	Events []eventView    `json:"events"`
	Page   paging.Window `json:"page"`
}

// ServeList pages through the organization's audit events, newest first.
// Filters: category, event_type, group_id, start_date and end_date
// (YYYY-MM-DD, end inclusive).
// GET /org/{slug}/audit
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	sc, ok := h.scope(w, r)
	if !ok {
		return
	}
	if err := sc.RequireOrgAdmin(); err != nil {
		h.ErrLog.Fail(w, r, "audit log denied", err)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		h.ErrLog.LogBadRequest(w, r, "bad audit filter", err, err.Error())
		return
	}
	orgID := sc.Org.ID
	filter.OrganizationID = &orgID

	page := paging.Parse(r)
	filter.Limit = page.Limit()
	filter.Offset = page.Offset()

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "audit log list")
	defer cancel()

	var (
		events []audit.Event
		total  int64
	)
	eg, ectx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		events, err = h.Events.Query(ectx, filter)
		return err
	})
	eg.Go(func() error {
		var err error
		total, err = h.Events.CountByFilter(ectx, filter)
		return err
	})
	if err := eg.Wait(); err != nil {
		h.ErrLog.Fail(w, r, "query audit events failed", err)
		return
	}

	vm := listView{
		Events: h.resolve(ctx, events),
		Page:   paging.Compute(page, total, len(events)),
	}
	apperr.WriteJSON(w, http.StatusOK, vm)
}

func parseFilter(r *http.Request) (audit.QueryFilter, error) {
	q := r.URL.Query()
	f := audit.QueryFilter{
		Category:  strings.TrimSpace(q.Get("category")),
		EventType: strings.TrimSpace(q.Get("event_type")),
	}
	if f.Category != "" && !categories[f.Category] {
		return f, fmt.Errorf("unknown category %q", f.Category)
	}
	if s := strings.TrimSpace(q.Get("group_id")); s != "" {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return f, fmt.Errorf("invalid group_id %q", s)
		}
		f.GroupID = &id
	}
	if s := strings.TrimSpace(q.Get("start_date")); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return f, fmt.Errorf("invalid start_date %q, want YYYY-MM-DD", s)
		}
		f.StartTime = &t
	}
	if s := strings.TrimSpace(q.Get("end_date")); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return f, fmt.Errorf("invalid end_date %q, want YYYY-MM-DD", s)
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		f.EndTime = &end
	}
	return f, nil
}
