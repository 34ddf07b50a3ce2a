package home

import (
	"net/http"

	"github.com/dalemusser/grouphub/internal/app/system/apperr"
	"github.com/dalemusser/grouphub/internal/app/system/auth"
	"github.com/dalemusser/grouphub/internal/app/system/flash"
	"go.uber.org/zap"
)

// Handler holds dependencies needed to serve the landing endpoints.
type Handler struct {
	Flash *flash.Store
	Log   *zap.Logger
}

func NewHandler(fl *flash.Store, logger *zap.Logger) *Handler {
	return &Handler{
		Flash: fl,
		Log:   logger,
	}
}

type rootView struct {
	SignedIn bool            `json:"signed_in"`
	OrgSlug  string          `json:"org_slug,omitempty"`
	IsAdmin  bool            `json:"is_admin"`
	Flashes  []flash.Message `json:"flashes"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET / – landing                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	s := auth.FromRequest(r)
	vm := rootView{
		SignedIn: s.SignedIn(),
		IsAdmin:  s.IsAdmin,
		Flashes:  []flash.Message{},
	}
	if s.HasActiveOrg() {
		vm.OrgSlug = s.OrgSlug
	}
	if h.Flash != nil {
		if msgs := h.Flash.Pop(w, r); len(msgs) > 0 {
			vm.Flashes = msgs
		}
	}
	apperr.WriteJSON(w, http.StatusOK, vm)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /org – jump to the active organization                                  |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeOrgRedirect(w http.ResponseWriter, r *http.Request) {
	s := auth.FromRequest(r)
	if !s.HasActiveOrg() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/org/"+s.OrgSlug, http.StatusSeeOther)
}
