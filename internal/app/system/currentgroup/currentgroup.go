// Package currentgroup remembers which group a user last opened, in a signed
// cookie. The value is UI context only; every action that uses it re-checks
// membership server-side.
package currentgroup

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/grouphub/internal/domain/models"
	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CookieName is the cookie holding the current group.
const CookieName = "currentGroup"

// DefaultMaxAge is how long the selection survives without being refreshed.
const DefaultMaxAge = 7 * 24 * time.Hour

// ErrNoGroupSelected is returned by Current when no usable cookie is present.
var ErrNoGroupSelected = errors.New("no group selected")

// payload is the cookie body. Only display fields are carried.
type payload struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Slug           string `json:"slug"`
	LogoURL        string `json:"logo_url,omitempty"`
}

type Resolver struct {
	sc     *securecookie.SecureCookie
	secure bool
	maxAge time.Duration
	log    *zap.Logger
}

// New builds a Resolver signing with key. secure marks the cookie Secure
// (production); maxAge <= 0 uses DefaultMaxAge.
func New(key string, secure bool, maxAge time.Duration, logger *zap.Logger) (*Resolver, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("cookie key must be at least 32 characters, got %d", len(key))
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sc := securecookie.New([]byte(key), nil)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(int(maxAge.Seconds()))
	return &Resolver{sc: sc, secure: secure, maxAge: maxAge, log: logger}, nil
}

// Set stores g as the current group.
func (res *Resolver) Set(w http.ResponseWriter, g models.Group) error {
	v, err := res.sc.Encode(CookieName, payload{
		ID:             g.ID.Hex(),
		OrganizationID: g.OrganizationID.Hex(),
		Name:           g.Name,
		Slug:           g.Slug,
		LogoURL:        g.LogoURL,
	})
	if err != nil {
		return fmt.Errorf("encode current group: %w", err)
	}
	http.SetCookie(w, res.cookie(v, int(res.maxAge.Seconds())))
	return nil
}

// Clear removes the current group.
func (res *Resolver) Clear(w http.ResponseWriter) {
	http.SetCookie(w, res.cookie("", -1))
}

// Optional returns the current group if a valid cookie is present. A
// missing cookie and a corrupt one both read as absent; the latter is logged.
func (res *Resolver) Optional(r *http.Request) (models.Group, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return models.Group{}, false
	}

	var p payload
	if err := res.sc.Decode(CookieName, c.Value, &p); err != nil {
		res.log.Warn("current group cookie rejected", zap.Error(err))
		return models.Group{}, false
	}
	id, err := primitive.ObjectIDFromHex(p.ID)
	if err != nil {
		res.log.Warn("current group cookie has bad id", zap.String("id", p.ID))
		return models.Group{}, false
	}
	orgID, err := primitive.ObjectIDFromHex(p.OrganizationID)
	if err != nil {
		res.log.Warn("current group cookie has bad organization id", zap.String("organization_id", p.OrganizationID))
		return models.Group{}, false
	}
	return models.Group{
		ID:             id,
		OrganizationID: orgID,
		Name:           p.Name,
		Slug:           p.Slug,
		LogoURL:        p.LogoURL,
	}, true
}

// Current is Optional for callers that need a group.
func (res *Resolver) Current(r *http.Request) (models.Group, error) {
	g, ok := res.Optional(r)
	if !ok {
		return models.Group{}, ErrNoGroupSelected
	}
	return g, nil
}

func (res *Resolver) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   res.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
