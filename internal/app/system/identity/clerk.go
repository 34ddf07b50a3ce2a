package identity

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/grouphub/internal/app/system/normalize"
	"github.com/dalemusser/grouphub/internal/domain/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

const (
	DefaultClerkAPIURL = "https://api.clerk.com"

	// membersPageSize is the largest page the memberships endpoint accepts.
	membersPageSize = 100

	unnamedUser = "Unnamed User"
)

// ClerkConfig configures the Clerk provider.
type ClerkConfig struct {
	APIURL    string // default DefaultClerkAPIURL
	SecretKey string // backend API key

	// PublicKeyPEM is the instance's JWT verification key (RS256).
	PublicKeyPEM string

	// AuthorizedParties, when non-empty, restricts the token's azp claim.
	AuthorizedParties []string

	// Leeway tolerated on exp/nbf. Default 5s.
	Leeway time.Duration

	// HTTPClient overrides the retrying backend client. Tests use this.
	HTTPClient *http.Client
}

// Clerk implements Provider against Clerk's session tokens and backend API.
type Clerk struct {
	apiURL  string
	secret  string
	key     *rsa.PublicKey
	parties map[string]struct{}
	leeway  time.Duration
	hc      *http.Client
	log     *zap.Logger
}

// NewClerk builds a Clerk provider. A missing public key is allowed so the
// webhook and backend calls can run in dev, but every session then fails
// verification.
func NewClerk(cfg ClerkConfig, logger *zap.Logger) (*Clerk, error) {
	c := &Clerk{
		apiURL: strings.TrimRight(cfg.APIURL, "/"),
		secret: cfg.SecretKey,
		leeway: cfg.Leeway,
		hc:     cfg.HTTPClient,
		log:    logger,
	}
	if c.apiURL == "" {
		c.apiURL = DefaultClerkAPIURL
	}
	if c.leeway == 0 {
		c.leeway = 5 * time.Second
	}
	if cfg.PublicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse clerk jwt public key: %w", err)
		}
		c.key = key
	}
	if len(cfg.AuthorizedParties) > 0 {
		c.parties = make(map[string]struct{}, len(cfg.AuthorizedParties))
		for _, p := range cfg.AuthorizedParties {
			c.parties[strings.TrimRight(p, "/")] = struct{}{}
		}
	}
	if c.hc == nil {
		rc := retryablehttp.NewClient()
		rc.RetryMax = 2
		rc.RetryWaitMin = 200 * time.Millisecond
		rc.RetryWaitMax = time.Second
		rc.Logger = nil
		c.hc = rc.StandardClient()
	}
	return c, nil
}

// sessionClaims covers both token layouts: v1 (org_id/org_slug/org_role)
// and v2 (compact "o" object whose role lacks the "org:" prefix).
type sessionClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	AZP       string `json:"azp"`
	OrgID     string `json:"org_id"`
	OrgSlug   string `json:"org_slug"`
	OrgRole   string `json:"org_role"`
	Org       *struct {
		ID   string `json:"id"`
		Slug string `json:"slg"`
		Role string `json:"rol"`
	} `json:"o"`
}

// VerifySession validates an RS256 session token and extracts its claims.
func (c *Clerk) VerifySession(_ context.Context, token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrNoSession
	}
	if c.key == nil {
		return Claims{}, fmt.Errorf("%w: no verification key configured", ErrInvalidToken)
	}

	var sc sessionClaims
	_, err := jwt.ParseWithClaims(token, &sc, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.key, nil
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithLeeway(c.leeway),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if sc.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	if c.parties != nil && sc.AZP != "" {
		if _, ok := c.parties[strings.TrimRight(sc.AZP, "/")]; !ok {
			return Claims{}, fmt.Errorf("%w: unauthorized party %q", ErrInvalidToken, sc.AZP)
		}
	}

	out := Claims{
		UserID:    sc.Subject,
		SessionID: sc.SessionID,
		OrgID:     sc.OrgID,
		OrgSlug:   sc.OrgSlug,
		OrgRole:   sc.OrgRole,
	}
	if sc.Org != nil && out.OrgID == "" {
		out.OrgID = sc.Org.ID
		out.OrgSlug = sc.Org.Slug
		out.OrgRole = sc.Org.Role
		if out.OrgRole != "" && !strings.HasPrefix(out.OrgRole, "org:") {
			out.OrgRole = "org:" + out.OrgRole
		}
	}
	return out, nil
}

type clerkUser struct {
	ID                    string `json:"id"`
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	ImageURL              string `json:"image_url"`
	PrimaryEmailAddressID string `json:"primary_email_address_id"`
	EmailAddresses        []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

func (u clerkUser) primaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

func (c *Clerk) GetUser(ctx context.Context, userID string) (UserProfile, error) {
	var u clerkUser
	if err := c.get(ctx, "/v1/users/"+url.PathEscape(userID), nil, &u); err != nil {
		return UserProfile{}, err
	}
	return UserProfile{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     normalize.Email(u.primaryEmail()),
		ImageURL:  u.ImageURL,
	}, nil
}

func (c *Clerk) GetOrganization(ctx context.Context, orgID string) (OrgProfile, error) {
	var o struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if err := c.get(ctx, "/v1/organizations/"+url.PathEscape(orgID), nil, &o); err != nil {
		return OrgProfile{}, err
	}
	return OrgProfile{ID: o.ID, Name: o.Name, Slug: o.Slug}, nil
}

type clerkMembershipPage struct {
	Data []struct {
		Role           string `json:"role"`
		PublicUserData *struct {
			UserID     string `json:"user_id"`
			FirstName  string `json:"first_name"`
			LastName   string `json:"last_name"`
			Identifier string `json:"identifier"`
			ImageURL   string `json:"image_url"`
		} `json:"public_user_data"`
	} `json:"data"`
	TotalCount int `json:"total_count"`
}

// ListOrganizationMembers pages through the organization's memberships.
// Entries without public user data are skipped.
func (c *Clerk) ListOrganizationMembers(ctx context.Context, orgID string) ([]models.OrgMember, error) {
	members := []models.OrgMember{}
	path := "/v1/organizations/" + url.PathEscape(orgID) + "/memberships"
	for offset := 0; ; offset += membersPageSize {
		q := url.Values{}
		q.Set("limit", fmt.Sprint(membersPageSize))
		q.Set("offset", fmt.Sprint(offset))

		var page clerkMembershipPage
		if err := c.get(ctx, path, q, &page); err != nil {
			return nil, err
		}
		for _, m := range page.Data {
			pud := m.PublicUserData
			if pud == nil || pud.UserID == "" {
				continue
			}
			name := normalize.Name(pud.FirstName + " " + pud.LastName)
			if name == "" {
				name = unnamedUser
			}
			members = append(members, models.OrgMember{
				UserID:     pud.UserID,
				Name:       name,
				Email:      pud.Identifier,
				Identifier: pud.Identifier,
				Role:       m.Role,
				ImageURL:   pud.ImageURL,
			})
		}
		if len(page.Data) < membersPageSize || offset+membersPageSize >= page.TotalCount {
			return members, nil
		}
	}
}

// get performs an authenticated GET and decodes the JSON body into out.
// 404 maps to ErrNotFound; transport errors and other non-2xx statuses map
// to ErrUpstream.
func (c *Clerk) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.apiURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		c.log.Warn("identity provider request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("identity provider returned error",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUpstream, path, err)
	}
	return nil
}
