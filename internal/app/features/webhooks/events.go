package webhooks

import (
	"encoding/json"
	"strings"

	organizationstore "github.com/dalemusser/grouphub/internal/app/store/organizations"
	userstore "github.com/dalemusser/grouphub/internal/app/store/users"
	"github.com/dalemusser/grouphub/internal/app/system/normalize"
)

// Event types handled by the receiver.
const (
	UserCreated         = "user.created"
	UserUpdated         = "user.updated"
	UserDeleted         = "user.deleted"
	OrganizationCreated = "organization.created"
	OrganizationUpdated = "organization.updated"
	OrganizationDeleted = "organization.deleted"
)

type event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type userData struct {
	ID                    string  `json:"id"`
	FirstName             *string `json:"first_name"`
	LastName              *string `json:"last_name"`
	PrimaryEmailAddressID string  `json:"primary_email_address_id"`
	EmailAddresses        []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
}

// fields maps the payload onto the user columns. The name is "first last"
// with missing parts dropped; the email is the primary address, else the
// first one listed.
func (u userData) fields() userstore.Fields {
	var f userstore.Fields
	if u.FirstName != nil || u.LastName != nil {
		var first, last string
		if u.FirstName != nil {
			first = *u.FirstName
		}
		if u.LastName != nil {
			last = *u.LastName
		}
		name := normalize.Name(strings.TrimSpace(first + " " + last))
		f.Name = &name
	}

	var email string
	for _, e := range u.EmailAddresses {
		if e.ID == u.PrimaryEmailAddressID {
			email = e.EmailAddress
			break
		}
	}
	if email == "" && len(u.EmailAddresses) > 0 {
		email = u.EmailAddresses[0].EmailAddress
	}
	if email != "" {
		email = normalize.Email(email)
		f.Email = &email
	}
	return f
}

type organizationData struct {
	ID   string  `json:"id"`
	Name *string `json:"name"`
	Slug *string `json:"slug"`
}

func (o organizationData) fields() organizationstore.Fields {
	return organizationstore.Fields{Name: o.Name, Slug: o.Slug}
}

// deletedData is the payload of a *.deleted event.
type deletedData struct {
	ID string `json:"id"`
}
