// Package apperr maps domain errors to HTTP responses. The JSON body
// {"error": "..."} is what the UI shows as a toast.
package apperr

import (
	"encoding/json"
	"errors"
	"net/http"

	groupstore "github.com/dalemusser/grouphub/internal/app/store/groups"
	membershipstore "github.com/dalemusser/grouphub/internal/app/store/memberships"
	organizationstore "github.com/dalemusser/grouphub/internal/app/store/organizations"
	poststore "github.com/dalemusser/grouphub/internal/app/store/posts"
	userstore "github.com/dalemusser/grouphub/internal/app/store/users"
	"github.com/dalemusser/grouphub/internal/app/system/authz"
	"github.com/dalemusser/grouphub/internal/app/system/currentgroup"
	"github.com/dalemusser/grouphub/internal/app/system/identity"
	"github.com/dalemusser/grouphub/internal/app/system/inputval"
)

// Kind is a coarse error class.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindForbidden
	KindNotFound
	KindConflict
	KindUpstream
)

// ErrBadRequest marks malformed input that is not a field validation error.
var ErrBadRequest = errors.New("bad request")

// Classify reports the Kind of err.
func Classify(err error) Kind {
	var verrs inputval.Errors
	switch {
	case err == nil:
		return KindInternal
	case errors.As(err, &verrs),
		errors.Is(err, ErrBadRequest),
		errors.Is(err, membershipstore.ErrBadRole),
		errors.Is(err, currentgroup.ErrNoGroupSelected):
		return KindValidation
	case errors.Is(err, identity.ErrNoSession),
		errors.Is(err, identity.ErrInvalidToken):
		return KindUnauthenticated
	case errors.Is(err, authz.ErrForbidden),
		errors.Is(err, authz.ErrNotMember):
		return KindForbidden
	case errors.Is(err, groupstore.ErrNotFound),
		errors.Is(err, membershipstore.ErrNotFound),
		errors.Is(err, poststore.ErrNotFound),
		errors.Is(err, organizationstore.ErrNotFound),
		errors.Is(err, userstore.ErrNotFound),
		errors.Is(err, identity.ErrNotFound):
		return KindNotFound
	case errors.Is(err, groupstore.ErrDuplicateGroupSlug),
		errors.Is(err, membershipstore.ErrDuplicateMembership):
		return KindConflict
	case errors.Is(err, identity.ErrUpstream):
		return KindUpstream
	}
	return KindInternal
}

// Status is the HTTP status for err.
func Status(err error) int {
	switch Classify(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Message is the user-safe text for err. Internal and upstream failures get
// a generic message; everything else carries the sentinel's own text.
func Message(err error) string {
	switch Classify(err) {
	case KindInternal:
		return "Something went wrong. Please try again."
	case KindUpstream:
		return "The identity provider is unavailable. Please try again."
	case KindUnauthenticated:
		return "Please sign in to continue."
	}
	return rootMessage(err)
}

// rootMessage returns the text of the innermost wrapped error, so context
// added with fmt.Errorf never leaks into a toast.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

// Body is the JSON error payload.
type Body struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Write sends err as a JSON error response.
func Write(w http.ResponseWriter, err error) {
	body := Body{Error: Message(err)}
	var verrs inputval.Errors
	if errors.As(err, &verrs) {
		body.Fields = verrs
	}
	WriteJSON(w, Status(err), body)
}

// WriteJSON encodes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
