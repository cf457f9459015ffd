package auth

import (
	"net/http"
	"strconv"

	"github.com/hoteldex/hotel-admin/internal/errors"
)

// Manager resolves the caller's session from an incoming request. The
// identity provider is an external collaborator; this service trusts the
// identity the gateway attaches to the request.
type Manager interface {
	Authorize(r *http.Request) (*Session, error)
}

const (
	userIDHeader = "X-User-Id"
	roleHeader   = "X-User-Role"
)

// HeaderManager reads the identity headers set by the upstream gateway.
type HeaderManager struct{}

func NewHeaderManager() *HeaderManager { return &HeaderManager{} }

func (m *HeaderManager) Authorize(r *http.Request) (*Session, error) {
	rawID := r.Header.Get(userIDHeader)
	if rawID == "" {
		return nil, errors.Forbidden("missing caller identity",
			errors.WithID("auth.authorize.missing_identity"))
	}
	userID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || userID <= 0 {
		return nil, errors.Forbidden("invalid caller identity",
			errors.WithID("auth.authorize.invalid_identity"), errors.WithCause(err))
	}
	role := r.Header.Get(roleHeader)
	if role == "" {
		role = RoleViewer
	}
	return NewSession(userID, role)
}
