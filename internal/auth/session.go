package auth

import "github.com/hoteldex/hotel-admin/internal/errors"

// Roles known to the backend. The role store itself lives upstream; by
// the time a request reaches this service the role is already resolved.
const (
	RoleSuperAdmin = "super-admin"
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleViewer     = "viewer"
)

// Session is the authenticated caller of one request.
type Session struct {
	userID int64
	role   string
}

func NewSession(userID int64, role string) (*Session, error) {
	if userID == 0 {
		return nil, errors.New("userID is required")
	}
	if role == "" {
		return nil, errors.New("role is required")
	}
	return &Session{userID: userID, role: role}, nil
}

func (s *Session) UserID() int64 { return s.userID }
func (s *Session) Role() string  { return s.role }

// Privileged reports whether the caller belongs to an administrator tier
// that sees every enabled data source without explicit grants.
func (s *Session) Privileged() bool {
	return Privileged(s.role)
}

func Privileged(role string) bool {
	return role == RoleAdmin || role == RoleSuperAdmin
}
