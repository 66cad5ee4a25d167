package core

import "errors"

// Role tags an identity with its handover team affiliation.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleRQ     Role = "RQ"
)

// ErrIncompleteIdentity is returned when a connection arrives without the
// full userId/userName/userRole triple.
var ErrIncompleteIdentity = errors.New("incomplete identity")

// Identity is the user triple supplied once at connect time. The core trusts
// it as given and never cross-checks it against the user catalogue.
type Identity struct {
	UserID   string
	UserName string
	UserRole Role
}

// Validate reports whether the triple is complete.
func (id Identity) Validate() error {
	if id.UserID == "" || id.UserName == "" || id.UserRole == "" {
		return ErrIncompleteIdentity
	}
	return nil
}
