package domain

import "time"

// UserGroup is the role a user acts in.
type UserGroup string

const (
	UserGroupRider  UserGroup = "rider"
	UserGroupDriver UserGroup = "driver"
)

// User represents a rider or driver account.
type User struct {
	ID        string
	Username  string
	FirstName string
	LastName  string
	Group     UserGroup
	CreatedAt time.Time
}

// Identity is the authenticated principal behind a connection or request.
type Identity struct {
	UserID    string
	Username  string
	Group     UserGroup
	Anonymous bool
}

// AnonymousIdentity returns the identity used when no valid credentials are presented.
func AnonymousIdentity() Identity {
	return Identity{Anonymous: true}
}

// IsDriver reports whether the identity acts as a driver.
func (i Identity) IsDriver() bool {
	return !i.Anonymous && i.Group == UserGroupDriver
}
