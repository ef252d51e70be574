package domain

import "time"

// UserRole enumerates account roles.
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// UserStatus represents lifecycle states for an account.
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

// User is the domain model for an account holder.
type User struct {
	ID           string
	Surname      string
	Name         string
	Fathername   string
	BirthDate    time.Time
	Email        string
	PasswordHash string
	Role         UserRole
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsActive reports whether the account may log in.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}
